package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"launchpad/internal/events"
	"launchpad/internal/launchpad"
	"launchpad/internal/model"
	"launchpad/internal/observability"
	"launchpad/internal/report"
	"launchpad/internal/settlement"
	"launchpad/internal/storage"
)

// Handler holds the collaborators of the HTTP handlers.
type Handler struct {
	service *launchpad.Service
	reports report.Source
	hub     *events.Hub
	metrics *observability.Metrics
	logger  *zap.Logger

	allowedOrigins []string
}

// Config wires a Handler. Hub and Metrics are optional.
type Config struct {
	Service        *launchpad.Service
	Reports        report.Source
	Hub            *events.Hub
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
}

func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	return &Handler{
		service:        cfg.Service,
		reports:        cfg.Reports,
		hub:            cfg.Hub,
		metrics:        cfg.Metrics,
		logger:         logger,
		allowedOrigins: origins,
	}
}

type initializePoolRequest struct {
	ID             string `json:"id"`
	Authority      string `json:"authority"`
	AssetReference string `json:"asset_reference"`
	UnitPrice      uint64 `json:"unit_price"`
	SoftCap        uint64 `json:"soft_cap"`
	HardCap        uint64 `json:"hard_cap"`
	StartTime      int64  `json:"start_time"`
	EndTime        int64  `json:"end_time"`
}

type investRequest struct {
	Investor  string `json:"investor"`
	Amount    uint64 `json:"amount"`
	VestingID string `json:"vesting_id,omitempty"`
}

type claimRequest struct {
	Destination string `json:"destination,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) handleInitializePool(w http.ResponseWriter, r *http.Request) {
	var req initializePoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pool, err := h.service.InitializePool(r.Context(), launchpad.PoolParams{
		ID:             req.ID,
		Authority:      req.Authority,
		AssetReference: req.AssetReference,
		UnitPrice:      req.UnitPrice,
		SoftCap:        req.SoftCap,
		HardCap:        req.HardCap,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, pool)
}

func (h *Handler) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := h.service.GetPool(r.Context(), chi.URLParam(r, "poolID"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, pool)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolID")
	if _, err := h.service.GetPool(r.Context(), poolID); err != nil {
		h.respondWithError(w, err)
		return
	}
	now, err := h.service.Now(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if at := r.URL.Query().Get("at"); at != "" {
		now, err = strconv.ParseInt(at, 10, 64)
		if err != nil {
			respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "at must be unix seconds"})
			return
		}
	}
	rep, err := report.Build(r.Context(), h.reports, poolID, now)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleListVesting(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListVesting(r.Context(), chi.URLParam(r, "poolID"), r.URL.Query().Get("investor"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if list == nil {
		list = []*model.VestingSchedule{}
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *Handler) handleInvest(w http.ResponseWriter, r *http.Request) {
	var req investRequest
	if !decodeBody(w, r, &req) {
		return
	}
	schedule, err := h.service.Invest(r.Context(), launchpad.InvestRequest{
		PoolID:    chi.URLParam(r, "poolID"),
		Investor:  req.Investor,
		Amount:    req.Amount,
		VestingID: req.VestingID,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, schedule)
}

func (h *Handler) handleVestingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.VestingStatus(r.Context(), chi.URLParam(r, "vestingID"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "invalid request body: " + err.Error()})
		return
	}
	result, err := h.service.Claim(r.Context(), launchpad.ClaimRequest{
		VestingID:   chi.URLParam(r, "vestingID"),
		Destination: req.Destination,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// statusFor maps a transition error to an HTTP status.
func statusFor(err error) int {
	if launchpad.IsFatal(err) {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, storage.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrUnauthorized):
		return http.StatusForbidden
	}
	kind, ok := launchpad.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case launchpad.KindValidation:
		return http.StatusBadRequest
	case launchpad.KindNotFound:
		return http.StatusNotFound
	case launchpad.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handler) respondWithError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := launchpad.CodeOf(err)
	msg := err.Error()

	var fatal *launchpad.FatalError
	switch {
	case errors.As(err, &fatal):
		code = "FatalInconsistency"
	case errors.Is(err, storage.ErrInsufficientFunds):
		code = "InsufficientFunds"
	case errors.Is(err, settlement.ErrUnauthorized):
		code = "Unauthorized"
	case code == "":
		h.logger.Error("request failed", zap.Error(err))
		code = "Internal"
		msg = "internal error"
	}
	respondWithJSON(w, status, errorResponse{Error: code, Message: msg})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response) //nolint:errcheck
}
