// Package launchpad implements the pool and vesting state machine: pool
// creation, contributions that convert to vesting entitlements, and claims
// against the linear unlock curve.
package launchpad

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"launchpad/internal/identity"
	"launchpad/internal/model"
	"launchpad/internal/storage"
)

// Clock reports the authoritative current time in unix seconds.
type Clock interface {
	Now(ctx context.Context) (int64, error)
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Now(context.Context) (int64, error) {
	return time.Now().Unix(), nil
}

// ClockFunc adapts a function to Clock.
type ClockFunc func(ctx context.Context) (int64, error)

func (f ClockFunc) Now(ctx context.Context) (int64, error) {
	return f(ctx)
}

// ValueTransferer moves contribution value between accounts.
type ValueTransferer interface {
	TransferValue(ctx context.Context, from, to string, amount uint64) error
}

// Disbursement is a request to move asset units out of pool custody.
type Disbursement struct {
	PoolID    string
	Authority string
	Asset     string
	From      string
	To        string
	Amount    uint64
}

// AssetDisburser moves asset units out of pool custody on the authority's behalf.
type AssetDisburser interface {
	DisburseAsset(ctx context.Context, d Disbursement) error
}

// Publisher receives committed transition events. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// MetadataResolver looks up display metadata for an asset reference.
type MetadataResolver interface {
	Resolve(ctx context.Context, asset string) (model.TokenMeta, error)
}

// Metrics observes transition outcomes.
type Metrics interface {
	TransitionCompleted(op, code string)
	Invested(amount uint64)
	Claimed(amount uint64)
	FatalInconsistency(op string)
}

type nopMetrics struct{}

func (nopMetrics) TransitionCompleted(string, string) {}
func (nopMetrics) Invested(uint64)                    {}
func (nopMetrics) Claimed(uint64)                     {}
func (nopMetrics) FatalInconsistency(string)          {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.Event) error { return nil }

// Deps wires a Service to its collaborators. Store, Value and Assets are
// required; everything else has a working default.
type Deps struct {
	Store     storage.Store
	Clock     Clock
	Value     ValueTransferer
	Assets    AssetDisburser
	Publisher Publisher
	Resolver  MetadataResolver
	Metrics   Metrics
	Logger    *zap.Logger
	ProgramID string
	NewID     func() string
}

// Service runs pool transitions against a store.
type Service struct {
	store     storage.Store
	clock     Clock
	value     ValueTransferer
	assets    AssetDisburser
	publisher Publisher
	resolver  MetadataResolver
	metrics   Metrics
	logger    *zap.Logger
	programID string
	newID     func() string
}

// NewService creates a Service.
func NewService(deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Value == nil {
		return nil, errors.New("value transferer is required")
	}
	if deps.Assets == nil {
		return nil, errors.New("asset disburser is required")
	}

	s := &Service{
		store:     deps.Store,
		clock:     deps.Clock,
		value:     deps.Value,
		assets:    deps.Assets,
		publisher: deps.Publisher,
		resolver:  deps.Resolver,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		programID: deps.ProgramID,
		newID:     deps.NewID,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.programID == "" {
		s.programID = identity.DefaultProgramID
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// ProgramID is the program the pool custody accounts are derived under.
func (s *Service) ProgramID() string {
	return s.programID
}

// Now reads the service clock.
func (s *Service) Now(ctx context.Context) (int64, error) {
	return s.clock.Now(ctx)
}

// GetPool returns a pool by id.
func (s *Service) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	p, err := s.store.GetPool(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrPoolNotFound)
	}
	return p, nil
}

// GetVesting returns a schedule by id.
func (s *Service) GetVesting(ctx context.Context, id string) (*model.VestingSchedule, error) {
	v, err := s.store.GetVesting(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrVestingNotFound)
	}
	return v, nil
}

// ListVesting returns a pool's schedules, restricted to one investor when
// investor is non-empty.
func (s *Service) ListVesting(ctx context.Context, poolID, investor string) ([]*model.VestingSchedule, error) {
	if _, err := s.GetPool(ctx, poolID); err != nil {
		return nil, err
	}
	if investor == "" {
		return s.store.ListVestingByPool(ctx, poolID)
	}
	normalized, err := identity.Normalize(investor)
	if err != nil {
		return nil, withDetail(ErrInvalidIdentity, "investor: %v", err)
	}
	return s.store.ListVestingByInvestor(ctx, poolID, normalized)
}

// VestingStatus evaluates a schedule at the current clock.
func (s *Service) VestingStatus(ctx context.Context, id string) (Status, error) {
	v, err := s.GetVesting(ctx, id)
	if err != nil {
		return Status{}, err
	}
	now, err := s.clock.Now(ctx)
	if err != nil {
		return Status{}, err
	}
	return StatusAt(*v, now)
}

func (s *Service) publish(ctx context.Context, e model.Event) {
	e.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish event",
			zap.String("event", e.Name),
			zap.String("pool", e.PoolID),
			zap.Error(err),
		)
	}
}

func (s *Service) observe(op string, err error) {
	code := "ok"
	if err != nil {
		code = CodeOf(err)
		if code == "" {
			code = "error"
		}
		if IsFatal(err) {
			code = "fatal"
		}
	}
	s.metrics.TransitionCompleted(op, code)
}

func mapNotFound(err error, target *Error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return target
	}
	return err
}
