package launchpad

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"launchpad/internal/identity"
	"launchpad/internal/model"
	"launchpad/internal/storage"
)

// PoolParams are the terms a pool is created with. Times are inclusive unix seconds.
type PoolParams struct {
	ID             string
	Authority      string
	AssetReference string
	UnitPrice      uint64
	SoftCap        uint64
	HardCap        uint64
	StartTime      int64
	EndTime        int64
}

// Validate checks the terms and returns them with identities normalized.
func (p PoolParams) Validate() (PoolParams, error) {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return p, withDetail(ErrInvalidPoolParams, "id is required")
	}
	authority, err := identity.Normalize(p.Authority)
	if err != nil {
		return p, withDetail(ErrInvalidPoolParams, "authority: %v", err)
	}
	asset, err := identity.Normalize(p.AssetReference)
	if err != nil {
		return p, withDetail(ErrInvalidPoolParams, "asset reference: %v", err)
	}
	p.Authority = authority
	p.AssetReference = asset

	if p.UnitPrice == 0 {
		return p, withDetail(ErrInvalidPoolParams, "unit price must be greater than zero")
	}
	if p.EndTime <= p.StartTime {
		return p, withDetail(ErrInvalidPoolParams, "end time %d must be after start time %d", p.EndTime, p.StartTime)
	}
	if p.SoftCap > p.HardCap {
		return p, withDetail(ErrInvalidPoolParams, "soft cap %d exceeds hard cap %d", p.SoftCap, p.HardCap)
	}
	return p, nil
}

// InitializePool creates a pool with zero contributions. The custody account
// is derived from the pool id.
func (s *Service) InitializePool(ctx context.Context, params PoolParams) (pool *model.Pool, err error) {
	defer func() { s.observe("initialize_pool", err) }()

	params, err = params.Validate()
	if err != nil {
		return nil, err
	}
	custody, err := identity.CustodyAddress(s.programID, params.ID)
	if err != nil {
		return nil, withDetail(ErrInvalidPoolParams, "derive custody: %v", err)
	}

	pool = &model.Pool{
		ID:             params.ID,
		Authority:      params.Authority,
		AssetReference: params.AssetReference,
		Custody:        custody,
		UnitPrice:      params.UnitPrice,
		SoftCap:        params.SoftCap,
		HardCap:        params.HardCap,
		StartTime:      params.StartTime,
		EndTime:        params.EndTime,
		CreatedAt:      time.Now().UTC(),
	}
	s.resolveMetadata(ctx, pool)

	if err := s.store.CreatePool(ctx, pool); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, withDetail(ErrPoolExists, "pool %s", pool.ID)
		}
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s.logger.Info("pool initialized",
		zap.String("pool", pool.ID),
		zap.String("custody", pool.Custody),
		zap.Uint64("unit_price", pool.UnitPrice),
		zap.Int64("start", pool.StartTime),
		zap.Int64("end", pool.EndTime),
	)
	s.publish(ctx, model.Event{
		Name:      model.EventPoolCreated,
		PoolID:    pool.ID,
		Account:   pool.Authority,
		Timestamp: pool.CreatedAt.Unix(),
	})
	return pool, nil
}

func (s *Service) resolveMetadata(ctx context.Context, pool *model.Pool) {
	if s.resolver == nil {
		return
	}
	meta, err := s.resolver.Resolve(ctx, pool.AssetReference)
	if err != nil {
		s.logger.Warn("resolve asset metadata",
			zap.String("pool", pool.ID),
			zap.String("asset", pool.AssetReference),
			zap.Error(err),
		)
		return
	}
	pool.AssetSymbol = meta.Symbol
	pool.AssetDecimals = meta.Decimals
}
