package launchpad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"launchpad/internal/identity"
	"launchpad/internal/model"
	"launchpad/internal/storage"
)

// InvestRequest is one contribution. VestingID names the schedule slot to
// create; an empty value gets a generated id.
type InvestRequest struct {
	PoolID    string
	Investor  string
	Amount    uint64
	VestingID string
}

// InvestmentPlan is the outcome of a contribution validated against a pool.
type InvestmentPlan struct {
	TokenAmount   uint64
	TotalInvested uint64
}

// PlanInvestment checks a contribution of amount at now against pool and
// computes the entitlement and the new pool total. It has no side effects.
func PlanInvestment(pool model.Pool, amount uint64, now int64) (InvestmentPlan, error) {
	if amount == 0 {
		return InvestmentPlan{}, ErrInvalidAmount
	}
	if now < pool.StartTime {
		return InvestmentPlan{}, ErrPoolNotStarted
	}
	if now > pool.EndTime {
		return InvestmentPlan{}, ErrPoolEnded
	}
	if pool.Finalized {
		return InvestmentPlan{}, ErrPoolFinalized
	}
	tokens, err := checkedMul(amount, pool.UnitPrice)
	if err != nil {
		return InvestmentPlan{}, err
	}
	total, err := checkedAdd(pool.TotalInvested, amount)
	if err != nil {
		return InvestmentPlan{}, err
	}
	return InvestmentPlan{TokenAmount: tokens, TotalInvested: total}, nil
}

// Invest accepts a contribution: value moves from the investor to pool
// custody, a vesting schedule is created, and the pool total grows. Either
// all three happen or none do; if the records cannot be persisted after the
// value moved, the value is returned, and a failed return is a FatalError.
func (s *Service) Invest(ctx context.Context, req InvestRequest) (schedule *model.VestingSchedule, err error) {
	defer func() { s.observe("invest", err) }()

	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	investor, err := identity.Normalize(req.Investor)
	if err != nil {
		return nil, withDetail(ErrInvalidIdentity, "investor: %v", err)
	}
	vestingID := req.VestingID
	if vestingID == "" {
		vestingID = s.newID()
	}

	var (
		custody     string
		transferred bool
	)
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		pool, err := tx.PoolForUpdate(ctx, req.PoolID)
		if err != nil {
			return mapNotFound(err, ErrPoolNotFound)
		}
		now, err := s.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("read clock: %w", err)
		}
		plan, err := PlanInvestment(*pool, req.Amount, now)
		if err != nil {
			return err
		}

		schedule = &model.VestingSchedule{
			ID:             vestingID,
			Investor:       investor,
			PoolID:         pool.ID,
			InvestedAmount: req.Amount,
			TotalAmount:    plan.TokenAmount,
			StartTime:      pool.EndTime,
			Cliff:          DefaultCliff,
			Duration:       DefaultDuration,
			CreatedAt:      time.Now().UTC(),
		}
		if err := tx.InsertVesting(ctx, schedule); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return withDetail(ErrVestingExists, "vesting %s", vestingID)
			}
			return fmt.Errorf("insert vesting: %w", err)
		}
		pool.TotalInvested = plan.TotalInvested
		if err := tx.SavePool(ctx, pool); err != nil {
			return fmt.Errorf("save pool: %w", err)
		}

		custody = pool.Custody
		if err := s.value.TransferValue(ctx, investor, custody, req.Amount); err != nil {
			return fmt.Errorf("transfer value: %w", err)
		}
		transferred = true
		return nil
	})
	if err != nil {
		if transferred {
			return nil, s.refund(ctx, req.PoolID, vestingID, investor, custody, req.Amount, err)
		}
		return nil, err
	}

	s.metrics.Invested(req.Amount)
	s.logger.Info("investment accepted",
		zap.String("pool", schedule.PoolID),
		zap.String("vesting", schedule.ID),
		zap.String("investor", investor),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("token_amount", schedule.TotalAmount),
	)
	s.publish(ctx, model.Event{
		Name:        model.EventInvestmentMade,
		PoolID:      schedule.PoolID,
		VestingID:   schedule.ID,
		Account:     investor,
		Amount:      req.Amount,
		TokenAmount: schedule.TotalAmount,
		Timestamp:   schedule.CreatedAt.Unix(),
	})
	return schedule, nil
}

// refund returns a contribution whose records failed to commit.
func (s *Service) refund(ctx context.Context, poolID, vestingID, investor, custody string, amount uint64, cause error) error {
	refundErr := s.value.TransferValue(context.WithoutCancel(ctx), custody, investor, amount)
	if refundErr == nil {
		s.logger.Warn("investment rolled back after transfer",
			zap.String("pool", poolID),
			zap.String("vesting", vestingID),
			zap.Uint64("amount", amount),
			zap.Error(cause),
		)
		return fmt.Errorf("persist investment (contribution refunded): %w", cause)
	}

	fatal := &FatalError{
		Op:        "invest",
		PoolID:    poolID,
		VestingID: vestingID,
		Account:   investor,
		Amount:    amount,
		Err:       errors.Join(cause, fmt.Errorf("refund: %w", refundErr)),
	}
	s.metrics.FatalInconsistency("invest")
	s.logger.Error("contribution held without a record",
		zap.String("pool", poolID),
		zap.String("vesting", vestingID),
		zap.String("investor", investor),
		zap.Uint64("amount", amount),
		zap.Error(fatal.Err),
	)
	return fatal
}
