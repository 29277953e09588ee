package launchpad

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"launchpad/internal/identity"
	"launchpad/internal/model"
	"launchpad/internal/storage"
)

// ClaimRequest releases the unlocked part of a schedule. An empty
// Destination pays the investor.
type ClaimRequest struct {
	VestingID   string
	Destination string
}

// ClaimResult reports a completed claim.
type ClaimResult struct {
	Schedule    model.VestingSchedule `json:"schedule"`
	Amount      uint64                `json:"amount"`
	Destination string                `json:"destination"`
	At          int64                 `json:"at"`
}

// Claim disburses everything vested but not yet claimed. A failed
// disbursement leaves the schedule unchanged; a failure to record a
// disbursement that already happened is a FatalError.
func (s *Service) Claim(ctx context.Context, req ClaimRequest) (result *ClaimResult, err error) {
	defer func() { s.observe("claim", err) }()

	var destination string
	if req.Destination != "" {
		destination, err = identity.Normalize(req.Destination)
		if err != nil {
			return nil, withDetail(ErrInvalidIdentity, "destination: %v", err)
		}
	}

	var (
		disbursed bool
		poolID    string
	)
	result = &ClaimResult{}
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		v, err := tx.VestingForUpdate(ctx, req.VestingID)
		if err != nil {
			return mapNotFound(err, ErrVestingNotFound)
		}
		poolID = v.PoolID
		pool, err := tx.Pool(ctx, v.PoolID)
		if err != nil {
			return mapNotFound(err, ErrPoolNotFound)
		}
		now, err := s.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("read clock: %w", err)
		}
		amount, err := PlanClaim(*v, now)
		if err != nil {
			return err
		}
		claimed, err := checkedAdd(v.ClaimedAmount, amount)
		if err != nil {
			return err
		}
		if claimed > v.TotalAmount {
			return ErrNumberOverflow
		}
		if destination == "" {
			destination = v.Investor
		}

		v.ClaimedAmount = claimed
		if err := tx.SaveVesting(ctx, v); err != nil {
			return fmt.Errorf("save vesting: %w", err)
		}

		if err := s.assets.DisburseAsset(ctx, Disbursement{
			PoolID:    pool.ID,
			Authority: pool.Authority,
			Asset:     pool.AssetReference,
			From:      pool.Custody,
			To:        destination,
			Amount:    amount,
		}); err != nil {
			return fmt.Errorf("disburse asset: %w", err)
		}
		disbursed = true

		result.Schedule = *v
		result.Amount = amount
		result.Destination = destination
		result.At = now
		return nil
	})
	if err != nil {
		if disbursed {
			fatal := &FatalError{
				Op:        "claim",
				PoolID:    poolID,
				VestingID: req.VestingID,
				Account:   destination,
				Amount:    result.Amount,
				Err:       err,
			}
			s.metrics.FatalInconsistency("claim")
			s.logger.Error("disbursement not recorded",
				zap.String("pool", poolID),
				zap.String("vesting", req.VestingID),
				zap.String("destination", destination),
				zap.Uint64("amount", result.Amount),
				zap.Error(err),
			)
			return nil, fatal
		}
		return nil, err
	}

	s.metrics.Claimed(result.Amount)
	s.logger.Info("tokens claimed",
		zap.String("pool", poolID),
		zap.String("vesting", req.VestingID),
		zap.String("destination", destination),
		zap.Uint64("amount", result.Amount),
		zap.Uint64("claimed", result.Schedule.ClaimedAmount),
	)
	s.publish(ctx, model.Event{
		Name:        model.EventTokensClaimed,
		PoolID:      poolID,
		VestingID:   req.VestingID,
		Account:     destination,
		TokenAmount: result.Amount,
		Timestamp:   result.At,
	})
	return result, nil
}
