// Package report summarizes a pool and its vesting schedules at a point in time.
package report

import (
	"context"
	"fmt"
	"math/big"

	"launchpad/internal/launchpad"
	"launchpad/internal/model"
)

// Phase is where a pool sits relative to its contribution window.
type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseOpen     Phase = "open"
	PhaseClosed   Phase = "closed"
)

// Source reads pools and their schedules.
type Source interface {
	GetPool(ctx context.Context, id string) (*model.Pool, error)
	ListVestingByPool(ctx context.Context, poolID string) ([]*model.VestingSchedule, error)
}

// PoolReport aggregates a pool's schedules. Asset sums use big integers
// because the total entitlement of many schedules can exceed 64 bits.
type PoolReport struct {
	Pool      model.Pool              `json:"pool"`
	At        int64                   `json:"at"`
	Phase     Phase                   `json:"phase"`
	Schedules int                     `json:"schedules"`
	Investors int                     `json:"investors"`
	States    map[launchpad.State]int `json:"states"`

	InvestedSum *big.Int `json:"invested_sum"`
	Entitled    *big.Int `json:"entitled"`
	Vested      *big.Int `json:"vested"`
	Claimed     *big.Int `json:"claimed"`
	Claimable   *big.Int `json:"claimable"`

	EntitledDisplay  string `json:"entitled_display"`
	ClaimedDisplay   string `json:"claimed_display"`
	ClaimableDisplay string `json:"claimable_display"`

	SoftCapReached  bool `json:"soft_cap_reached"`
	HardCapExceeded bool `json:"hard_cap_exceeded"`

	// Consistent reports whether the pool total equals the sum of
	// contributions recorded on its schedules.
	Consistent bool `json:"consistent"`
}

// PhaseAt classifies a pool's contribution window at now. Both ends are inclusive.
func PhaseAt(p model.Pool, now int64) Phase {
	switch {
	case now < p.StartTime:
		return PhaseUpcoming
	case now <= p.EndTime:
		return PhaseOpen
	default:
		return PhaseClosed
	}
}

// Build computes the report for poolID at now.
func Build(ctx context.Context, src Source, poolID string, now int64) (*PoolReport, error) {
	pool, err := src.GetPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", poolID, err)
	}
	schedules, err := src.ListVestingByPool(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list vesting %s: %w", poolID, err)
	}

	r := &PoolReport{
		Pool:        *pool,
		At:          now,
		Phase:       PhaseAt(*pool, now),
		Schedules:   len(schedules),
		States:      make(map[launchpad.State]int),
		InvestedSum: new(big.Int),
		Entitled:    new(big.Int),
		Vested:      new(big.Int),
		Claimed:     new(big.Int),
		Claimable:   new(big.Int),
	}

	investors := make(map[string]struct{})
	for _, v := range schedules {
		st, err := launchpad.StatusAt(*v, now)
		if err != nil {
			return nil, fmt.Errorf("evaluate vesting %s: %w", v.ID, err)
		}
		investors[v.Investor] = struct{}{}
		r.States[st.State]++
		addUint64(r.InvestedSum, v.InvestedAmount)
		addUint64(r.Entitled, v.TotalAmount)
		addUint64(r.Vested, st.Vested)
		addUint64(r.Claimed, v.ClaimedAmount)
		addUint64(r.Claimable, st.Claimable)
	}
	r.Investors = len(investors)

	r.EntitledDisplay = formatTokenAmount(r.Entitled, pool.AssetDecimals)
	r.ClaimedDisplay = formatTokenAmount(r.Claimed, pool.AssetDecimals)
	r.ClaimableDisplay = formatTokenAmount(r.Claimable, pool.AssetDecimals)

	r.SoftCapReached = pool.TotalInvested >= pool.SoftCap
	r.HardCapExceeded = pool.TotalInvested > pool.HardCap
	r.Consistent = r.InvestedSum.Cmp(new(big.Int).SetUint64(pool.TotalInvested)) == 0
	return r, nil
}
