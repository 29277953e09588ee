package launchpad

import "launchpad/internal/model"

// Fixed per-investment schedule terms, in seconds.
const (
	DefaultCliff    int64 = 2_592_000  // 30 days
	DefaultDuration int64 = 15_552_000 // 180 days
)

// State is where a schedule sits on its vesting curve.
type State string

const (
	StateLocked      State = "locked"
	StateUnlocking   State = "unlocking"
	StateFullyVested State = "fully_vested"
	StateExhausted   State = "exhausted"
)

// CliffTime is the first instant at which a schedule can be claimed against.
func CliffTime(v model.VestingSchedule) (int64, error) {
	return checkedAddInt64(v.StartTime, v.Cliff)
}

// VestedAmount evaluates the linear curve at now: nothing before the start,
// everything once duration has elapsed, floor(total*elapsed/duration) between.
// The cliff only gates claiming; it does not shape the curve.
func VestedAmount(v model.VestingSchedule, now int64) (uint64, error) {
	elapsed, err := checkedSubInt64(now, v.StartTime)
	if err != nil {
		return 0, err
	}
	if elapsed <= 0 {
		return 0, nil
	}
	if elapsed >= v.Duration {
		return v.TotalAmount, nil
	}
	return checkedMulDiv(v.TotalAmount, uint64(elapsed), uint64(v.Duration))
}

// ClaimableAmount is vested minus already claimed.
func ClaimableAmount(v model.VestingSchedule, now int64) (uint64, error) {
	vested, err := VestedAmount(v, now)
	if err != nil {
		return 0, err
	}
	return checkedSub(vested, v.ClaimedAmount)
}

// StateAt classifies a schedule at now.
func StateAt(v model.VestingSchedule, now int64) (State, error) {
	if v.ClaimedAmount >= v.TotalAmount {
		return StateExhausted, nil
	}
	cliff, err := CliffTime(v)
	if err != nil {
		return "", err
	}
	if now < cliff {
		return StateLocked, nil
	}
	elapsed, err := checkedSubInt64(now, v.StartTime)
	if err != nil {
		return "", err
	}
	if elapsed >= v.Duration {
		return StateFullyVested, nil
	}
	return StateUnlocking, nil
}

// PlanClaim validates a claim at now and returns the amount to disburse.
func PlanClaim(v model.VestingSchedule, now int64) (uint64, error) {
	cliff, err := CliffTime(v)
	if err != nil {
		return 0, err
	}
	if now < cliff {
		return 0, ErrCliffNotReached
	}
	claimable, err := ClaimableAmount(v, now)
	if err != nil {
		return 0, err
	}
	if claimable == 0 {
		return 0, ErrNoTokensToClaim
	}
	return claimable, nil
}

// Status is a point-in-time view of a schedule.
type Status struct {
	Schedule  model.VestingSchedule `json:"schedule"`
	State     State                 `json:"state"`
	CliffTime int64                 `json:"cliff_time"`
	Vested    uint64                `json:"vested"`
	Claimable uint64                `json:"claimable"`
	At        int64                 `json:"at"`
}

// StatusAt evaluates a schedule at now.
func StatusAt(v model.VestingSchedule, now int64) (Status, error) {
	state, err := StateAt(v, now)
	if err != nil {
		return Status{}, err
	}
	cliff, err := CliffTime(v)
	if err != nil {
		return Status{}, err
	}
	vested, err := VestedAmount(v, now)
	if err != nil {
		return Status{}, err
	}
	var claimable uint64
	if state != StateLocked {
		claimable, err = checkedSub(vested, v.ClaimedAmount)
		if err != nil {
			return Status{}, err
		}
	}
	return Status{
		Schedule:  v,
		State:     state,
		CliffTime: cliff,
		Vested:    vested,
		Claimable: claimable,
		At:        now,
	}, nil
}
