package model

import "time"

// VestingSchedule tracks one contribution's entitlement and how much of it has been disbursed.
type VestingSchedule struct {
	ID             string    `json:"id"`
	Investor       string    `json:"investor"`
	PoolID         string    `json:"pool_id"`
	InvestedAmount uint64    `json:"invested_amount"`
	TotalAmount    uint64    `json:"total_amount"`
	ClaimedAmount  uint64    `json:"claimed_amount"`
	StartTime      int64     `json:"start_time"`
	Cliff          int64     `json:"cliff"`
	Duration       int64     `json:"duration"`
	CreatedAt      time.Time `json:"created_at"`
}
