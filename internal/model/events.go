package model

// Event names emitted after a transition commits.
const (
	EventPoolCreated    = "PoolCreated"
	EventInvestmentMade = "InvestmentMade"
	EventTokensClaimed  = "TokensClaimed"
)

// Event is the journal and broker representation of a committed transition.
type Event struct {
	Name        string `json:"event_name"`
	PoolID      string `json:"pool_id"`
	VestingID   string `json:"vesting_id,omitempty"`
	Account     string `json:"account,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	TokenAmount uint64 `json:"token_amount,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	RecordedAt  string `json:"recorded_at"`
}
