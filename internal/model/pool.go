package model

import "time"

// Pool is a capital-raising sale: its terms and the running contribution total.
type Pool struct {
	ID             string    `json:"id"`
	Authority      string    `json:"authority"`
	AssetReference string    `json:"asset_reference"`
	AssetSymbol    string    `json:"asset_symbol,omitempty"`
	AssetDecimals  uint8     `json:"asset_decimals"`
	Custody        string    `json:"custody"`
	UnitPrice      uint64    `json:"unit_price"`
	SoftCap        uint64    `json:"soft_cap"`
	HardCap        uint64    `json:"hard_cap"`
	StartTime      int64     `json:"start_time"`
	EndTime        int64     `json:"end_time"`
	Finalized      bool      `json:"finalized"`
	TotalInvested  uint64    `json:"total_invested"`
	CreatedAt      time.Time `json:"created_at"`
}
