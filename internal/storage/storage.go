package storage

import (
	"context"

	"launchpad/internal/model"
)

// Store persists pools and vesting schedules.
type Store interface {
	// CreatePool inserts a new pool. Returns ErrDuplicateKey if the id is taken.
	CreatePool(ctx context.Context, p *model.Pool) error

	// GetPool returns a pool by id. Returns ErrNotFound if it does not exist.
	GetPool(ctx context.Context, id string) (*model.Pool, error)

	// GetVesting returns a schedule by id. Returns ErrNotFound if it does not exist.
	GetVesting(ctx context.Context, id string) (*model.VestingSchedule, error)

	// ListVestingByPool returns all schedules of a pool, oldest first.
	ListVestingByPool(ctx context.Context, poolID string) ([]*model.VestingSchedule, error)

	// ListVestingByInvestor returns an investor's schedules in a pool, oldest first.
	ListVestingByInvestor(ctx context.Context, poolID, investor string) ([]*model.VestingSchedule, error)

	// InTx runs fn as one unit. Staged writes are applied only if fn returns
	// nil and the commit succeeds; records locked through the Tx stay locked
	// until InTx returns.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the view of the store inside InTx.
type Tx interface {
	// PoolForUpdate reads a pool and holds it exclusively for the rest of the transaction.
	PoolForUpdate(ctx context.Context, id string) (*model.Pool, error)

	// Pool reads a pool without locking it.
	Pool(ctx context.Context, id string) (*model.Pool, error)

	// VestingForUpdate reads a schedule and holds it exclusively for the rest of the transaction.
	VestingForUpdate(ctx context.Context, id string) (*model.VestingSchedule, error)

	// InsertVesting stages a new schedule. Returns ErrDuplicateKey if the id is taken.
	InsertVesting(ctx context.Context, v *model.VestingSchedule) error

	// SavePool stages the mutable fields of a pool previously read with PoolForUpdate.
	SavePool(ctx context.Context, p *model.Pool) error

	// SaveVesting stages the mutable fields of a schedule previously read with VestingForUpdate.
	SaveVesting(ctx context.Context, v *model.VestingSchedule) error
}

// Ledger holds per-asset account balances.
type Ledger interface {
	// Credit adds amount to an account, creating it if needed.
	Credit(ctx context.Context, asset, account string, amount uint64) error

	// Transfer moves amount between accounts atomically.
	// Returns ErrInsufficientFunds if the source balance is too low.
	Transfer(ctx context.Context, asset, from, to string, amount uint64) error

	// Balance returns an account balance; unknown accounts hold zero.
	Balance(ctx context.Context, asset, account string) (uint64, error)
}

// Backend is a store that also carries the ledger.
type Backend interface {
	Store
	Ledger
}
