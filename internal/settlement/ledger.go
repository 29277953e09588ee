// Package settlement moves contribution value and pool assets over a
// storage ledger.
package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"launchpad/internal/identity"
	"launchpad/internal/launchpad"
	"launchpad/internal/storage"
)

// NativeAsset is the ledger asset contributions are paid in.
const NativeAsset = "native"

// ErrUnauthorized is returned for a disbursement that does not come from the
// pool's own custody account or carries no authority.
var ErrUnauthorized = errors.New("disbursement not authorized")

// Ledger implements launchpad.ValueTransferer and launchpad.AssetDisburser.
type Ledger struct {
	ledger    storage.Ledger
	programID string
	logger    *zap.Logger
}

var (
	_ launchpad.ValueTransferer = (*Ledger)(nil)
	_ launchpad.AssetDisburser  = (*Ledger)(nil)
)

// NewLedger creates a Ledger. Custody accounts are derived under programID.
func NewLedger(ledger storage.Ledger, programID string, logger *zap.Logger) *Ledger {
	if programID == "" {
		programID = identity.DefaultProgramID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{ledger: ledger, programID: programID, logger: logger}
}

// TransferValue moves native value between accounts.
func (l *Ledger) TransferValue(ctx context.Context, from, to string, amount uint64) error {
	if err := l.ledger.Transfer(ctx, NativeAsset, from, to, amount); err != nil {
		return fmt.Errorf("transfer %d %s %s -> %s: %w", amount, NativeAsset, from, to, err)
	}
	l.logger.Debug("value transferred",
		zap.String("from", from),
		zap.String("to", to),
		zap.Uint64("amount", amount),
	)
	return nil
}

// DisburseAsset moves asset units out of a pool's custody account. Only the
// account derived for d.PoolID may be debited.
func (l *Ledger) DisburseAsset(ctx context.Context, d launchpad.Disbursement) error {
	if d.Authority == "" {
		return fmt.Errorf("%w: missing authority", ErrUnauthorized)
	}
	custody, err := identity.CustodyAddress(l.programID, d.PoolID)
	if err != nil {
		return fmt.Errorf("derive custody: %w", err)
	}
	if d.From != custody {
		return fmt.Errorf("%w: %s is not the custody of pool %s", ErrUnauthorized, d.From, d.PoolID)
	}
	if err := l.ledger.Transfer(ctx, d.Asset, d.From, d.To, d.Amount); err != nil {
		return fmt.Errorf("disburse %d %s to %s: %w", d.Amount, d.Asset, d.To, err)
	}
	l.logger.Debug("asset disbursed",
		zap.String("pool", d.PoolID),
		zap.String("asset", d.Asset),
		zap.String("to", d.To),
		zap.Uint64("amount", d.Amount),
	)
	return nil
}

// Fund credits an account. Used to seed investor value and pool inventory.
func (l *Ledger) Fund(ctx context.Context, asset, account string, amount uint64) error {
	if asset == "" {
		asset = NativeAsset
	}
	return l.ledger.Credit(ctx, asset, account, amount)
}

// Balance returns an account balance.
func (l *Ledger) Balance(ctx context.Context, asset, account string) (uint64, error) {
	if asset == "" {
		asset = NativeAsset
	}
	return l.ledger.Balance(ctx, asset, account)
}
