package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"launchpad/internal/storage"
)

// Credit adds amount to an account, creating it if needed.
func (s *Store) Credit(ctx context.Context, asset, account string, amount uint64) error {
	if asset == "" || account == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.ledger.Exec(ctx, `
		INSERT INTO balances (asset, account, amount, updated_at)
		VALUES ($1, $2, $3::text::numeric, now())
		ON CONFLICT (asset, account)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
	`, asset, account, numeric(amount))
	if err != nil {
		if isCheckViolation(err) {
			return storage.ErrBalanceOverflow
		}
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

// Transfer locks the existing rows of both accounts in account order, checks
// funds, then debits and credits in one batch.
func (s *Store) Transfer(ctx context.Context, asset, from, to string, amount uint64) error {
	if asset == "" || from == "" || to == "" {
		return storage.ErrInvalidInput
	}
	pgTx, err := s.ledger.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck

	balances, err := lockBalances(ctx, pgTx, asset, from, to)
	if err != nil {
		return err
	}
	balance := balances[from]
	if balance < amount {
		return storage.ErrInsufficientFunds
	}
	if from == to || amount == 0 {
		return pgTx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		UPDATE balances SET amount = amount - $3::text::numeric, updated_at = now()
		WHERE asset = $1 AND account = $2
	`, asset, from, numeric(amount))
	batch.Queue(`
		INSERT INTO balances (asset, account, amount, updated_at)
		VALUES ($1, $2, $3::text::numeric, now())
		ON CONFLICT (asset, account)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = now()
	`, asset, to, numeric(amount))

	br := pgTx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isCheckViolation(err) {
				return storage.ErrBalanceOverflow
			}
			return fmt.Errorf("transfer: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return pgTx.Commit(ctx)
}

// Balance returns an account balance; unknown accounts hold zero.
func (s *Store) Balance(ctx context.Context, asset, account string) (uint64, error) {
	var raw string
	err := s.ledger.QueryRow(ctx, `
		SELECT amount::text FROM balances WHERE asset = $1 AND account = $2
	`, asset, account).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return parseNumeric(raw)
}

func lockBalances(ctx context.Context, pgTx pgx.Tx, asset string, accounts ...string) (map[string]uint64, error) {
	rows, err := pgTx.Query(ctx, `
		SELECT account, amount::text FROM balances
		WHERE asset = $1 AND account = ANY($2)
		ORDER BY account
		FOR UPDATE
	`, asset, accounts)
	if err != nil {
		return nil, fmt.Errorf("lock balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]uint64, len(accounts))
	for rows.Next() {
		var account, raw string
		if err := rows.Scan(&account, &raw); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		amount, err := parseNumeric(raw)
		if err != nil {
			return nil, err
		}
		balances[account] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock balances: %w", err)
	}
	return balances, nil
}
