package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"launchpad/internal/model"
	"launchpad/internal/storage"
)

// Store provides Postgres persistence for pools, schedules and balances.
// Transactions lock rows with SELECT ... FOR UPDATE.
type Store struct {
	pool   *Pool
	ledger *Pool
}

// NewStore connects to dsn. Ledger moves get a pool of their own because they
// run while a transition holds a record connection.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	ledger, err := NewPool(ctx, dsn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger pool: %w", err)
	}
	return &Store{pool: pool, ledger: ledger}, nil
}

var _ storage.Backend = (*Store)(nil)

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.pool.Migrate(ctx)
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.ledger != nil {
		s.ledger.Close()
	}
	return nil
}

const poolColumns = `id, authority, asset_reference, asset_symbol, asset_decimals, custody,
	unit_price::text, soft_cap::text, hard_cap::text, start_time, end_time, finalized,
	total_invested::text, created_at`

const vestingColumns = `id, pool_id, investor, invested_amount::text, total_amount::text,
	claimed_amount::text, start_time, cliff, duration, created_at`

func scanPool(row pgx.Row) (*model.Pool, error) {
	var (
		p                                        model.Pool
		decimals                                 int16
		unitPrice, softCap, hardCap, totalInvest string
	)
	err := row.Scan(
		&p.ID, &p.Authority, &p.AssetReference, &p.AssetSymbol, &decimals, &p.Custody,
		&unitPrice, &softCap, &hardCap, &p.StartTime, &p.EndTime, &p.Finalized,
		&totalInvest, &p.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	p.AssetDecimals = uint8(decimals)
	for _, f := range []struct {
		dst *uint64
		src string
	}{
		{&p.UnitPrice, unitPrice},
		{&p.SoftCap, softCap},
		{&p.HardCap, hardCap},
		{&p.TotalInvested, totalInvest},
	} {
		if *f.dst, err = parseNumeric(f.src); err != nil {
			return nil, err
		}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func scanVesting(row pgx.Row) (*model.VestingSchedule, error) {
	var (
		v                        model.VestingSchedule
		invested, total, claimed string
	)
	err := row.Scan(
		&v.ID, &v.PoolID, &v.Investor, &invested, &total,
		&claimed, &v.StartTime, &v.Cliff, &v.Duration, &v.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if v.InvestedAmount, err = parseNumeric(invested); err != nil {
		return nil, err
	}
	if v.TotalAmount, err = parseNumeric(total); err != nil {
		return nil, err
	}
	if v.ClaimedAmount, err = parseNumeric(claimed); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

// CreatePool inserts a pool.
func (s *Store) CreatePool(ctx context.Context, p *model.Pool) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (
			id, authority, asset_reference, asset_symbol, asset_decimals, custody,
			unit_price, soft_cap, hard_cap, start_time, end_time, finalized, total_invested, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9::text::numeric, $10, $11, $12, $13::text::numeric, $14)
	`,
		p.ID, p.Authority, p.AssetReference, p.AssetSymbol, int16(p.AssetDecimals), p.Custody,
		numeric(p.UnitPrice), numeric(p.SoftCap), numeric(p.HardCap), p.StartTime, p.EndTime,
		p.Finalized, numeric(p.TotalInvested), p.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// GetPool returns a pool by id.
func (s *Store) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	return scanPool(s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, id))
}

// GetVesting returns a schedule by id.
func (s *Store) GetVesting(ctx context.Context, id string) (*model.VestingSchedule, error) {
	return scanVesting(s.pool.QueryRow(ctx, `SELECT `+vestingColumns+` FROM vesting_schedules WHERE id = $1`, id))
}

// ListVestingByPool returns all schedules of a pool, oldest first.
func (s *Store) ListVestingByPool(ctx context.Context, poolID string) ([]*model.VestingSchedule, error) {
	return s.queryVesting(ctx, `
		SELECT `+vestingColumns+` FROM vesting_schedules
		WHERE pool_id = $1
		ORDER BY created_at, id
	`, poolID)
}

// ListVestingByInvestor returns an investor's schedules in a pool, oldest first.
func (s *Store) ListVestingByInvestor(ctx context.Context, poolID, investor string) ([]*model.VestingSchedule, error) {
	return s.queryVesting(ctx, `
		SELECT `+vestingColumns+` FROM vesting_schedules
		WHERE pool_id = $1 AND investor = $2
		ORDER BY created_at, id
	`, poolID, investor)
}

func (s *Store) queryVesting(ctx context.Context, query string, args ...interface{}) ([]*model.VestingSchedule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vesting: %w", err)
	}
	defer rows.Close()

	var result []*model.VestingSchedule
	for rows.Next() {
		v, err := scanVesting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// InTx runs fn inside a database transaction. The commit ignores
// cancellation of ctx: once fn returns nil its external effects may already
// have happened.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	finishCtx := context.WithoutCancel(ctx)
	defer pgTx.Rollback(finishCtx) //nolint:errcheck

	t := &tx{tx: pgTx, locked: make(map[string]struct{})}
	if err := fn(t); err != nil {
		return err
	}
	if err := pgTx.Commit(finishCtx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct {
	tx     pgx.Tx
	locked map[string]struct{}
}

func (t *tx) PoolForUpdate(ctx context.Context, id string) (*model.Pool, error) {
	p, err := scanPool(t.tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	t.locked["pool:"+id] = struct{}{}
	return p, nil
}

func (t *tx) Pool(ctx context.Context, id string) (*model.Pool, error) {
	return scanPool(t.tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id = $1`, id))
}

func (t *tx) VestingForUpdate(ctx context.Context, id string) (*model.VestingSchedule, error) {
	v, err := scanVesting(t.tx.QueryRow(ctx, `SELECT `+vestingColumns+` FROM vesting_schedules WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	t.locked["vesting:"+id] = struct{}{}
	return v, nil
}

func (t *tx) InsertVesting(ctx context.Context, v *model.VestingSchedule) error {
	if v == nil || v.ID == "" || v.PoolID == "" {
		return storage.ErrInvalidInput
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO vesting_schedules (
			id, pool_id, investor, invested_amount, total_amount, claimed_amount,
			start_time, cliff, duration, created_at
		) VALUES ($1, $2, $3, $4::text::numeric, $5::text::numeric, $6::text::numeric, $7, $8, $9, $10)
	`,
		v.ID, v.PoolID, v.Investor, numeric(v.InvestedAmount), numeric(v.TotalAmount),
		numeric(v.ClaimedAmount), v.StartTime, v.Cliff, v.Duration, v.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert vesting: %w", err)
	}
	t.locked["vesting:"+v.ID] = struct{}{}
	return nil
}

func (t *tx) SavePool(ctx context.Context, p *model.Pool) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.locked["pool:"+p.ID]; !ok {
		return storage.ErrNotLocked
	}
	_, err := t.tx.Exec(ctx, `UPDATE pools SET total_invested = $2::text::numeric WHERE id = $1`,
		p.ID, numeric(p.TotalInvested))
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	return nil
}

func (t *tx) SaveVesting(ctx context.Context, v *model.VestingSchedule) error {
	if v == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.locked["vesting:"+v.ID]; !ok {
		return storage.ErrNotLocked
	}
	_, err := t.tx.Exec(ctx, `UPDATE vesting_schedules SET claimed_amount = $2::text::numeric WHERE id = $1`,
		v.ID, numeric(v.ClaimedAmount))
	if err != nil {
		return fmt.Errorf("update vesting: %w", err)
	}
	return nil
}
