package postgres

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/model"
	"launchpad/internal/storage"
	"launchpad/internal/storage/postgres/pgtest"
)

// setupTestStore starts a PostgreSQL container and applies the migrations.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	store, err := NewStore(ctx, pgtest.DSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrations are idempotent")
	return store
}

func testPool(id string) *model.Pool {
	return &model.Pool{
		ID:             id,
		Authority:      "0x1111111111111111111111111111111111111111",
		AssetReference: "0x4444444444444444444444444444444444444444",
		AssetSymbol:    "TKN",
		AssetDecimals:  18,
		Custody:        "custody-" + id,
		UnitPrice:      math.MaxUint64,
		SoftCap:        10,
		HardCap:        20,
		StartTime:      100,
		EndTime:        200,
		CreatedAt:      time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestStore_PoolRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	p := testPool("pool-1")
	require.NoError(t, s.CreatePool(ctx, p))
	assert.ErrorIs(t, s.CreatePool(ctx, p), storage.ErrDuplicateKey)

	got, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.GetPool(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_InTxInvestAndClaim(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.CreatePool(ctx, testPool("pool-1")))

	v := &model.VestingSchedule{
		ID: "v1", PoolID: "pool-1", Investor: "alice",
		InvestedAmount: 5, TotalAmount: 500, StartTime: 200, Cliff: 10, Duration: 100,
		CreatedAt: time.Unix(1_700_000_100, 0).UTC(),
	}
	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PoolForUpdate(ctx, "pool-1")
		if err != nil {
			return err
		}
		if err := tx.InsertVesting(ctx, v); err != nil {
			return err
		}
		p.TotalInvested += 5
		return tx.SavePool(ctx, p)
	}))

	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error {
		got, err := tx.VestingForUpdate(ctx, "v1")
		if err != nil {
			return err
		}
		got.ClaimedAmount = 250
		return tx.SaveVesting(ctx, got)
	}))

	got, err := s.GetVesting(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), got.ClaimedAmount)

	list, err := s.ListVestingByInvestor(ctx, "pool-1", "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(500), list[0].TotalAmount)

	p, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), p.TotalInvested)
}

func TestStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.CreatePool(ctx, testPool("pool-1")))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PoolForUpdate(ctx, "pool-1")
		if err != nil {
			return err
		}
		p.TotalInvested = 42
		if err := tx.SavePool(ctx, p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Zero(t, p.TotalInvested)
}

func TestStore_ForUpdateSerializes(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.CreatePool(ctx, testPool("pool-1")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx storage.Tx) error {
				p, err := tx.PoolForUpdate(ctx, "pool-1")
				if err != nil {
					return err
				}
				p.TotalInvested++
				return tx.SavePool(ctx, p)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), p.TotalInvested)
}

func TestStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Credit(ctx, "native", "alice", 100))
	require.NoError(t, s.Transfer(ctx, "native", "alice", "bob", 60))
	assert.ErrorIs(t, s.Transfer(ctx, "native", "alice", "bob", 41), storage.ErrInsufficientFunds)
	assert.ErrorIs(t, s.Transfer(ctx, "native", "nobody", "bob", 1), storage.ErrInsufficientFunds)

	alice, err := s.Balance(ctx, "native", "alice")
	require.NoError(t, err)
	bob, err := s.Balance(ctx, "native", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), alice)
	assert.Equal(t, uint64(60), bob)

	require.NoError(t, s.Credit(ctx, "native", "carol", math.MaxUint64))
	assert.ErrorIs(t, s.Credit(ctx, "native", "carol", 1), storage.ErrBalanceOverflow)
}

func TestStore_OppositeTransfersDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Credit(ctx, "native", "alice", 1000))
	require.NoError(t, s.Credit(ctx, "native", "bob", 1000))

	const rounds = 50
	errs := make(chan error, 2*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- s.Transfer(ctx, "native", "alice", "bob", 1)
		}()
		go func() {
			defer wg.Done()
			errs <- s.Transfer(ctx, "native", "bob", "alice", 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	alice, err := s.Balance(ctx, "native", "alice")
	require.NoError(t, err)
	bob, err := s.Balance(ctx, "native", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), alice)
	assert.Equal(t, uint64(1000), bob)
}

func TestStore_LedgerRunsWhileTransitionHoldsConnection(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, pgtest.DSN(t)+"&pool_max_conns=1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	require.NoError(t, s.CreatePool(ctx, testPool("pool-1")))
	require.NoError(t, s.Credit(ctx, "native", "alice", 10))

	txCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = s.InTx(txCtx, func(tx storage.Tx) error {
		p, err := tx.PoolForUpdate(txCtx, "pool-1")
		if err != nil {
			return err
		}
		if err := s.Transfer(txCtx, "native", "alice", p.Custody, 10); err != nil {
			return err
		}
		p.TotalInvested = 10
		return tx.SavePool(txCtx, p)
	})
	require.NoError(t, err)

	custody, err := s.Balance(ctx, "native", "custody-pool-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), custody)
}
