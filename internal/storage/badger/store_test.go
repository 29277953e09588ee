package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/model"
	"launchpad/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PoolLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &model.Pool{ID: "pool-1", UnitPrice: 100, StartTime: 10, EndTime: 20}
	require.NoError(t, s.CreatePool(ctx, p))
	assert.ErrorIs(t, s.CreatePool(ctx, p), storage.ErrDuplicateKey)

	got, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got.UnitPrice)

	_, err = s.GetPool(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_InTxInvestment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePool(ctx, &model.Pool{ID: "pool-1", UnitPrice: 2}))

	base := time.Unix(1_700_000_000, 0).UTC()
	for i, id := range []string{"b", "a"} {
		err := s.InTx(ctx, func(tx storage.Tx) error {
			p, err := tx.PoolForUpdate(ctx, "pool-1")
			if err != nil {
				return err
			}
			p.TotalInvested += 5
			if err := tx.InsertVesting(ctx, &model.VestingSchedule{
				ID: id, PoolID: "pool-1", Investor: "alice", TotalAmount: 10,
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			}); err != nil {
				return err
			}
			return tx.SavePool(ctx, p)
		})
		require.NoError(t, err)
	}

	p, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), p.TotalInvested)

	list, err := s.ListVestingByPool(ctx, "pool-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID, "ordered by creation time")

	mine, err := s.ListVestingByInvestor(ctx, "pool-1", "bob")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestStore_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePool(ctx, &model.Pool{ID: "pool-1"}))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PoolForUpdate(ctx, "pool-1")
		require.NoError(t, err)
		p.TotalInvested = 99
		require.NoError(t, tx.SavePool(ctx, p))
		require.NoError(t, tx.InsertVesting(ctx, &model.VestingSchedule{ID: "v", PoolID: "pool-1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Zero(t, p.TotalInvested)
	_, err = s.GetVesting(ctx, "v")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SaveRequiresLock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePool(ctx, &model.Pool{ID: "pool-1"}))

	err := s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.Pool(ctx, "pool-1")
		if err != nil {
			return err
		}
		return tx.SavePool(ctx, p)
	})
	assert.ErrorIs(t, err, storage.ErrNotLocked)
}

func TestStore_Ledger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Credit(ctx, "native", "alice", 100))
	require.NoError(t, s.Transfer(ctx, "native", "alice", "bob", 60))
	assert.ErrorIs(t, s.Transfer(ctx, "native", "alice", "bob", 41), storage.ErrInsufficientFunds)

	alice, err := s.Balance(ctx, "native", "alice")
	require.NoError(t, err)
	bob, err := s.Balance(ctx, "native", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), alice)
	assert.Equal(t, uint64(60), bob)

	require.NoError(t, s.Credit(ctx, "native", "carol", ^uint64(0)))
	assert.ErrorIs(t, s.Credit(ctx, "native", "carol", 1), storage.ErrBalanceOverflow)
}

func TestStore_ForUpdateQueuesInsteadOfConflicting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePool(ctx, &model.Pool{ID: "pool-1", UnitPrice: 1, StartTime: 10, EndTime: 20}))
	require.NoError(t, s.InTx(ctx, func(tx storage.Tx) error {
		return tx.InsertVesting(ctx, &model.VestingSchedule{ID: "v-1", PoolID: "pool-1", TotalAmount: 100})
	}))

	const workers = 20
	errs := make(chan error, 2*workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- s.InTx(ctx, func(tx storage.Tx) error {
				p, err := tx.PoolForUpdate(ctx, "pool-1")
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				p.TotalInvested++
				return tx.SavePool(ctx, p)
			})
		}()
		go func() {
			defer wg.Done()
			errs <- s.InTx(ctx, func(tx storage.Tx) error {
				v, err := tx.VestingForUpdate(ctx, "v-1")
				if err != nil {
					return err
				}
				time.Sleep(time.Millisecond)
				v.ClaimedAmount++
				return tx.SaveVesting(ctx, v)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := s.GetPool(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), p.TotalInvested)
	v, err := s.GetVesting(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), v.ClaimedAmount)
}
