package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/model"
	"launchpad/internal/storage"
)

func seedPool(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreatePool(context.Background(), &model.Pool{ID: id, UnitPrice: 100, StartTime: 10, EndTime: 20}))
}

func TestStore_CreatePoolDuplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPool(t, s, "p1")

	err := s.CreatePool(ctx, &model.Pool{ID: "p1"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = s.GetPool(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_GetPoolReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPool(t, s, "p1")

	p, err := s.GetPool(ctx, "p1")
	require.NoError(t, err)
	p.TotalInvested = 999

	again, err := s.GetPool(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, again.TotalInvested)
}

func TestStore_InTxCommitsAllOrNothing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPool(t, s, "p1")

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PoolForUpdate(ctx, "p1")
		require.NoError(t, err)
		p.TotalInvested = 500
		require.NoError(t, tx.SavePool(ctx, p))
		require.NoError(t, tx.InsertVesting(ctx, &model.VestingSchedule{ID: "v1", PoolID: "p1", Investor: "alice"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetPool(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.TotalInvested)
	_, err = s.GetVesting(ctx, "v1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PoolForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		p.TotalInvested = 500
		if err := tx.SavePool(ctx, p); err != nil {
			return err
		}
		return tx.InsertVesting(ctx, &model.VestingSchedule{ID: "v1", PoolID: "p1", Investor: "alice", TotalAmount: 50000})
	})
	require.NoError(t, err)

	p, err = s.GetPool(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.TotalInvested)

	list, err := s.ListVestingByInvestor(ctx, "p1", "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint64(50000), list[0].TotalAmount)
}

func TestStore_SaveRequiresLock(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPool(t, s, "p1")

	err := s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.Pool(ctx, "p1")
		if err != nil {
			return err
		}
		return tx.SavePool(ctx, p)
	})
	assert.ErrorIs(t, err, storage.ErrNotLocked)
}

func TestStore_InsertVestingDuplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPool(t, s, "p1")

	insert := func() error {
		return s.InTx(ctx, func(tx storage.Tx) error {
			return tx.InsertVesting(ctx, &model.VestingSchedule{ID: "v1", PoolID: "p1", Investor: "alice"})
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), storage.ErrDuplicateKey)
}

func TestStore_ForUpdateSerializesReadModifyWrite(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	seedPool(t, s, "p1")

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx storage.Tx) error {
				p, err := tx.PoolForUpdate(ctx, "p1")
				if err != nil {
					return err
				}
				p.TotalInvested += 10
				return tx.SavePool(ctx, p)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.GetPool(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*10), p.TotalInvested)
}

func TestStore_LedgerTransfer(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Credit(ctx, "native", "alice", 100))
	assert.ErrorIs(t, s.Transfer(ctx, "native", "alice", "bob", 101), storage.ErrInsufficientFunds)
	require.NoError(t, s.Transfer(ctx, "native", "alice", "bob", 40))

	alice, err := s.Balance(ctx, "native", "alice")
	require.NoError(t, err)
	bob, err := s.Balance(ctx, "native", "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), alice)
	assert.Equal(t, uint64(40), bob)

	other, err := s.Balance(ctx, "asset", "alice")
	require.NoError(t, err)
	assert.Zero(t, other)

	require.NoError(t, s.Credit(ctx, "native", "whale", ^uint64(0)))
	assert.ErrorIs(t, s.Credit(ctx, "native", "whale", 1), storage.ErrBalanceOverflow)
}
