package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"launchpad/internal/model"
	"launchpad/internal/storage"
)

const (
	poolPrefix    = "pool/"
	vestingPrefix = "vesting/"
	indexPrefix   = "poolidx/"
	balancePrefix = "bal/"
)

// Store implements storage.Backend on BadgerDB. Writers of the same record
// are serialized in-process, so a Store must own its database directory.
type Store struct {
	db       *badger.DB
	locks    *storage.KeyLocks
	ledgerMu sync.Mutex
}

// Open opens (or creates) a store.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, locks: storage.NewKeyLocks()}, nil
}

var _ storage.Backend = (*Store)(nil)

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func poolKey(id string) []byte {
	return []byte(poolPrefix + id)
}

func vestingKey(id string) []byte {
	return []byte(vestingPrefix + id)
}

func indexKey(poolID, vestingID string) []byte {
	return []byte(indexPrefix + poolID + "/" + vestingID)
}

func balanceKey(asset, account string) []byte {
	return []byte(balancePrefix + asset + "/" + account)
}

func getJSON(txn *badger.Txn, key []byte, out interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// CreatePool inserts a pool. Returns ErrDuplicateKey if the id exists.
func (s *Store) CreatePool(_ context.Context, p *model.Pool) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	release := s.locks.Lock("pool:" + p.ID)
	defer release()

	return s.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, poolKey(p.ID))
		if err != nil {
			return err
		}
		if found {
			return storage.ErrDuplicateKey
		}
		return setJSON(txn, poolKey(p.ID), p)
	})
}

// GetPool returns a pool by id. Returns ErrNotFound if not exists.
func (s *Store) GetPool(_ context.Context, id string) (*model.Pool, error) {
	var p model.Pool
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, poolKey(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetVesting returns a schedule by id. Returns ErrNotFound if not exists.
func (s *Store) GetVesting(_ context.Context, id string) (*model.VestingSchedule, error) {
	var v model.VestingSchedule
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, vestingKey(id), &v)
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVestingByPool returns every schedule of a pool, oldest first.
func (s *Store) ListVestingByPool(_ context.Context, poolID string) ([]*model.VestingSchedule, error) {
	return s.listVesting(poolID, func(*model.VestingSchedule) bool { return true })
}

// ListVestingByInvestor returns an investor's schedules in a pool, oldest first.
func (s *Store) ListVestingByInvestor(_ context.Context, poolID, investor string) ([]*model.VestingSchedule, error) {
	return s.listVesting(poolID, func(v *model.VestingSchedule) bool { return v.Investor == investor })
}

func (s *Store) listVesting(poolID string, keep func(*model.VestingSchedule) bool) ([]*model.VestingSchedule, error) {
	var result []*model.VestingSchedule
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(indexPrefix + poolID + "/")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			vestingID := string(it.Item().Key()[len(prefix):])
			var v model.VestingSchedule
			if err := getJSON(txn, vestingKey(vestingID), &v); err != nil {
				return fmt.Errorf("load vesting %s: %w", vestingID, err)
			}
			if keep(&v) {
				result = append(result, &v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// InTx runs fn inside one BadgerDB update transaction. Locked records are
// read from committed state after their lock is taken, and every writer of a
// record holds its lock, so the transaction carries no reads and its commit
// cannot conflict. The commit is not cancelled with ctx: once fn returns nil
// its external effects may already have happened.
func (s *Store) InTx(_ context.Context, fn func(tx storage.Tx) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	t := &tx{store: s, txn: txn, locked: make(map[string]struct{})}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type tx struct {
	store    *Store
	txn      *badger.Txn
	locked   map[string]struct{}
	releases []func()
}

func (t *tx) lock(key string) {
	if _, ok := t.locked[key]; ok {
		return
	}
	t.releases = append(t.releases, t.store.locks.Lock(key))
	t.locked[key] = struct{}{}
}

func (t *tx) release() {
	for i := len(t.releases) - 1; i >= 0; i-- {
		t.releases[i]()
	}
}

func (t *tx) PoolForUpdate(_ context.Context, id string) (*model.Pool, error) {
	t.lock("pool:" + id)
	var p model.Pool
	if err := t.readCommitted(poolKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// readCommitted reads the latest committed value outside the update
// transaction, whose snapshot may predate the lock.
func (t *tx) readCommitted(key []byte, out interface{}) error {
	return t.store.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key, out)
	})
}

// Pool reads outside the update transaction so the read is not part of its
// conflict set.
func (t *tx) Pool(ctx context.Context, id string) (*model.Pool, error) {
	return t.store.GetPool(ctx, id)
}

func (t *tx) VestingForUpdate(_ context.Context, id string) (*model.VestingSchedule, error) {
	t.lock("vesting:" + id)
	var v model.VestingSchedule
	if err := t.readCommitted(vestingKey(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *tx) InsertVesting(_ context.Context, v *model.VestingSchedule) error {
	if v == nil || v.ID == "" || v.PoolID == "" {
		return storage.ErrInvalidInput
	}
	t.lock("vesting:" + v.ID)
	var found bool
	err := t.store.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = exists(txn, vestingKey(v.ID))
		return err
	})
	if err != nil {
		return err
	}
	if found {
		return storage.ErrDuplicateKey
	}
	if err := setJSON(t.txn, vestingKey(v.ID), v); err != nil {
		return err
	}
	return t.txn.Set(indexKey(v.PoolID, v.ID), nil)
}

func (t *tx) SavePool(_ context.Context, p *model.Pool) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.locked["pool:"+p.ID]; !ok {
		return storage.ErrNotLocked
	}
	return setJSON(t.txn, poolKey(p.ID), p)
}

func (t *tx) SaveVesting(_ context.Context, v *model.VestingSchedule) error {
	if v == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.locked["vesting:"+v.ID]; !ok {
		return storage.ErrNotLocked
	}
	return setJSON(t.txn, vestingKey(v.ID), v)
}

func readBalance(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var bal uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt balance %s", key)
		}
		bal = binary.BigEndian.Uint64(val)
		return nil
	})
	return bal, err
}

func writeBalance(txn *badger.Txn, key []byte, bal uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bal)
	return txn.Set(key, buf)
}

// Credit adds amount to an account balance.
func (s *Store) Credit(_ context.Context, asset, account string, amount uint64) error {
	if asset == "" || account == "" {
		return storage.ErrInvalidInput
	}
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := balanceKey(asset, account)
		bal, err := readBalance(txn, key)
		if err != nil {
			return err
		}
		next := bal + amount
		if next < bal {
			return storage.ErrBalanceOverflow
		}
		return writeBalance(txn, key, next)
	})
}

// Transfer moves amount between two accounts of the same asset.
func (s *Store) Transfer(_ context.Context, asset, from, to string, amount uint64) error {
	if asset == "" || from == "" || to == "" {
		return storage.ErrInvalidInput
	}
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		srcKey := balanceKey(asset, from)
		dstKey := balanceKey(asset, to)
		src, err := readBalance(txn, srcKey)
		if err != nil {
			return err
		}
		if src < amount {
			return storage.ErrInsufficientFunds
		}
		if from == to {
			return nil
		}
		dst, err := readBalance(txn, dstKey)
		if err != nil {
			return err
		}
		if dst+amount < dst {
			return storage.ErrBalanceOverflow
		}
		if err := writeBalance(txn, srcKey, src-amount); err != nil {
			return err
		}
		return writeBalance(txn, dstKey, dst+amount)
	})
}

// Balance returns an account balance.
func (s *Store) Balance(_ context.Context, asset, account string) (uint64, error) {
	var bal uint64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		bal, err = readBalance(txn, balanceKey(asset, account))
		return err
	})
	return bal, err
}
