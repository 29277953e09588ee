package memory

import (
	"context"
	"sync"

	"launchpad/internal/model"
	"launchpad/internal/storage"
)

// Store is an in-memory implementation of storage.Backend.
type Store struct {
	mu       sync.RWMutex
	pools    map[string]*model.Pool
	vesting  map[string]*model.VestingSchedule
	byPool   map[string][]string // pool id -> vesting ids in insertion order
	balances map[balanceKey]uint64

	locks    *storage.KeyLocks
	ledgerMu sync.Mutex
}

type balanceKey struct {
	asset   string
	account string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		pools:    make(map[string]*model.Pool),
		vesting:  make(map[string]*model.VestingSchedule),
		byPool:   make(map[string][]string),
		balances: make(map[balanceKey]uint64),
		locks:    storage.NewKeyLocks(),
	}
}

var _ storage.Backend = (*Store)(nil)

// CreatePool inserts a pool. Returns ErrDuplicateKey if the id exists.
func (s *Store) CreatePool(_ context.Context, p *model.Pool) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	poolCopy := *p
	s.pools[p.ID] = &poolCopy
	return nil
}

// GetPool returns a pool by id. Returns ErrNotFound if not exists.
func (s *Store) GetPool(_ context.Context, id string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.pools[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	poolCopy := *p
	return &poolCopy, nil
}

// GetVesting returns a schedule by id. Returns ErrNotFound if not exists.
func (s *Store) GetVesting(_ context.Context, id string) (*model.VestingSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.vesting[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	vestingCopy := *v
	return &vestingCopy, nil
}

// ListVestingByPool returns every schedule of a pool in insertion order.
func (s *Store) ListVestingByPool(ctx context.Context, poolID string) ([]*model.VestingSchedule, error) {
	return s.listVesting(poolID, func(*model.VestingSchedule) bool { return true }), nil
}

// ListVestingByInvestor returns an investor's schedules in a pool in insertion order.
func (s *Store) ListVestingByInvestor(ctx context.Context, poolID, investor string) ([]*model.VestingSchedule, error) {
	return s.listVesting(poolID, func(v *model.VestingSchedule) bool { return v.Investor == investor }), nil
}

func (s *Store) listVesting(poolID string, keep func(*model.VestingSchedule) bool) []*model.VestingSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPool[poolID]
	result := make([]*model.VestingSchedule, 0, len(ids))
	for _, id := range ids {
		v := s.vesting[id]
		if v == nil || !keep(v) {
			continue
		}
		vestingCopy := *v
		result = append(result, &vestingCopy)
	}
	return result
}

// InTx runs fn with staged writes that are applied on success. Once fn
// returns nil the writes are applied regardless of ctx.
func (s *Store) InTx(_ context.Context, fn func(tx storage.Tx) error) error {
	t := &tx{
		store:   s,
		locked:  make(map[string]struct{}),
		pools:   make(map[string]*model.Pool),
		vesting: make(map[string]*model.VestingSchedule),
	}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type tx struct {
	store    *Store
	locked   map[string]struct{}
	releases []func()

	pools    map[string]*model.Pool
	vesting  map[string]*model.VestingSchedule
	inserted []*model.VestingSchedule
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
	t.releases = nil
}

func (t *tx) PoolForUpdate(ctx context.Context, id string) (*model.Pool, error) {
	t.lock("pool:" + id)
	return t.store.GetPool(ctx, id)
}

func (t *tx) Pool(ctx context.Context, id string) (*model.Pool, error) {
	return t.store.GetPool(ctx, id)
}

func (t *tx) VestingForUpdate(ctx context.Context, id string) (*model.VestingSchedule, error) {
	t.lock("vesting:" + id)
	return t.store.GetVesting(ctx, id)
}

func (t *tx) InsertVesting(_ context.Context, v *model.VestingSchedule) error {
	if v == nil || v.ID == "" || v.PoolID == "" {
		return storage.ErrInvalidInput
	}
	for _, staged := range t.inserted {
		if staged.ID == v.ID {
			return storage.ErrDuplicateKey
		}
	}
	t.store.mu.RLock()
	_, exists := t.store.vesting[v.ID]
	t.store.mu.RUnlock()
	if exists {
		return storage.ErrDuplicateKey
	}
	vestingCopy := *v
	t.inserted = append(t.inserted, &vestingCopy)
	return nil
}

func (t *tx) SavePool(_ context.Context, p *model.Pool) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.locked["pool:"+p.ID]; !ok {
		return storage.ErrNotLocked
	}
	poolCopy := *p
	t.pools[p.ID] = &poolCopy
	return nil
}

func (t *tx) SaveVesting(_ context.Context, v *model.VestingSchedule) error {
	if v == nil {
		return storage.ErrInvalidInput
	}
	if _, ok := t.locked["vesting:"+v.ID]; !ok {
		return storage.ErrNotLocked
	}
	vestingCopy := *v
	t.vesting[v.ID] = &vestingCopy
	return nil
}

func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range t.inserted {
		if _, exists := s.vesting[v.ID]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for id := range t.pools {
		if _, exists := s.pools[id]; !exists {
			return storage.ErrNotFound
		}
	}
	for id := range t.vesting {
		if _, exists := s.vesting[id]; !exists {
			return storage.ErrNotFound
		}
	}

	for id, p := range t.pools {
		s.pools[id].TotalInvested = p.TotalInvested
	}
	for id, v := range t.vesting {
		s.vesting[id].ClaimedAmount = v.ClaimedAmount
	}
	for _, v := range t.inserted {
		s.vesting[v.ID] = v
		s.byPool[v.PoolID] = append(s.byPool[v.PoolID], v.ID)
	}
	return nil
}

// Credit adds amount to an account balance.
func (s *Store) Credit(_ context.Context, asset, account string, amount uint64) error {
	if asset == "" || account == "" {
		return storage.ErrInvalidInput
	}
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	key := balanceKey{asset: asset, account: account}
	next := s.balances[key] + amount
	if next < amount {
		return storage.ErrBalanceOverflow
	}
	s.balances[key] = next
	return nil
}

// Transfer moves amount between two accounts of the same asset.
func (s *Store) Transfer(_ context.Context, asset, from, to string, amount uint64) error {
	if asset == "" || from == "" || to == "" {
		return storage.ErrInvalidInput
	}
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	src := balanceKey{asset: asset, account: from}
	dst := balanceKey{asset: asset, account: to}
	if s.balances[src] < amount {
		return storage.ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	next := s.balances[dst] + amount
	if next < amount {
		return storage.ErrBalanceOverflow
	}
	s.balances[src] -= amount
	s.balances[dst] = next
	return nil
}

// Balance returns an account balance.
func (s *Store) Balance(_ context.Context, asset, account string) (uint64, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()
	return s.balances[balanceKey{asset: asset, account: account}], nil
}
