package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchpad/internal/model"
)

func TestJournalAppendsAcrossBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	journal := NewJournal(path)

	require.NoError(t, journal.PutEventBatch([]model.Event{
		{Name: model.EventPoolCreated, PoolID: "p1", Timestamp: 100},
	}))
	require.NoError(t, journal.PutEventBatch(nil))
	require.NoError(t, journal.PutEventBatch([]model.Event{
		{Name: model.EventInvestmentMade, PoolID: "p1", VestingID: "v1", Amount: 500, TokenAmount: 50000, Timestamp: 200},
		{Name: model.EventTokensClaimed, PoolID: "p1", VestingID: "v1", TokenAmount: 25000, Timestamp: 300},
	}))

	events, err := journal.ReadEvents()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.EventPoolCreated, events[0].Name)
	assert.Equal(t, uint64(50000), events[1].TokenAmount)
	assert.Equal(t, "v1", events[2].VestingID)
}

func TestJournalMissingFileIsEmpty(t *testing.T) {
	events, err := NewJournal(filepath.Join(t.TempDir(), "none.jsonl")).ReadEvents()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestKeyLocksDedupesKeys(t *testing.T) {
	locks := NewKeyLocks()
	release := locks.Lock("b", "a", "b")
	release()

	// Re-acquiring after release must not block.
	release = locks.Lock("a", "b")
	release()
}
