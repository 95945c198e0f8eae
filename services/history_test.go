package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/roulette/bet"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/persistence"
)

// MockStore is an in-memory HistoryStore.
type MockStore struct {
	mu      sync.Mutex
	saved   []*models.RoundRecord
	loaded  *models.RoundRecord
	loadErr error
	block   chan struct{}
}

func (m *MockStore) SavePreviousRound(ctx context.Context, rec *models.RoundRecord) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, rec)
	return nil
}

func (m *MockStore) LoadPreviousRound(ctx context.Context) (*models.RoundRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.loaded == nil {
		return nil, persistence.ErrRecordNotFound
	}
	return m.loaded, nil
}

func (m *MockStore) savedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.saved))
	for _, r := range m.saved {
		ids = append(ids, r.ID)
	}
	return ids
}

func record(id string) *models.RoundRecord {
	bets := []bet.Entry{{Position: bet.Red, Amount: 1}}
	return models.NewRoundRecord(id, "p", bets, 1, bet.Settle(bets, 1), time.Now())
}

func TestHistory_MemoryOnly(t *testing.T) {
	h := NewHistory(nil)
	require.NoError(t, h.Load(context.Background()))
	assert.Nil(t, h.Previous())

	h.Record(record("a"))
	h.Record(record("b"))

	assert.Equal(t, "b", h.Previous().ID)
}

func TestHistory_Load(t *testing.T) {
	h := NewHistory(&MockStore{loaded: record("stored")})
	require.NoError(t, h.Load(context.Background()))
	assert.Equal(t, "stored", h.Previous().ID)

	empty := NewHistory(&MockStore{})
	require.NoError(t, empty.Load(context.Background()))
	assert.Nil(t, empty.Previous())

	broken := NewHistory(&MockStore{loadErr: errors.New("down")})
	assert.Error(t, broken.Load(context.Background()))
}

func TestHistory_RunSavesRecords(t *testing.T) {
	store := &MockStore{}
	h := NewHistory(store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	h.Record(record("a"))
	assert.Eventually(t, func() bool { return len(store.savedIDs()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []string{"a"}, store.savedIDs())
}

func TestHistory_RecordNeverBlocksAndKeepsNewest(t *testing.T) {
	store := &MockStore{block: make(chan struct{})}
	h := NewHistory(store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	h.Record(record("a"))
	// Wait for the worker to pick up "a" and block inside the store.
	assert.Eventually(t, func() bool { return len(h.queue) == 0 }, 2*time.Second, 5*time.Millisecond)

	finished := make(chan struct{})
	go func() {
		h.Record(record("b"))
		h.Record(record("c"))
		h.Record(record("d"))
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a slow store")
	}
	assert.Equal(t, "d", h.Previous().ID)

	close(store.block)
	cancel()
	<-done

	assert.Equal(t, []string{"a", "d"}, store.savedIDs())
}
