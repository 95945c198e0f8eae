// services/history.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/persistence"
)

// HistoryStore persists the previous round. persistence.Database satisfies it.
type HistoryStore interface {
	SavePreviousRound(ctx context.Context, record *models.RoundRecord) error
	LoadPreviousRound(ctx context.Context) (*models.RoundRecord, error)
}

const saveTimeout = 5 * time.Second

// History keeps the last completed round. Record never blocks: writes to the
// store happen on the Run goroutine and only the newest pending record is kept.
type History struct {
	store HistoryStore
	queue chan *models.RoundRecord
	last  *models.RoundRecord
	mutex sync.RWMutex
}

// NewHistory creates a keeper. A nil store keeps the round in memory only.
func NewHistory(store HistoryStore) *History {
	return &History{
		store: store,
		queue: make(chan *models.RoundRecord, 1),
	}
}

// Load seeds the keeper from the store. An empty store is not an error.
func (h *History) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	rec, err := h.store.LoadPreviousRound(ctx)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	h.mutex.Lock()
	h.last = rec
	h.mutex.Unlock()
	return nil
}

// Record makes rec the previous round and schedules it for storage.
func (h *History) Record(rec *models.RoundRecord) {
	h.mutex.Lock()
	h.last = rec
	h.mutex.Unlock()

	if h.store == nil {
		return
	}
	select {
	case h.queue <- rec:
	default:
		// A write is still pending; replace it with the newer round.
		select {
		case <-h.queue:
		default:
		}
		select {
		case h.queue <- rec:
		default:
		}
	}
}

// Previous returns the last completed round, or nil.
func (h *History) Previous() *models.RoundRecord {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.last
}

// Run writes recorded rounds until ctx is done, then flushes what is pending.
func (h *History) Run(ctx context.Context) error {
	if h.store == nil {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case rec := <-h.queue:
			h.save(context.Background(), rec)
		case <-ctx.Done():
			select {
			case rec := <-h.queue:
				h.save(context.Background(), rec)
			default:
			}
			return nil
		}
	}
}

func (h *History) save(ctx context.Context, rec *models.RoundRecord) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	if err := h.store.SavePreviousRound(ctx, rec); err != nil {
		logger.Log.Errorw("failed to save previous round", "round", rec.ID, "error", err)
		return
	}
	logger.Log.Debugw("previous round saved", "round", rec.ID)
}
