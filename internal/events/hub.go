package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"launchpad/internal/model"
)

const subscriberBuffer = 64

// Hub broadcasts events to live subscribers. A subscriber that falls more
// than its buffer behind misses events rather than blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan model.Event]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[chan model.Event]struct{}), logger: logger}
}

// Subscribe registers a subscriber. Call the returned func to unsubscribe;
// the channel is closed afterwards.
func (h *Hub) Subscribe() (<-chan model.Event, func()) {
	ch := make(chan model.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Publish(_ context.Context, e model.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("event", e.Name))
		}
	}
	return nil
}
