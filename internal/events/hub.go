package events

import (
	"log/slog"
	"sync"

	"github.com/homzhub/ticket-engine/internal/models"
)

const subscriberBuffer = 16

// Hub fans ticket events out to websocket subscribers. Publish never blocks;
// a subscriber that cannot keep up loses events rather than stalling the
// workflow that produced them.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan models.TicketEvent]struct{}
	logger      *slog.Logger
}

// NewHub creates an event hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[chan models.TicketEvent]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener and returns its channel plus an unsubscribe
// function. The channel is closed on unsubscribe.
func (h *Hub) Subscribe() (<-chan models.TicketEvent, func()) {
	ch := make(chan models.TicketEvent, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking
func (h *Hub) Publish(event models.TicketEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn("dropping event for slow subscriber", "type", event.Type, "ticket_id", event.TicketID)
		}
	}
}

// Subscribers returns the current subscriber count
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
