// Package notify implements the best-effort push channel that tells live
// clients about revocations ahead of their next heartbeat. Delivery is a
// latency optimization only: a dropped event is fine because the heartbeat
// path remains authoritative.
package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/drmkeeper/internal/logging"
	"github.com/dmitrijs2005/drmkeeper/internal/server/models"
)

// subscriberBuffer bounds each subscriber channel; a slow consumer loses
// events instead of blocking the revocation path.
const subscriberBuffer = 8

// Hub fans revocation events out to a user's connected clients.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan models.RevocationEvent]struct{}
	logger logging.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan models.RevocationEvent]struct{}),
		logger: logger.With("module", "notify"),
	}
}

// Subscribe registers a listener for one user's events. The returned cancel
// func must be called when the client disconnects.
func (h *Hub) Subscribe(userID string) (<-chan models.RevocationEvent, func()) {
	ch := make(chan models.RevocationEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan models.RevocationEvent]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// PublishToUser delivers an event to every current subscriber of the user.
// It never blocks: full buffers and absent subscribers drop the event, and
// drops are logged, not retried.
func (h *Hub) PublishToUser(ctx context.Context, userID string, event models.RevocationEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[userID]
	if len(set) == 0 {
		h.logger.Debug(ctx, "no live subscribers", "user_id", userID, "upload_id", event.UploadID)
		return nil
	}

	for ch := range set {
		select {
		case ch <- event:
		default:
			h.logger.Warn(ctx, "subscriber buffer full, dropping event",
				"user_id", userID, "upload_id", event.UploadID)
		}
	}
	return nil
}
