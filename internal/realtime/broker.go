// Package realtime pushes upload lifecycle events to browsers over
// server-sent events. A single named channel ("upload") is exposed.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/AutobookNft/UltraUploadManager-sub004/internal/entity"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	// subscriberBuffer bounds the per-subscriber event queue. A slow
	// consumer drops events rather than blocking publishers.
	subscriberBuffer = 32

	heartbeatInterval = 15 * time.Second
)

// Broker fans events out to all connected SSE subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan entity.UploadEvent]struct{}
	logger      *zap.Logger
}

func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		subscribers: make(map[chan entity.UploadEvent]struct{}),
		logger:      logger,
	}
}

// Publish delivers the event to every current subscriber. Subscribers
// whose buffer is full miss the event; they catch up from the HTTP
// responses instead.
func (b *Broker) Publish(ev entity.UploadEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				zap.String("state", ev.State),
			)
		}
	}
}

// Subscribe registers a new consumer. The returned cancel func must be
// called when the consumer goes away.
func (b *Broker) Subscribe() (<-chan entity.UploadEvent, func()) {
	ch := make(chan entity.UploadEvent, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount returns the number of connected consumers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ServeHTTP handles GET /events/{channel} as an SSE stream. Only the
// upload channel exists.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "channel") != entity.ChannelUpload {
		http.NotFound(w, r)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := b.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				b.logger.Error("failed to marshal upload event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.State, payload)
			flusher.Flush()
		}
	}
}
