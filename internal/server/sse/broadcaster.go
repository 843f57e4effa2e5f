// Package sse streams distillation run notifications to subscribed
// HTTP clients as Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// sendBuffer is the per-subscriber event backlog. A subscriber whose
// buffer is full is considered stalled and gets dropped.
const sendBuffer = 8

// RunEvent is the payload broadcast after each completed run.
type RunEvent struct {
	Type       string        `json:"type"`
	RunID      uuid.UUID     `json:"run_id"`
	Strategy   string        `json:"strategy"`
	EventCount int           `json:"event_count"`
	Clusters   int           `json:"clusters"`
	Duration   time.Duration `json:"duration_ns"`
}

// subscriber holds the delivery channel for one connection. Only the
// Handle goroutine that owns the connection touches its ResponseWriter;
// everyone else communicates through events and done.
type subscriber struct {
	id     string
	events chan string
	done   chan struct{}
}

// Broadcaster fans run events out to all connected subscribers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]*subscriber)}
}

// SubscriberCount returns the number of connected subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Broadcast queues ev for every subscriber. Delivery never blocks: a
// subscriber with a full backlog is dropped as stalled.
func (b *Broadcaster) Broadcast(ev RunEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal run event")
		return
	}
	message := fmt.Sprintf("event: run\ndata: %s\n\n", data)

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	var stalled []string
	for _, s := range subs {
		select {
		case <-s.done:
			continue
		case s.events <- message:
		default:
			log.Warn().Str("subscriber", s.id).Msg("SSE subscriber stalled")
			stalled = append(stalled, s.id)
		}
	}
	for _, id := range stalled {
		b.drop(id)
	}
}

func (b *Broadcaster) add() *subscriber {
	s := &subscriber{
		id:     uuid.New().String(),
		events: make(chan string, sendBuffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[s.id] = s
	total := len(b.subs)
	b.mu.Unlock()

	log.Debug().Str("subscriber", s.id).Int("total", total).Msg("SSE subscriber connected")
	return s
}

func (b *Broadcaster) drop(id string) {
	b.mu.Lock()
	s, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	total := len(b.subs)
	b.mu.Unlock()

	if ok {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	log.Debug().Str("subscriber", id).Int("total", total).Msg("SSE subscriber disconnected")
}

// Handle serves one SSE connection until the client disconnects or the
// subscriber is dropped. All writes to the connection happen here, so
// the ResponseWriter is never touched concurrently.
func (b *Broadcaster) Handle(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s := b.add()
	defer b.drop(s.id)

	fmt.Fprintf(w, "event: connected\ndata: {\"subscriber\":%q}\n\n", s.id)
	flusher.Flush()

	for {
		select {
		case msg := <-s.events:
			if _, err := w.Write([]byte(msg)); err != nil {
				log.Debug().Str("subscriber", s.id).Err(err).Msg("SSE write failed")
				return
			}
			flusher.Flush()
		case <-s.done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
