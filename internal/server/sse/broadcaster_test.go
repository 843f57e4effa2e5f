package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastToSubscriber(t *testing.T) {
	b := NewBroadcaster()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Handle(rec, req)
	}()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	ev := RunEvent{
		Type:       "run_completed",
		RunID:      uuid.New(),
		Strategy:   "flat",
		EventCount: 12,
		Clusters:   3,
	}
	b.Broadcast(ev)

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "event: run")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	body := rec.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, ev.RunID.String())
	assert.Contains(t, body, `"clusters":3`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster()
	b.Broadcast(RunEvent{Type: "run_completed"})
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestConcurrentBroadcasts(t *testing.T) {
	b := NewBroadcaster()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Handle(rec, req)
	}()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Broadcast(RunEvent{Type: "run_completed", RunID: uuid.New(), Clusters: 1})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return strings.Count(rec.String(), "event: run") >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSubscriberRemovedOnDisconnect(t *testing.T) {
	b := NewBroadcaster()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Handle(rec, req)
	}()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Eventually(t, func() bool {
		return b.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStalledSubscriberDropped(t *testing.T) {
	b := NewBroadcaster()

	// A subscriber nobody drains fills its backlog and gets dropped
	// once delivery would block.
	s := b.add()
	require.Equal(t, 1, b.SubscriberCount())

	for i := 0; i < sendBuffer+1; i++ {
		b.Broadcast(RunEvent{Type: "run_completed", RunID: uuid.New()})
	}

	assert.Equal(t, 0, b.SubscriberCount())
	select {
	case <-s.done:
	default:
		t.Fatal("dropped subscriber was not signalled")
	}

	// Later broadcasts must not panic or resurrect the subscriber.
	b.Broadcast(RunEvent{Type: "run_completed", RunID: uuid.New()})
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestDroppedSubscriberDisconnects(t *testing.T) {
	b := NewBroadcaster()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Handle(rec, req)
	}()

	require.Eventually(t, func() bool {
		return b.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	b.mu.RLock()
	var id string
	for k := range b.subs {
		id = k
	}
	b.mu.RUnlock()

	// Dropping must unblock the handler even though the request
	// context is still live.
	b.drop(id)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after drop")
	}
}

func TestHandleRequiresFlusher(t *testing.T) {
	b := NewBroadcaster()

	rec := &plainWriter{header: make(http.Header)}
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	b.Handle(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.status)
	assert.True(t, strings.Contains(rec.body.String(), "streaming not supported"))
	assert.Equal(t, 0, b.SubscriberCount())
}

// streamRecorder is a flushable ResponseWriter safe to inspect while
// the handler goroutine is still writing.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   strings.Builder
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header)}
}

func (w *streamRecorder) Header() http.Header { return w.header }

func (w *streamRecorder) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.body.Write(p)
}

func (w *streamRecorder) WriteHeader(int) {}

func (w *streamRecorder) Flush() {}

func (w *streamRecorder) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.body.String()
}

// plainWriter is a ResponseWriter without http.Flusher.
type plainWriter struct {
	header http.Header
	body   strings.Builder
	status int
}

func (w *plainWriter) Header() http.Header { return w.header }

func (w *plainWriter) Write(p []byte) (int, error) { return w.body.Write(p) }

func (w *plainWriter) WriteHeader(status int) { w.status = status }
