package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskcart-api/domain"
	"taskcart-api/store"
)

// sseRecorder is a flushable ResponseWriter safe for reads while the stream
// handler is still writing.
type sseRecorder struct {
	mu      sync.Mutex
	header  http.Header
	body    bytes.Buffer
	flushed chan struct{}
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{header: make(http.Header), flushed: make(chan struct{}, 8)}
}

func (r *sseRecorder) Header() http.Header { return r.header }

func (r *sseRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *sseRecorder) WriteHeader(int) {}

func (r *sseRecorder) Flush() {
	select {
	case r.flushed <- struct{}{}:
	default:
	}
}

func (r *sseRecorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, block := range strings.Split(r.body.String(), "\n\n") {
		if strings.HasPrefix(block, "data: ") {
			out = append(out, strings.TrimPrefix(block, "data: "))
		}
	}
	return out
}

func waitFlush(t *testing.T, r *sseRecorder) {
	t.Helper()
	select {
	case <-r.flushed:
	case <-time.After(time.Second):
		t.Fatal("expected a flush")
	}
}

// streamBoard exposes the subscriber callback so a test can push state
// updates at controlled points.
type streamBoard struct {
	mockBoard
	subscribed   chan struct{}
	unsubscribed chan struct{}
	fn           func(store.State)
}

func (b *streamBoard) Subscribe(fn func(store.State)) func() {
	b.fn = fn
	close(b.subscribed)
	return func() { close(b.unsubscribed) }
}

func TestStreamStateSendsSnapshotsOnMutation(t *testing.T) {
	board := &streamBoard{
		mockBoard:    mockBoard{tasks: []domain.Task{{ID: "t1", Title: "first", Status: domain.StatusTodo}}},
		subscribed:   make(chan struct{}),
		unsubscribed: make(chan struct{}),
	}

	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rw := newSSERecorder()
	c := e.NewContext(req, rw)

	done := make(chan error, 1)
	go func() { done <- streamState(board)(c) }()

	select {
	case <-board.subscribed:
	case <-time.After(time.Second):
		t.Fatal("handler never subscribed")
	}
	waitFlush(t, rw)

	board.fn(store.State{
		Tasks: []domain.Task{
			{ID: "t1", Title: "first", Status: domain.StatusTodo},
			{ID: "t2", Title: "second", Status: domain.StatusDone},
		},
		Cart: []domain.CartLine{{ID: 1, Title: "Mug", Price: 2, Quantity: 2}},
	})
	waitFlush(t, rw)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stream handler: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handler did not stop on context cancel")
	}
	select {
	case <-board.unsubscribed:
	default:
		t.Fatal("expected unsubscribe on exit")
	}

	if ct := rw.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}
	events := rw.events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %q", len(events), events)
	}

	var initial streamEvent
	if err := sonic.Unmarshal([]byte(events[0]), &initial); err != nil {
		t.Fatalf("decode initial event: %v", err)
	}
	if len(initial.Tasks) != 1 || initial.Tasks[0].ID != "t1" {
		t.Fatalf("unexpected initial snapshot: %+v", initial)
	}
	if initial.ItemCount != 0 || initial.TotalPrice != 0 {
		t.Fatalf("expected empty cart in initial snapshot, got %+v", initial)
	}

	var updated streamEvent
	if err := sonic.Unmarshal([]byte(events[1]), &updated); err != nil {
		t.Fatalf("decode update event: %v", err)
	}
	if len(updated.Tasks) != 2 || updated.Tasks[1].ID != "t2" {
		t.Fatalf("unexpected update snapshot: %+v", updated)
	}
	if updated.ItemCount != 2 || updated.TotalPrice != 4 {
		t.Fatalf("unexpected cart totals: %+v", updated)
	}
}

// plainWriter implements ResponseWriter without Flusher.
type plainWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (w *plainWriter) Header() http.Header         { return w.header }
func (w *plainWriter) Write(p []byte) (int, error) { return w.body.Write(p) }
func (w *plainWriter) WriteHeader(code int)        { w.status = code }

func TestStreamStateRejectsNonFlushableWriter(t *testing.T) {
	board := &streamBoard{
		subscribed:   make(chan struct{}),
		unsubscribed: make(chan struct{}),
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rw := &plainWriter{header: make(http.Header)}
	c := e.NewContext(req, rw)

	if err := streamState(board)(c); err != nil {
		t.Fatalf("stream handler: %v", err)
	}
	if rw.status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.status)
	}
	select {
	case <-board.subscribed:
		t.Fatal("expected no subscription without a flushable writer")
	default:
	}
}
