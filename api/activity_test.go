package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

type gatedSink struct {
	mu      sync.Mutex
	users   []string
	started chan string
	gate    chan struct{}
	err     error
}

func newGatedSink() *gatedSink {
	return &gatedSink{started: make(chan string, 8), gate: make(chan struct{})}
}

func (g *gatedSink) EnqueueActivities(_ context.Context, userID string, _ []domain.Activity) error {
	g.started <- userID
	<-g.gate
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users = append(g.users, userID)
	return g.err
}

func (g *gatedSink) delivered() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.users...)
}

func waitStarted(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for enqueue")
	}
	return ""
}

func TestActivitySenderDelivers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	s := NewActivitySender(sink, SenderConfig{Workers: 2, Buffer: 4}, logger)

	for i := 0; i < 5; i++ {
		if err := s.Send("admin-1", newActivity("insert", domain.TableProfiles, map[string]int{"n": i})); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if err := s.Send("admin-1"); err != nil {
		t.Fatalf("empty send: %v", err)
	}
	s.Close()

	acts := sink.snapshot()
	if len(acts) != 5 {
		t.Fatalf("expected 5 activities, got %d", len(acts))
	}
	for _, u := range sink.users {
		if u != "admin-1" {
			t.Fatalf("unexpected user %q", u)
		}
	}
}

func TestActivitySenderFallsBackInline(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sink := newGatedSink()
	s := NewActivitySender(sink, SenderConfig{Workers: 1, Buffer: 1, HandoffTimeout: 10 * time.Millisecond}, logger)

	if err := s.Send("a", newActivity("insert", "t", nil)); err != nil {
		t.Fatalf("send a: %v", err)
	}
	if got := waitStarted(t, sink.started); got != "a" {
		t.Fatalf("expected worker to pick a, got %s", got)
	}
	// worker is busy; b fills the buffer
	if err := s.Send("b", newActivity("insert", "t", nil)); err != nil {
		t.Fatalf("send b: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Send("c", newActivity("insert", "t", nil)) }()
	if got := waitStarted(t, sink.started); got != "c" {
		t.Fatalf("expected c to be enqueued inline, got %s", got)
	}

	close(sink.gate)
	if err := <-done; err != nil {
		t.Fatalf("inline send: %v", err)
	}
	s.Close()

	if got := sink.delivered(); len(got) != 3 {
		t.Fatalf("expected 3 deliveries, got %v", got)
	}
	saturated := false
	for _, e := range hook.AllEntries() {
		if e.Message == "activity buffer saturated; enqueueing inline" {
			saturated = true
		}
	}
	if !saturated {
		t.Fatalf("expected saturation warning")
	}
}

func TestActivitySenderAfterCloseEnqueuesInline(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sink := newGatedSink()
	sink.err = errors.New("queue down")
	close(sink.gate)
	s := NewActivitySender(sink, SenderConfig{Workers: 1}, logger)
	s.Close()

	if err := s.Send("late", newActivity("delete", "t", nil)); err == nil || err.Error() != "queue down" {
		t.Fatalf("expected inline error, got %v", err)
	}
	if got := sink.delivered(); len(got) != 1 || got[0] != "late" {
		t.Fatalf("unexpected deliveries %v", got)
	}
}

func TestNewActivity(t *testing.T) {
	a := newActivity("grant", domain.TableTransactions, map[string]int64{"chips": 250})
	b := newActivity("grant", domain.TableTransactions, nil)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if b.Timestamp <= a.Timestamp {
		t.Fatalf("timestamps not increasing: %d then %d", a.Timestamp, b.Timestamp)
	}
	var payload map[string]int64
	if err := sonic.Unmarshal(a.Data, &payload); err != nil || payload["chips"] != 250 {
		t.Fatalf("unexpected payload %s: %v", a.Data, err)
	}
	if len(b.Data) != 0 {
		t.Fatalf("expected empty payload, got %s", b.Data)
	}
}
