package kanban

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

type stubStore struct {
	mu      sync.Mutex
	saved   map[string]domain.Columns
	loadErr error
	saveErr error
	loads   int
	// blocked owners wait on their channel inside Load.
	blocked map[string]chan struct{}
}

func newStubStore() *stubStore {
	return &stubStore{saved: map[string]domain.Columns{}}
}

func (s *stubStore) Load(ctx context.Context, owner string) (domain.Columns, bool, error) {
	s.mu.Lock()
	gate := s.blocked[owner]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	cols, ok := s.saved[owner]
	return cols, ok, nil
}

func (s *stubStore) Save(_ context.Context, owner string, cols domain.Columns) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved[owner] = cols
	return nil
}

func (s *stubStore) snapshot(owner string) domain.Columns {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[owner]
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(store Store) *Service {
	svc := NewService(store, quietLogger())
	svc.now = func() time.Time { return time.Date(2025, time.November, 17, 12, 0, 0, 0, time.UTC) }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}
	return svc
}

func TestServiceSeedsEmptyStore(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	cols, err := svc.Board(context.Background(), "admin")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if !reflect.DeepEqual(cols, domain.NewBoard(domain.SampleColumns()).Columns()) {
		t.Fatalf("expected sample board")
	}
	if store.snapshot("admin") == nil {
		t.Fatalf("expected sample board to be persisted")
	}
}

func TestServiceFallsBackOnCorruptSnapshot(t *testing.T) {
	store := newStubStore()
	store.loadErr = fmt.Errorf("decode: %w", ErrCorruptSnapshot)
	svc := newTestService(store)
	cols, err := svc.Board(context.Background(), "admin")
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(cols[domain.StatusTodo]) != 2 {
		t.Fatalf("expected sample todo column, got %d tasks", len(cols[domain.StatusTodo]))
	}
}

func TestServiceLoadFailureIsReturned(t *testing.T) {
	store := newStubStore()
	store.loadErr = errors.New("redis down")
	svc := newTestService(store)
	if _, err := svc.Board(context.Background(), "admin"); err == nil {
		t.Fatalf("expected load error")
	}
	store.loadErr = nil
	if _, err := svc.Board(context.Background(), "admin"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestServiceLoadsOnce(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Board(ctx, "admin"); err != nil {
			t.Fatalf("board: %v", err)
		}
	}
	if store.loads != 1 {
		t.Fatalf("expected one load, got %d", store.loads)
	}
}

func TestServiceSlowLoadDoesNotBlockOtherOwners(t *testing.T) {
	store := newStubStore()
	gate := make(chan struct{})
	store.blocked = map[string]chan struct{}{"slow": gate}
	svc := newTestService(store)
	ctx := context.Background()

	slowDone := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Board(ctx, "slow")
			slowDone <- err
		}()
	}

	fast := make(chan error, 1)
	go func() {
		_, err := svc.Board(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		if err != nil {
			t.Fatalf("fast board: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("board of another owner blocked by a slow load")
	}

	close(gate)
	for i := 0; i < 2; i++ {
		if err := <-slowDone; err != nil {
			t.Fatalf("slow board: %v", err)
		}
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.loads != 2 {
		t.Fatalf("expected one load per owner, got %d", store.loads)
	}
}

func TestServiceWaiterHonoursContext(t *testing.T) {
	store := newStubStore()
	gate := make(chan struct{})
	store.blocked = map[string]chan struct{}{"slow": gate}
	svc := newTestService(store)

	go func() { _, _ = svc.Board(context.Background(), "slow") }()
	registered := func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		_, ok := svc.boards["slow"]
		return ok
	}
	deadline := time.Now().Add(time.Second)
	for !registered() {
		if time.Now().After(deadline) {
			t.Fatalf("loader never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.Board(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	close(gate)
}

func TestServicePersistsEveryMutation(t *testing.T) {
	store := newStubStore()
	store.saved["admin"] = domain.Columns{}
	svc := newTestService(store)
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		cols, err := svc.Board(ctx, "admin")
		if err != nil {
			t.Fatalf("%s: board: %v", step, err)
		}
		if !reflect.DeepEqual(store.snapshot("admin"), cols) {
			t.Fatalf("%s: persisted board differs from memory", step)
		}
	}

	task, err := svc.Create(ctx, "admin", domain.TaskFields{Title: "T1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	check("create")

	if err := svc.Move(ctx, "admin", Move{
		TaskID:      task.ID,
		Source:      Position{Status: domain.StatusTodo, Index: 0},
		Destination: Position{Status: domain.StatusDone, Index: 0},
	}); err != nil {
		t.Fatalf("move: %v", err)
	}
	check("move")

	if _, err := svc.Update(ctx, "admin", task.ID, domain.TaskFields{Title: "T1", Priority: domain.PriorityUrgent, Status: domain.StatusDone}); err != nil {
		t.Fatalf("update: %v", err)
	}
	check("update")

	if _, err := svc.Delete(ctx, "admin", task.ID, false); !errors.Is(err, domain.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	check("declined delete")

	if _, err := svc.Delete(ctx, "admin", task.ID, true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	check("delete")
}

func TestServiceSaveFailureKeepsPreviousState(t *testing.T) {
	store := newStubStore()
	store.saved["admin"] = domain.Columns{}
	svc := newTestService(store)
	ctx := context.Background()
	if _, err := svc.Board(ctx, "admin"); err != nil {
		t.Fatalf("board: %v", err)
	}

	store.saveErr = errors.New("write failed")
	if _, err := svc.Create(ctx, "admin", domain.TaskFields{Title: "lost"}); err == nil {
		t.Fatalf("expected save error")
	}
	cols, _ := svc.Board(ctx, "admin")
	if n := len(cols[domain.StatusTodo]); n != 0 {
		t.Fatalf("failed mutation leaked into memory: %d tasks", n)
	}
}

func TestServiceNotifiesSubscribers(t *testing.T) {
	svc := newTestService(newStubStore())
	ch, release := svc.Subscribe("admin")
	defer release()
	other, releaseOther := svc.Subscribe("someone-else")
	defer releaseOther()

	if _, err := svc.Create(context.Background(), "admin", domain.TaskFields{Title: "ping"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected notification")
	}
	select {
	case <-other:
		t.Fatalf("unrelated owner was notified")
	default:
	}
}

func TestServiceMoveNoopSkipsSave(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store)
	ctx := context.Background()
	if _, err := svc.Board(ctx, "admin"); err != nil {
		t.Fatalf("board: %v", err)
	}
	store.saveErr = errors.New("should not be called")
	pos := Position{Status: domain.StatusTodo, Index: 0}
	if err := svc.Move(ctx, "admin", Move{TaskID: "2", Source: pos, Destination: pos}); err != nil {
		t.Fatalf("no-op move: %v", err)
	}
}
