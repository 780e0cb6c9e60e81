package kanban

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

// ErrCorruptSnapshot is returned by stores when a saved board cannot be parsed.
var ErrCorruptSnapshot = errors.New("corrupt board snapshot")

// Store persists whole boards per owner.
type Store interface {
	// Load returns the saved board. found is false when nothing was saved.
	Load(ctx context.Context, owner string) (cols domain.Columns, found bool, err error)
	Save(ctx context.Context, owner string, cols domain.Columns) error
}

// Position addresses a slot of a column.
type Position struct {
	Status domain.Status `json:"status"`
	Index  int           `json:"index"`
}

// Move is a drag and drop of a task between two positions.
type Move struct {
	TaskID      string   `json:"taskId"`
	Source      Position `json:"source"`
	Destination Position `json:"destination"`
}

type entry struct {
	mu    sync.Mutex
	board *domain.Board

	// ready is closed once board or err is set.
	ready chan struct{}
	err   error
}

// Service keeps one board per owner in memory. A board is loaded from the
// store on first access and written back after every mutation.
type Service struct {
	store Store
	log   *log.Logger
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	boards map[string]*entry

	broker *broker
}

// NewService creates a board service on top of store.
func NewService(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{
		store:  store,
		log:    logger,
		now:    time.Now,
		newID:  uuid.NewString,
		boards: make(map[string]*entry),
		broker: newBroker(),
	}
}

// entry returns the owner's board, loading it on first access. Only the map
// is guarded by s.mu; concurrent callers for the same owner wait on ready
// while one of them talks to the store.
func (s *Service) entry(ctx context.Context, owner string) (*entry, error) {
	s.mu.Lock()
	e, ok := s.boards[owner]
	if !ok {
		e = &entry{ready: make(chan struct{})}
		s.boards[owner] = e
	}
	s.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e.err != nil {
			return nil, e.err
		}
		return e, nil
	}

	board, err := s.load(ctx, owner)
	if err != nil {
		s.mu.Lock()
		delete(s.boards, owner)
		s.mu.Unlock()
		e.err = err
		close(e.ready)
		return nil, err
	}
	e.board = board
	close(e.ready)
	return e, nil
}

func (s *Service) load(ctx context.Context, owner string) (*domain.Board, error) {
	cols, found, err := s.store.Load(ctx, owner)
	switch {
	case errors.Is(err, ErrCorruptSnapshot):
		s.log.WithError(err).WithField("owner", owner).Warn("ignoring unreadable board snapshot")
		found = false
	case err != nil:
		return nil, err
	}

	if !found {
		cols = domain.SampleColumns()
	}
	board := domain.NewBoard(cols)
	if !found {
		if err := s.store.Save(ctx, owner, board.Columns()); err != nil {
			s.log.WithError(err).WithField("owner", owner).Warn("persist sample board")
		}
	}
	return board, nil
}

// mutate runs fn against a copy of the owner's board and commits it once the
// store accepted the new state.
func (s *Service) mutate(ctx context.Context, owner string, fn func(b *domain.Board) error) error {
	e, err := s.entry(ctx, owner)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := domain.NewBoard(e.board.Columns())
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.Save(ctx, owner, next.Columns()); err != nil {
		return err
	}
	e.board = next
	s.broker.notify(owner)
	return nil
}

func (s *Service) read(ctx context.Context, owner string, fn func(b *domain.Board)) error {
	e, err := s.entry(ctx, owner)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.board)
	return nil
}

// Board returns the owner's columns.
func (s *Service) Board(ctx context.Context, owner string) (domain.Columns, error) {
	var cols domain.Columns
	err := s.read(ctx, owner, func(b *domain.Board) { cols = b.Columns() })
	return cols, err
}

// Summary computes the derived views of the owner's board.
func (s *Service) Summary(ctx context.Context, owner string) (domain.Summary, error) {
	var sum domain.Summary
	err := s.read(ctx, owner, func(b *domain.Board) { sum = b.Summarize(s.now()) })
	return sum, err
}

func (s *Service) Create(ctx context.Context, owner string, f domain.TaskFields) (domain.Task, error) {
	var task domain.Task
	err := s.mutate(ctx, owner, func(b *domain.Board) error {
		var err error
		task, err = b.Create(f, s.newID(), s.now())
		return err
	})
	return task, err
}

func (s *Service) Update(ctx context.Context, owner, id string, f domain.TaskFields) (domain.Task, error) {
	var task domain.Task
	err := s.mutate(ctx, owner, func(b *domain.Board) error {
		var err error
		task, err = b.Update(id, f)
		return err
	})
	return task, err
}

// Delete removes a task. Without confirmation the board is left untouched and
// ErrConfirmationRequired is returned.
func (s *Service) Delete(ctx context.Context, owner, id string, confirmed bool) (domain.Task, error) {
	var task domain.Task
	err := s.mutate(ctx, owner, func(b *domain.Board) error {
		var err error
		task, err = b.Delete(id, func(domain.Task) bool { return confirmed })
		return err
	})
	return task, err
}

func (s *Service) Move(ctx context.Context, owner string, m Move) error {
	if m.Source == m.Destination {
		return nil
	}
	return s.mutate(ctx, owner, func(b *domain.Board) error {
		return b.Move(m.TaskID, m.Source.Status, m.Source.Index, m.Destination.Status, m.Destination.Index)
	})
}

// Subscribe returns a channel signalled after every change of the owner's
// board and a function releasing it.
func (s *Service) Subscribe(owner string) (<-chan struct{}, func()) {
	ch := s.broker.subscribe(owner)
	return ch, func() { s.broker.unsubscribe(owner, ch) }
}
