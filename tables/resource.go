package tables

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Refetch once the resource was closed.
	ErrClosed = errors.New("resource closed")
	// ErrSuperseded is returned when a newer fetch started before this one finished.
	ErrSuperseded = errors.New("fetch superseded")
)

// Snapshot is the observable state of a Resource.
type Snapshot struct {
	Data    []Record `json:"data"`
	Loading bool     `json:"loading"`
	Error   string   `json:"error,omitempty"`
}

// Resource keeps the latest result of a table query. Results arriving after
// Close or after a newer Refetch are discarded.
type Resource struct {
	q         Querier
	table     string
	selection string

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	gen  uint64
	snap Snapshot
}

// NewResource binds a query to the lifetime of ctx. Nothing is fetched until
// Refetch is called.
func NewResource(ctx context.Context, q Querier, table, selection string) *Resource {
	if selection == "" {
		selection = "*"
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Resource{
		q:         q,
		table:     table,
		selection: selection,
		ctx:       ctx,
		cancel:    cancel,
		snap:      Snapshot{Data: []Record{}, Loading: true},
	}
}

func (r *Resource) Table() string { return r.table }

// Refetch runs the query and stores its outcome. A failed fetch keeps the
// previous data and records the error message.
func (r *Resource) Refetch() error {
	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return ErrClosed
	}
	r.gen++
	gen := r.gen
	r.snap.Loading = true
	r.snap.Error = ""
	r.mu.Unlock()

	data, err := r.q.Query(r.ctx, r.table, r.selection)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return ErrClosed
	}
	if gen != r.gen {
		return ErrSuperseded
	}
	r.snap.Loading = false
	if err != nil {
		r.snap.Error = err.Error()
		return err
	}
	if data == nil {
		data = []Record{}
	}
	r.snap.Data = data
	return nil
}

// Snapshot returns the current state.
func (r *Resource) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Close cancels any in-flight fetch. Later results are dropped.
func (r *Resource) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
}
