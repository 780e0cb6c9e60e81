package api

import (
	"context"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/kanban"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// TableStore is the data access the table and view handlers need.
type TableStore interface {
	tables.Querier
	Insert(ctx context.Context, table string, records ...tables.Record) ([]tables.Record, error)
	Update(ctx context.Context, table string, filter tables.Filter, patch tables.Record) (int, error)
	Delete(ctx context.Context, table string, filter tables.Filter) (int, error)
}

// BoardService owns the per-user task boards.
type BoardService interface {
	Board(ctx context.Context, owner string) (domain.Columns, error)
	Summary(ctx context.Context, owner string) (domain.Summary, error)
	Create(ctx context.Context, owner string, f domain.TaskFields) (domain.Task, error)
	Update(ctx context.Context, owner, id string, f domain.TaskFields) (domain.Task, error)
	Delete(ctx context.Context, owner, id string, confirmed bool) (domain.Task, error)
	Move(ctx context.Context, owner string, m kanban.Move) error
	Subscribe(owner string) (<-chan struct{}, func())
}

// PresenceCounter exposes the aggregated peer counts.
type PresenceCounter interface {
	Counts() map[string]int
	Channels() []string
	Tracks(channel string) bool
	Subscribe() (<-chan struct{}, func())
}

// PresenceTracker registers peers on a channel.
type PresenceTracker interface {
	Join(ctx context.Context, channel, peerID string, meta map[string]any) error
	Leave(ctx context.Context, channel, peerID string) error
}

// Deduper prevents processing of duplicate writes.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the write fails.
	Remove(ctx context.Context, userID, key string) error
}

// ActivitySink receives the audit trail of administrative writes.
type ActivitySink interface {
	EnqueueActivities(ctx context.Context, userID string, acts []domain.Activity) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
