package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

func TestMemoryBackend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Seed("profiles", tables.Record{"id": "u1", "username": "ace", "is_active": true})

	inserted, err := m.Insert(ctx, "profiles", []tables.Record{{"username": "bluff"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted[0].ID() == "" {
		t.Fatalf("expected generated id")
	}
	if _, err := m.Insert(ctx, "profiles", []tables.Record{{"id": "u1"}}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	n, err := m.Update(ctx, "profiles", tables.Filter{Column: "id", Value: "u1"}, tables.Record{"is_active": false})
	if err != nil || n != 1 {
		t.Fatalf("update: n=%d err=%v", n, err)
	}
	rows, _ := m.List(ctx, "profiles", []string{"id", "is_active"}, &tables.Filter{Column: "is_active", Value: false})
	if len(rows) != 1 || rows[0].ID() != "u1" {
		t.Fatalf("unexpected filtered rows %#v", rows)
	}
	if _, ok := rows[0]["username"]; ok {
		t.Fatalf("projection leaked unselected column")
	}

	rows[0]["is_active"] = "mutated"
	again, _ := m.List(ctx, "profiles", nil, &tables.Filter{Column: "id", Value: "u1"})
	if again[0]["is_active"] != false {
		t.Fatalf("list must return copies")
	}

	n, err = m.Delete(ctx, "profiles", tables.Filter{Column: "id", Value: "u1"})
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	all, _ := m.List(ctx, "profiles", nil, nil)
	if len(all) != 1 {
		t.Fatalf("expected 1 remaining row, got %d", len(all))
	}
}

func TestParseRedisOptions(t *testing.T) {
	opts := ParseRedisOptions("cache.example.net:6380,password=secret,ssl=True,abortConnect=False")
	if opts.Addr != "cache.example.net:6380" || opts.Password != "secret" || opts.TLSConfig == nil {
		t.Fatalf("unexpected options %#v", opts)
	}
	opts = ParseRedisOptions("redis://:pw@localhost:6379/2")
	if opts.Addr != "localhost:6379" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected url options %#v", opts)
	}
}
