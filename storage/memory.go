package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

// Memory is an in-process tables.Backend for local development and tests.
// Records are kept in insertion order.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]tables.Record
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string][]tables.Record)}
}

// Seed replaces the content of table.
func (m *Memory) Seed(table string, records ...tables.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]tables.Record, 0, len(records))
	for _, r := range records {
		rows = append(rows, copyRecord(r, nil))
	}
	m.rows[table] = rows
}

// Tables lists the tables holding at least one record.
func (m *Memory) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rows))
	for t := range m.rows {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) List(_ context.Context, table string, columns []string, filter *tables.Filter) ([]tables.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []tables.Record{}
	for _, r := range m.rows[table] {
		if filter != nil && !matches(r, *filter) {
			continue
		}
		out = append(out, copyRecord(r, columns))
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, table string, records []tables.Record) ([]tables.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tables.Record, 0, len(records))
	for _, r := range records {
		rec := copyRecord(r, nil)
		if rec.ID() == "" {
			rec["id"] = uuid.NewString()
		}
		for _, existing := range m.rows[table] {
			if existing.ID() == rec.ID() {
				return out, fmt.Errorf("%w: duplicate id %q in %s", ErrConflict, rec.ID(), table)
			}
		}
		m.rows[table] = append(m.rows[table], rec)
		out = append(out, copyRecord(rec, nil))
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, table string, filter tables.Filter, patch tables.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows[table] {
		if !matches(r, filter) {
			continue
		}
		for k, v := range patch {
			if k == "id" {
				continue
			}
			r[k] = v
		}
		n++
	}
	return n, nil
}

func (m *Memory) Delete(_ context.Context, table string, filter tables.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[table][:0]
	n := 0
	for _, r := range m.rows[table] {
		if matches(r, filter) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows[table] = kept
	return n, nil
}

func matches(r tables.Record, f tables.Filter) bool {
	v, ok := r[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

func copyRecord(r tables.Record, columns []string) tables.Record {
	if columns == nil {
		out := make(tables.Record, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	out := make(tables.Record, len(columns))
	for _, c := range columns {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}
