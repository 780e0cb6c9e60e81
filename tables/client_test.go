package tables

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"
)

type fakeBackend struct {
	rows    map[string][]Record
	listErr error
	lists   []string
}

func (f *fakeBackend) List(_ context.Context, table string, columns []string, _ *Filter) ([]Record, error) {
	f.lists = append(f.lists, table)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Record
	for _, r := range f.rows[table] {
		out = append(out, project(r, columns))
	}
	return out, nil
}

func (f *fakeBackend) Insert(_ context.Context, table string, records []Record) ([]Record, error) {
	f.rows[table] = append(f.rows[table], records...)
	return records, nil
}

func (f *fakeBackend) Update(context.Context, string, Filter, Record) (int, error) { return 1, nil }

func (f *fakeBackend) Delete(context.Context, string, Filter) (int, error) { return 1, nil }

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: map[string][]Record{
		"profiles": {
			{"id": "u1", "username": "ace", "email": "ace@example.com"},
			{"id": "u2", "username": "bluff", "email": "bluff@example.com"},
		},
		"transactions": {
			{"id": "t1", "user_id": "u1", "amount_paid": 9.99},
			{"id": "t2", "user_id": "u3", "amount_paid": 4.99},
		},
	}}
}

func TestQueryExpandsRelations(t *testing.T) {
	c := NewClient(newFakeBackend(), []string{"profiles", "transactions"})
	got, err := c.Query(context.Background(), "transactions", "*, profiles(username, email)")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	want := Record{"username": "ace", "email": "ace@example.com"}
	if !reflect.DeepEqual(got[0]["profiles"], want) {
		t.Fatalf("unexpected embedded profile %#v", got[0]["profiles"])
	}
	if got[1]["profiles"] != nil {
		t.Fatalf("expected nil profile for dangling user id, got %#v", got[1]["profiles"])
	}
}

func TestQueryColumnsDropsJoinColumn(t *testing.T) {
	c := NewClient(newFakeBackend(), []string{"profiles", "transactions"})
	got, err := c.Query(context.Background(), "transactions", "amount_paid, profiles(username)")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	keys := make([]string, 0, len(got[0]))
	for k := range got[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !reflect.DeepEqual(keys, []string{"amount_paid", "profiles"}) {
		t.Fatalf("unexpected columns %v", keys)
	}
}

func TestQueryRejectsUnknownTable(t *testing.T) {
	b := newFakeBackend()
	c := NewClient(b, []string{"transactions"})
	_, err := c.Query(context.Background(), "secrets", "*")
	var unknown UnknownTableError
	if !errors.As(err, &unknown) || unknown.Table != "secrets" {
		t.Fatalf("expected unknown table error, got %v", err)
	}
	if _, err := c.Query(context.Background(), "transactions", "*, profiles(username)"); !errors.As(err, &unknown) {
		t.Fatalf("expected relation to be checked, got %v", err)
	}
	if len(b.lists) != 0 {
		t.Fatalf("backend should not be reached, got %v", b.lists)
	}
}

func TestQueryEmptyTableReturnsEmptySlice(t *testing.T) {
	c := NewClient(newFakeBackend(), []string{"campaigns"})
	got, err := c.Query(context.Background(), "campaigns", "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestDecode(t *testing.T) {
	type txn struct {
		ID         string    `json:"id"`
		AmountPaid float64   `json:"amount_paid"`
		CreatedAt  time.Time `json:"created_at"`
	}
	got, err := Decode[txn]([]Record{{"id": "t1", "amount_paid": 9.99, "created_at": "2025-11-01T10:00:00Z"}})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].ID != "t1" || got[0].AmountPaid != 9.99 || got[0].CreatedAt.Day() != 1 {
		t.Fatalf("unexpected decode %#v", got[0])
	}
}
