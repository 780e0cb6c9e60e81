package storage

import (
	"reflect"
	"strings"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

func TestEntityToRecord(t *testing.T) {
	payload := `{
		"odata.etag": "W/\"datetime'2025-11-01'\"",
		"PartitionKey": "bigslick",
		"RowKey": "u1",
		"Timestamp": "2025-11-01T10:00:00Z",
		"username": "ace",
		"chips_won_total": "9000000000",
		"chips_won_total@odata.type": "Edm.Int64",
		"level": 3,
		"is_active": true
	}`
	rec, err := entityToRecord([]byte(payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := tables.Record{
		"id":              "u1",
		"username":        "ace",
		"chips_won_total": int64(9000000000),
		"level":           float64(3),
		"is_active":       true,
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("want %#v, got %#v", want, rec)
	}
}

func TestRecordToEntity(t *testing.T) {
	data, err := recordToEntity(tables.Record{"id": "ignored", "username": "ace", "level": 2}, "p", "row-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got map[string]any
	if err := sonic.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["PartitionKey"] != "p" || got["RowKey"] != "row-1" || got["username"] != "ace" {
		t.Fatalf("unexpected entity %s", data)
	}
	if _, ok := got["id"]; ok {
		t.Fatalf("id must be stored as RowKey only")
	}

	if _, err := recordToEntity(tables.Record{"profiles": map[string]any{"username": "x"}}, "p", "r"); err == nil {
		t.Fatalf("expected nested value to be rejected")
	}
	if _, err := recordToEntity(tables.Record{"bad-name": 1}, "p", "r"); err == nil {
		t.Fatalf("expected invalid column to be rejected")
	}
}

func TestODataFilter(t *testing.T) {
	tests := []struct {
		filter tables.Filter
		want   string
	}{
		{tables.Filter{Column: "id", Value: "u1"}, "RowKey eq 'u1'"},
		{tables.Filter{Column: "username", Value: "o'brien"}, "username eq 'o''brien'"},
		{tables.Filter{Column: "is_active", Value: false}, "is_active eq false"},
		{tables.Filter{Column: "level", Value: 3}, "level eq 3"},
		{tables.Filter{Column: "chips", Value: int64(10)}, "chips eq 10L"},
	}
	for _, tt := range tests {
		got, err := odataFilter(tt.filter)
		if err != nil {
			t.Fatalf("filter %v: %v", tt.filter, err)
		}
		if got != tt.want {
			t.Fatalf("want %q, got %q", tt.want, got)
		}
	}
	if _, err := odataFilter(tables.Filter{Column: "x or 1", Value: "y"}); err == nil {
		t.Fatalf("expected invalid column error")
	}
}

func TestSelectClause(t *testing.T) {
	got := selectClause([]string{"id", "username", "email"})
	if got != "RowKey,username,email" {
		t.Fatalf("unexpected select %q", got)
	}
	if !strings.HasPrefix(selectClause(nil), "RowKey") {
		t.Fatalf("RowKey must always be selected")
	}
}
