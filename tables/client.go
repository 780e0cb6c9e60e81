package tables

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
)

// Record is a single row as returned by the hosted store.
type Record map[string]any

// ID returns the record id or "" when missing.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Filter matches records whose Column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Backend is the tabular capability of the hosted store.
type Backend interface {
	List(ctx context.Context, table string, columns []string, filter *Filter) ([]Record, error)
	Insert(ctx context.Context, table string, records []Record) ([]Record, error)
	Update(ctx context.Context, table string, filter Filter, patch Record) (int, error)
	Delete(ctx context.Context, table string, filter Filter) (int, error)
}

// Querier runs a read with a selection string.
type Querier interface {
	Query(ctx context.Context, table, selection string) ([]Record, error)
}

// UnknownTableError is returned for tables outside the allow list.
type UnknownTableError struct {
	Table string
}

func (e UnknownTableError) Error() string {
	return fmt.Sprintf("unknown table %q", e.Table)
}

const joinColumn = "user_id"

// Client is the data access facade used by handlers and views.
type Client struct {
	backend Backend
	allowed map[string]struct{}
}

// NewClient restricts backend access to the given tables.
func NewClient(backend Backend, tables []string) *Client {
	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}
	return &Client{backend: backend, allowed: allowed}
}

func (c *Client) check(table string) error {
	if _, ok := c.allowed[table]; !ok {
		return UnknownTableError{Table: table}
	}
	return nil
}

// Query returns every record of table shaped by the selection.
func (c *Client) Query(ctx context.Context, table, selection string) ([]Record, error) {
	if err := c.check(table); err != nil {
		return nil, err
	}
	sel, err := ParseSelection(selection)
	if err != nil {
		return nil, err
	}
	for _, rel := range sel.Relations {
		if err := c.check(rel.Table); err != nil {
			return nil, err
		}
	}

	columns := sel.Columns
	dropJoin := false
	if columns != nil && len(sel.Relations) > 0 && !contains(columns, joinColumn) {
		columns = append(append([]string(nil), columns...), joinColumn)
		dropJoin = true
	}

	records, err := c.backend.List(ctx, table, columns, nil)
	if err != nil {
		return nil, err
	}
	for _, rel := range sel.Relations {
		if err := c.expand(ctx, records, rel); err != nil {
			return nil, err
		}
	}
	if dropJoin {
		for _, r := range records {
			delete(r, joinColumn)
		}
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (c *Client) expand(ctx context.Context, records []Record, rel Relation) error {
	columns := rel.Columns
	if columns != nil && !contains(columns, "id") {
		columns = append(append([]string(nil), columns...), "id")
	}
	related, err := c.backend.List(ctx, rel.Table, columns, nil)
	if err != nil {
		return fmt.Errorf("expand %s: %w", rel.Table, err)
	}
	byID := make(map[string]Record, len(related))
	for _, r := range related {
		byID[r.ID()] = r
	}
	for _, rec := range records {
		key, _ := rec[joinColumn].(string)
		match, ok := byID[key]
		if !ok || key == "" {
			rec[rel.Table] = nil
			continue
		}
		rec[rel.Table] = project(match, rel.Columns)
	}
	return nil
}

func project(r Record, columns []string) Record {
	if columns == nil {
		out := make(Record, len(r))
		for k, v := range r {
			out[k] = v
		}
		return out
	}
	out := make(Record, len(columns))
	for _, col := range columns {
		if v, ok := r[col]; ok {
			out[col] = v
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c *Client) Insert(ctx context.Context, table string, records ...Record) ([]Record, error) {
	if err := c.check(table); err != nil {
		return nil, err
	}
	return c.backend.Insert(ctx, table, records)
}

func (c *Client) Update(ctx context.Context, table string, filter Filter, patch Record) (int, error) {
	if err := c.check(table); err != nil {
		return 0, err
	}
	if !ValidColumn(filter.Column) {
		return 0, fmt.Errorf("invalid filter column %q", filter.Column)
	}
	return c.backend.Update(ctx, table, filter, patch)
}

func (c *Client) Delete(ctx context.Context, table string, filter Filter) (int, error) {
	if err := c.check(table); err != nil {
		return 0, err
	}
	if !ValidColumn(filter.Column) {
		return 0, fmt.Errorf("invalid filter column %q", filter.Column)
	}
	return c.backend.Delete(ctx, table, filter)
}

// Decode converts records into typed values through their JSON form.
func Decode[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}
	data, err := sonic.Marshal(records)
	if err != nil {
		return nil, err
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
