package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

// DefaultPartition groups every record of a table under one partition key.
const DefaultPartition = "bigslick"

var (
	// ErrNotFound is returned when the table or entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record with the same id exists.
	ErrConflict = errors.New("conflict")
)

// Tables implements tables.Backend on Azure Table storage. Every logical
// table maps to an Azure table of the same name; the record id is the RowKey.
type Tables struct {
	svc       *aztables.ServiceClient
	partition string
}

func tablesClientOptions() *aztables.ClientOptions {
	return &aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

// NewTables creates a table backend from the given connection string.
func NewTables(connStr, partition string) (*Tables, error) {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, tablesClientOptions())
	if err != nil {
		return nil, err
	}
	if partition == "" {
		partition = DefaultPartition
	}
	return &Tables{svc: svc, partition: partition}, nil
}

// Ping lists at most one table to check connectivity.
func (s *Tables) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.svc.NewListTablesPager(&aztables.ListTablesOptions{Top: &top})
	if pager.More() {
		_, err := pager.NextPage(ctx)
		return err
	}
	return nil
}

func (s *Tables) List(ctx context.Context, table string, columns []string, filter *tables.Filter) ([]tables.Record, error) {
	opts := &aztables.ListEntitiesOptions{}
	f := "PartitionKey eq " + quoteODataString(s.partition)
	if filter != nil {
		expr, err := odataFilter(*filter)
		if err != nil {
			return nil, err
		}
		f += " and " + expr
	}
	opts.Filter = &f
	if columns != nil {
		sel := selectClause(columns)
		opts.Select = &sel
	}

	pager := s.svc.NewClient(table).NewListEntitiesPager(opts)
	records := []tables.Record{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, translateError(err)
		}
		for _, e := range resp.Entities {
			rec, err := entityToRecord(e)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (s *Tables) Insert(ctx context.Context, table string, records []tables.Record) ([]tables.Record, error) {
	client := s.svc.NewClient(table)
	out := make([]tables.Record, 0, len(records))
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			id = uuid.NewString()
		}
		data, err := recordToEntity(rec, s.partition, id)
		if err != nil {
			return out, err
		}
		if _, err := client.AddEntity(ctx, data, nil); err != nil {
			return out, translateError(err)
		}
		stored := make(tables.Record, len(rec)+1)
		for k, v := range rec {
			stored[k] = v
		}
		stored["id"] = id
		out = append(out, stored)
	}
	return out, nil
}

func (s *Tables) Update(ctx context.Context, table string, filter tables.Filter, patch tables.Record) (int, error) {
	matches, err := s.List(ctx, table, []string{"id"}, &filter)
	if err != nil {
		return 0, err
	}
	client := s.svc.NewClient(table)
	mode := aztables.UpdateModeMerge
	for i, m := range matches {
		data, err := recordToEntity(patch, s.partition, m.ID())
		if err != nil {
			return i, err
		}
		if _, err := client.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: mode}); err != nil {
			return i, translateError(err)
		}
	}
	return len(matches), nil
}

func (s *Tables) Delete(ctx context.Context, table string, filter tables.Filter) (int, error) {
	matches, err := s.List(ctx, table, []string{"id"}, &filter)
	if err != nil {
		return 0, err
	}
	client := s.svc.NewClient(table)
	for i, m := range matches {
		if _, err := client.DeleteEntity(ctx, s.partition, m.ID(), nil); err != nil {
			return i, translateError(err)
		}
	}
	return len(matches), nil
}

func translateError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case 404:
		return fmt.Errorf("%w: %s", ErrNotFound, respErr.ErrorCode)
	case 409:
		return fmt.Errorf("%w: %s", ErrConflict, respErr.ErrorCode)
	}
	return err
}

func columnName(col string) string {
	if col == "id" {
		return "RowKey"
	}
	return col
}

func selectClause(columns []string) string {
	names := make([]string, 0, len(columns)+1)
	names = append(names, "RowKey")
	for _, c := range columns {
		if c == "id" {
			continue
		}
		names = append(names, c)
	}
	return strings.Join(names, ",")
}

func quoteODataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func odataFilter(f tables.Filter) (string, error) {
	if !tables.ValidColumn(f.Column) {
		return "", fmt.Errorf("invalid filter column %q", f.Column)
	}
	col := columnName(f.Column)
	switch v := f.Value.(type) {
	case string:
		return col + " eq " + quoteODataString(v), nil
	case bool:
		return col + " eq " + strconv.FormatBool(v), nil
	case int:
		return col + " eq " + strconv.Itoa(v), nil
	case int64:
		return col + " eq " + strconv.FormatInt(v, 10) + "L", nil
	case float64:
		return col + " eq " + strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported filter value %T", f.Value)
	}
}

const odataTypeSuffix = "@odata.type"

func entityToRecord(data []byte) (tables.Record, error) {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	rec := make(tables.Record, len(raw))
	for k, v := range raw {
		switch {
		case k == "PartitionKey", k == "Timestamp", strings.HasPrefix(k, "odata."), strings.HasSuffix(k, odataTypeSuffix):
			continue
		case k == "RowKey":
			rec["id"] = v
		default:
			rec[k] = v
		}
	}
	for k, v := range raw {
		if !strings.HasSuffix(k, odataTypeSuffix) || v != "Edm.Int64" {
			continue
		}
		name := strings.TrimSuffix(k, odataTypeSuffix)
		if s, ok := rec[name].(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				rec[name] = n
			}
		}
	}
	return rec, nil
}

func recordToEntity(rec tables.Record, partition, id string) ([]byte, error) {
	ent := make(map[string]any, len(rec)+2)
	for k, v := range rec {
		if k == "id" {
			continue
		}
		if !tables.ValidColumn(k) {
			return nil, fmt.Errorf("invalid column %q", k)
		}
		switch v.(type) {
		case map[string]any, tables.Record, []any:
			return nil, fmt.Errorf("column %q: nested values are not supported", k)
		}
		ent[k] = v
	}
	ent["PartitionKey"] = partition
	ent["RowKey"] = id
	return sonic.Marshal(ent)
}
