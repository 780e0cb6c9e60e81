package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

const maxBodySize = 64 * 1024 // 64 KiB

type tableResponse struct {
	Data []tables.Record `json:"data"`
}

type mutationResponse struct {
	Affected int `json:"affected"`
}

func (s *Server) listTable(c echo.Context) error {
	m := metricsFrom(c)
	table := c.Param("table")
	selection := c.QueryParam("select")
	if selection == "" {
		selection = "*"
	}
	if _, err := tables.ParseSelection(selection); err != nil {
		return s.respond(c, badRequest(err.Error()), http.StatusBadRequest)
	}

	fetchStart := time.Now()
	data, err := s.tables.Query(c.Request().Context(), table, selection)
	m.ObserveFetch(time.Since(fetchStart))
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	m.SetRecords(len(data))

	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, tableResponse{Data: data})
	m.ObserveEncode(time.Since(encodeStart))
	return err
}

func (s *Server) insertTable(c echo.Context) error {
	ctx := c.Request().Context()
	table := c.Param("table")
	records, err := decodeRecords(c.Request().Body)
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}

	userID := userFrom(c)
	key := c.Request().Header.Get(headerIdempotency)
	if len(key) > maxIdempotencyKeyLen {
		return s.respond(c, badRequest("idempotency key too long"), http.StatusBadRequest)
	}
	dedupeKey := table + ":" + key
	if key != "" && s.deduper != nil {
		added, err := s.deduper.Add(ctx, userID, dedupeKey)
		if err != nil {
			return s.respond(c, err, http.StatusServiceUnavailable)
		}
		if !added {
			metricsFrom(c).SetErrorStage("duplicate")
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}
	}

	inserted, err := s.tables.Insert(ctx, table, records...)
	if err != nil {
		if key != "" && s.deduper != nil {
			if rerr := s.deduper.Remove(ctx, userID, dedupeKey); rerr != nil {
				s.log.WithError(rerr).WithField("key", key).Error("dedupe rollback failed")
			}
		}
		return s.respond(c, err, http.StatusBadGateway)
	}
	metricsFrom(c).SetRecords(len(inserted))
	s.record(c, "insert", table, inserted)
	return c.JSON(http.StatusCreated, tableResponse{Data: inserted})
}

func (s *Server) updateTable(c echo.Context) error {
	table := c.Param("table")
	filter, err := filterFrom(c)
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	var patch tables.Record
	if err := decodeBody(c.Request().Body, &patch); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	if len(patch) == 0 {
		return s.respond(c, badRequest("empty patch"), http.StatusBadRequest)
	}
	n, err := s.tables.Update(c.Request().Context(), table, filter, patch)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	s.record(c, "update", table, map[string]any{"filter": filter, "patch": patch})
	return c.JSON(http.StatusOK, mutationResponse{Affected: n})
}

func (s *Server) deleteTable(c echo.Context) error {
	table := c.Param("table")
	filter, err := filterFrom(c)
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	if !confirmed(c) {
		return s.respond(c, domain.ErrConfirmationRequired, http.StatusConflict)
	}
	n, err := s.tables.Delete(c.Request().Context(), table, filter)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	s.record(c, "delete", table, filter)
	return c.JSON(http.StatusOK, mutationResponse{Affected: n})
}

func filterFrom(c echo.Context) (tables.Filter, error) {
	column := c.QueryParam("column")
	if column == "" {
		return tables.Filter{}, badRequest("column is required")
	}
	if !tables.ValidColumn(column) {
		return tables.Filter{}, badRequest("invalid column")
	}
	return tables.Filter{Column: column, Value: c.QueryParam("value")}, nil
}

func readBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodySize+1))
	if err != nil {
		return nil, badRequest("invalid body")
	}
	if len(data) > maxBodySize {
		return nil, badRequest("body too large")
	}
	return data, nil
}

func decodeBody(body io.Reader, v any) error {
	data, err := readBody(body)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return badRequest("invalid body")
	}
	return nil
}

// decodeRecords accepts a single object or an array of objects.
func decodeRecords(body io.Reader) ([]tables.Record, error) {
	data, err := readBody(body)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	var records []tables.Record
	if len(data) > 0 && data[0] == '[' {
		err = sonic.Unmarshal(data, &records)
	} else {
		var one tables.Record
		err = sonic.Unmarshal(data, &one)
		records = []tables.Record{one}
	}
	if err != nil {
		return nil, badRequest("invalid body")
	}
	if len(records) == 0 {
		return nil, badRequest("no records")
	}
	for _, r := range records {
		if len(r) == 0 {
			return nil, badRequest("empty record")
		}
	}
	return records, nil
}
