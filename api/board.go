package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/kanban"
)

type columnInfo struct {
	Status domain.Status `json:"status"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
}

type boardResponse struct {
	Columns domain.Columns `json:"columns"`
	Order   []columnInfo   `json:"order"`
}

func newBoardResponse(cols domain.Columns) boardResponse {
	order := make([]columnInfo, 0, len(domain.Statuses))
	for _, st := range domain.Statuses {
		order = append(order, columnInfo{Status: st, Label: st.Label(), Count: len(cols[st])})
	}
	return boardResponse{Columns: cols, Order: order}
}

func (s *Server) getBoard(c echo.Context) error {
	m := metricsFrom(c)
	fetchStart := time.Now()
	cols, err := s.board.Board(c.Request().Context(), userFrom(c))
	m.ObserveFetch(time.Since(fetchStart))
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	resp := newBoardResponse(cols)
	total := 0
	for _, col := range resp.Order {
		total += col.Count
	}
	m.SetRecords(total)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getBoardViews(c echo.Context) error {
	sum, err := s.board.Summary(c.Request().Context(), userFrom(c))
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, sum)
}

func (s *Server) getRoster(c echo.Context) error {
	return c.JSON(http.StatusOK, s.roster)
}

func (s *Server) streamBoard(c echo.Context) error {
	owner := userFrom(c)
	changes, release := s.board.Subscribe(owner)
	defer release()
	return stream(c, changes, s.keepAlive, func() (any, error) {
		cols, err := s.board.Board(c.Request().Context(), owner)
		if err != nil {
			return nil, err
		}
		return newBoardResponse(cols), nil
	})
}

func (s *Server) createTask(c echo.Context) error {
	var f domain.TaskFields
	if err := decodeBody(c.Request().Body, &f); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	task, err := s.board.Create(c.Request().Context(), userFrom(c), f)
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) updateTask(c echo.Context) error {
	var f domain.TaskFields
	if err := decodeBody(c.Request().Body, &f); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	task, err := s.board.Update(c.Request().Context(), userFrom(c), c.Param("id"), f)
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	task, err := s.board.Delete(c.Request().Context(), userFrom(c), c.Param("id"), confirmed(c))
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) moveTask(c echo.Context) error {
	var mv kanban.Move
	if err := decodeBody(c.Request().Body, &mv); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	if mv.TaskID == "" {
		return s.respond(c, badRequest("taskId is required"), http.StatusBadRequest)
	}
	ctx := c.Request().Context()
	owner := userFrom(c)
	if err := s.board.Move(ctx, owner, mv); err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	cols, err := s.board.Board(ctx, owner)
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, newBoardResponse(cols))
}
