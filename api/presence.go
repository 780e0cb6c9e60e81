package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const headerPeerID = "X-Peer-Id"

type presenceResponse struct {
	Channels []string       `json:"channels"`
	Counts   map[string]int `json:"counts"`
	Total    int            `json:"total"`
}

func (s *Server) presenceSnapshot() presenceResponse {
	counts := s.presence.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	return presenceResponse{Channels: s.presence.Channels(), Counts: counts, Total: total}
}

func (s *Server) getPresence(c echo.Context) error {
	if s.presence == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "presence disabled"})
	}
	return c.JSON(http.StatusOK, s.presenceSnapshot())
}

func (s *Server) streamPresence(c echo.Context) error {
	if s.presence == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "presence disabled"})
	}
	changes, release := s.presence.Subscribe()
	defer release()
	return stream(c, changes, s.keepAlive, func() (any, error) {
		return s.presenceSnapshot(), nil
	})
}

type joinResponse struct {
	Channel string `json:"channel"`
	PeerID  string `json:"peerId"`
}

// peerID identifies one connection. Every tab sends its own id so several
// tabs of one user count separately.
func peerID(c echo.Context) string {
	id := c.Request().Header.Get(headerPeerID)
	if id == "" {
		id = c.QueryParam("peer")
	}
	return id
}

func (s *Server) joinPresence(c echo.Context) error {
	channel := c.Param("channel")
	if s.tracker == nil || s.presence == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "presence disabled"})
	}
	if !s.presence.Tracks(channel) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown channel"})
	}
	id := peerID(c)
	if id == "" {
		id = uuid.NewString()
	}
	meta := map[string]any{"user": userFrom(c)}
	if err := s.tracker.Join(c.Request().Context(), channel, id, meta); err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	return c.JSON(http.StatusOK, joinResponse{Channel: channel, PeerID: id})
}

func (s *Server) leavePresence(c echo.Context) error {
	channel := c.Param("channel")
	if s.tracker == nil || s.presence == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "presence disabled"})
	}
	if !s.presence.Tracks(channel) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown channel"})
	}
	id := peerID(c)
	if id == "" {
		return s.respond(c, badRequest("peer id is required"), http.StatusBadRequest)
	}
	if err := s.tracker.Leave(c.Request().Context(), channel, id); err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	return c.NoContent(http.StatusNoContent)
}
