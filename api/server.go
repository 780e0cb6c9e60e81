package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
)

// Options carries the collaborators of the HTTP layer. Tables, Board and Auth
// are required; the rest are optional.
type Options struct {
	Tables   TableStore
	Board    BoardService
	Auth     Authenticator
	Presence PresenceCounter
	Tracker  PresenceTracker
	Deduper  Deduper
	Activity *ActivitySender
	// Probes are checked by /healthz and the admin status view.
	Probes   map[string]Pinger
	Roster   []domain.RosterMember
	Location *time.Location
	Log      *log.Logger
	Now      func() time.Time
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	tables   TableStore
	board    BoardService
	auth     Authenticator
	presence PresenceCounter
	tracker  PresenceTracker
	deduper  Deduper
	activity *ActivitySender
	probes   map[string]Pinger
	roster   []domain.RosterMember
	loc      *time.Location
	log      *log.Logger
	now      func() time.Time
	started  time.Time

	keepAlive time.Duration
}

// NewServer applies defaults to opts.
func NewServer(opts Options) *Server {
	s := &Server{
		tables:    opts.Tables,
		board:     opts.Board,
		auth:      opts.Auth,
		presence:  opts.Presence,
		tracker:   opts.Tracker,
		deduper:   opts.Deduper,
		activity:  opts.Activity,
		probes:    opts.Probes,
		roster:    opts.Roster,
		loc:       opts.Location,
		log:       opts.Log,
		now:       opts.Now,
		keepAlive: streamKeepAlive,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.log == nil {
		s.log = log.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.roster == nil {
		s.roster = domain.DefaultRoster
	}
	s.started = s.now()
	return s
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, s *Server) {
	e.GET("/healthz", s.healthz)

	g := e.Group("/api", s.instrument, s.requireUser)
	g.GET("/session", s.getSession)

	g.GET("/tables/:table", s.listTable)
	g.POST("/tables/:table", s.insertTable)
	g.PATCH("/tables/:table", s.updateTable)
	g.DELETE("/tables/:table", s.deleteTable)

	g.GET("/board", s.getBoard)
	g.GET("/board/views", s.getBoardViews)
	g.GET("/board/roster", s.getRoster)
	g.GET("/board/stream", s.streamBoard)
	g.POST("/board/tasks", s.createTask)
	g.PUT("/board/tasks/:id", s.updateTask)
	g.DELETE("/board/tasks/:id", s.deleteTask)
	g.POST("/board/moves", s.moveTask)

	g.GET("/presence", s.getPresence)
	g.GET("/presence/stream", s.streamPresence)
	g.POST("/presence/:channel/join", s.joinPresence)
	g.POST("/presence/:channel/leave", s.leavePresence)

	registerViews(g, s)
}

// localNow is the current time in the dashboard's reporting location.
func (s *Server) localNow() time.Time {
	return s.now().In(s.loc)
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	failed := map[string]string{}
	for name, p := range s.probes {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.JSON(http.StatusServiceUnavailable, failed)
	}
	return c.NoContent(http.StatusOK)
}

type sessionResponse struct {
	UserID        string `json:"userId"`
	Authenticated bool   `json:"authenticated"`
}

func (s *Server) getSession(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{UserID: userFrom(c), Authenticated: true})
}

// record sends an audit entry for a successful write. Failures are logged and
// never fail the request.
func (s *Server) record(c echo.Context, action, table string, data any) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Send(userFrom(c), newActivity(action, table, data)); err != nil {
		s.log.WithError(err).WithFields(log.Fields{"action": action, "table": table}).Warn("activity not recorded")
	}
}

func confirmed(c echo.Context) bool {
	return c.QueryParam("confirm") == "true"
}
