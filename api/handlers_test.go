package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/kanban"
	"github.com/Abhinavmohindersingh/bigslick-admin/storage"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

const goodToken = "Bearer good.token.sig"

var fixedNow = time.Date(2025, time.November, 17, 9, 30, 0, 0, time.UTC)

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	switch h {
	case "":
		return "", errMissingAuthorization
	case goodToken:
		return "admin-1", nil
	}
	return "", errBadAuthorization
}

type recordingSink struct {
	mu    sync.Mutex
	users []string
	acts  []domain.Activity
}

func (r *recordingSink) EnqueueActivities(_ context.Context, userID string, acts []domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for range acts {
		r.users = append(r.users, userID)
	}
	r.acts = append(r.acts, acts...)
	return nil
}

func (r *recordingSink) snapshot() []domain.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Activity(nil), r.acts...)
}

type fakePresence struct {
	counts map[string]int
}

func (f fakePresence) Counts() map[string]int { return f.counts }
func (f fakePresence) Channels() []string     { return []string{"poker", "slots"} }
func (f fakePresence) Tracks(ch string) bool  { return ch == "poker" || ch == "slots" }
func (f fakePresence) Subscribe() (<-chan struct{}, func()) {
	return make(chan struct{}), func() {}
}

type fakeTracker struct {
	mu     sync.Mutex
	joined map[string]map[string]any
	left   []string
}

func (f *fakeTracker) Join(_ context.Context, channel, peerID string, meta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joined == nil {
		f.joined = map[string]map[string]any{}
	}
	f.joined[channel+"/"+peerID] = meta
	return nil
}

func (f *fakeTracker) Leave(_ context.Context, channel, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left = append(f.left, channel+"/"+peerID)
	return nil
}

type testEnv struct {
	e       *echo.Echo
	mem     *storage.Memory
	mr      *miniredis.Miniredis
	sink    *recordingSink
	sender  *ActivitySender
	tracker *fakeTracker
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	mem := storage.NewMemory()
	mem.Seed(domain.TableProfiles,
		tables.Record{"id": "u1", "username": "ace", "email": "ace@example.com", "is_active": true, "created_at": "2025-11-17T08:00:00Z"},
		tables.Record{"id": "u2", "username": "bluff", "email": "bluff@example.com", "is_active": true, "created_at": "2025-11-12T10:00:00Z"},
	)
	mem.Seed(domain.TableWallets,
		tables.Record{"id": "w1", "user_id": "u1", "chips": 1000, "level": 3, "experience": 300, "games_played": 10, "games_won": 4},
	)

	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	sender := NewActivitySender(sink, SenderConfig{Workers: 1, Buffer: 16}, logger)
	t.Cleanup(sender.Close)
	tracker := &fakeTracker{}

	opts := Options{
		Tables:   tables.NewClient(mem, domain.KnownTables),
		Board:    kanban.NewService(storage.NewRedisBoardStore(rc), logger),
		Auth:     mockAuth{},
		Presence: fakePresence{counts: map[string]int{"poker": 3, "slots": 1}},
		Tracker:  tracker,
		Deduper:  NewRedisDeduper(rc, time.Minute),
		Activity: sender,
		Log:      logger,
		Now:      func() time.Time { return fixedNow },
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	e := echo.New()
	Register(e, NewServer(opts))
	return &testEnv{e: e, mem: mem, mr: mr, sink: sink, sender: sender, tracker: tracker}
}

func (env *testEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set(echo.HeaderAuthorization, goodToken)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := sonic.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestSessionRequiresBearer(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(http.MethodGet, "/api/session", "")
	expectStatus(t, rec, http.StatusOK)
	sess := decodeJSON[sessionResponse](t, rec)
	if sess.UserID != "admin-1" || !sess.Authenticated {
		t.Fatalf("unexpected session %+v", sess)
	}

	rec = env.do(http.MethodGet, "/api/session", "", echo.HeaderAuthorization, "Bearer bad.token.sig")
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestListTable(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/tables/profiles?select=id,username", "")
	expectStatus(t, rec, http.StatusOK)
	resp := decodeJSON[tableResponse](t, rec)
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(resp.Data))
	}
	if _, ok := resp.Data[0]["email"]; ok {
		t.Fatalf("projection leaked email: %v", resp.Data[0])
	}

	rec = env.do(http.MethodGet, "/api/tables/user_wallet?select=*,profiles(username)", "")
	expectStatus(t, rec, http.StatusOK)
	wallets := decodeJSON[tableResponse](t, rec)
	if len(wallets.Data) != 1 || wallets.Data[0]["profiles"] == nil {
		t.Fatalf("expected embedded profile, got %v", wallets.Data)
	}

	expectStatus(t, env.do(http.MethodGet, "/api/tables/secrets", ""), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodGet, "/api/tables/profiles?select=id;drop", ""), http.StatusBadRequest)
}

func TestInsertTableIdempotency(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/tables/profiles", `{"username":"neo","email":"neo@example.com"}`, headerIdempotency, "k1")
	expectStatus(t, rec, http.StatusCreated)
	created := decodeJSON[tableResponse](t, rec)
	if len(created.Data) != 1 || created.Data[0].ID() == "" {
		t.Fatalf("expected generated id, got %v", created.Data)
	}

	rec = env.do(http.MethodPost, "/api/tables/profiles", `{"username":"neo","email":"neo@example.com"}`, headerIdempotency, "k1")
	expectStatus(t, rec, http.StatusConflict)

	rows, _ := env.mem.List(context.Background(), domain.TableProfiles, nil, nil)
	if len(rows) != 3 {
		t.Fatalf("expected 3 profiles after replay, got %d", len(rows))
	}

	// a failed insert releases its key
	rec = env.do(http.MethodPost, "/api/tables/profiles", `{"id":"u1"}`, headerIdempotency, "k2")
	expectStatus(t, rec, http.StatusConflict)
	if env.mr.Exists("admin-1:idem:profiles:k2") {
		t.Fatalf("expected idempotency key to be released")
	}

	expectStatus(t, env.do(http.MethodPost, "/api/tables/profiles", `{}`), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/tables/profiles", `not json`), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/tables/profiles", `{"a":1}`, headerIdempotency, strings.Repeat("k", 200)), http.StatusBadRequest)
}

func TestInsertTableAcceptsArray(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/api/tables/team_members", `[{"first_name":"A"},{"first_name":"B"}]`)
	expectStatus(t, rec, http.StatusCreated)
	if got := decodeJSON[tableResponse](t, rec); len(got.Data) != 2 {
		t.Fatalf("expected 2 inserted, got %d", len(got.Data))
	}
}

func TestUpdateAndDeleteTable(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPatch, "/api/tables/profiles?column=id&value=u1", `{"username":"ace2"}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON[mutationResponse](t, rec); got.Affected != 1 {
		t.Fatalf("expected 1 affected, got %d", got.Affected)
	}
	expectStatus(t, env.do(http.MethodPatch, "/api/tables/profiles?column=id&value=u1", `{}`), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPatch, "/api/tables/profiles", `{"a":1}`), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPatch, "/api/tables/profiles?column=id;x&value=u1", `{"a":1}`), http.StatusBadRequest)

	expectStatus(t, env.do(http.MethodDelete, "/api/tables/profiles?column=id&value=u2", ""), http.StatusConflict)
	rows, _ := env.mem.List(context.Background(), domain.TableProfiles, nil, nil)
	if len(rows) != 2 {
		t.Fatalf("unconfirmed delete removed rows")
	}

	rec = env.do(http.MethodDelete, "/api/tables/profiles?column=id&value=u2&confirm=true", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON[mutationResponse](t, rec); got.Affected != 1 {
		t.Fatalf("expected 1 deleted, got %d", got.Affected)
	}

	env.sender.Close()
	acts := env.sink.snapshot()
	if len(acts) != 2 {
		t.Fatalf("expected update and delete activity, got %d", len(acts))
	}
	if acts[0].Action != "update" || acts[1].Action != "delete" || acts[1].Table != domain.TableProfiles {
		t.Fatalf("unexpected activities %+v", acts)
	}
}

func TestBoardFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/board", "")
	expectStatus(t, rec, http.StatusOK)
	board := decodeJSON[boardResponse](t, rec)
	if len(board.Order) != len(domain.Statuses) || board.Order[0].Status != domain.StatusTodo || board.Order[0].Count != 2 {
		t.Fatalf("unexpected initial board %+v", board.Order)
	}
	if board.Order[3].Label != "Production Ready" {
		t.Fatalf("unexpected label %q", board.Order[3].Label)
	}

	rec = env.do(http.MethodPost, "/api/board/tasks", `{"title":"  Ship release ","tags":["ops","ops"]}`)
	expectStatus(t, rec, http.StatusCreated)
	task := decodeJSON[domain.Task](t, rec)
	if task.Title != "Ship release" || task.Status != domain.StatusTodo || task.Priority != domain.PriorityMedium || len(task.Tags) != 1 {
		t.Fatalf("unexpected task %+v", task)
	}

	board = decodeJSON[boardResponse](t, env.do(http.MethodGet, "/api/board", ""))
	if todo := board.Columns[domain.StatusTodo]; len(todo) != 3 || todo[0].ID != task.ID {
		t.Fatalf("expected new task at top of todo, got %+v", todo)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/board/tasks", `{"title":"   "}`), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/board/tasks", `{"title":"x","priority":"whenever"}`), http.StatusBadRequest)

	rec = env.do(http.MethodPut, "/api/board/tasks/"+task.ID, `{"title":"Ship it","status":"review"}`)
	expectStatus(t, rec, http.StatusOK)
	if updated := decodeJSON[domain.Task](t, rec); updated.Status != domain.StatusReview || !updated.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("unexpected update %+v", updated)
	}
	expectStatus(t, env.do(http.MethodPut, "/api/board/tasks/missing", `{"title":"x"}`), http.StatusNotFound)

	expectStatus(t, env.do(http.MethodDelete, "/api/board/tasks/"+task.ID, ""), http.StatusConflict)
	expectStatus(t, env.do(http.MethodDelete, "/api/board/tasks/"+task.ID+"?confirm=true", ""), http.StatusOK)
	expectStatus(t, env.do(http.MethodDelete, "/api/board/tasks/"+task.ID+"?confirm=true", ""), http.StatusNotFound)

	want := 0
	for _, col := range domain.SampleColumns() {
		want += len(col)
	}
	sum := decodeJSON[domain.Summary](t, env.do(http.MethodGet, "/api/board/views", ""))
	if sum.Total != want {
		t.Fatalf("expected summary total %d, got %d", want, sum.Total)
	}
}

func TestBoardMove(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/board/moves", `{"taskId":"2","source":{"status":"todo","index":0},"destination":{"status":"done","index":0}}`)
	expectStatus(t, rec, http.StatusOK)
	board := decodeJSON[boardResponse](t, rec)
	if done := board.Columns[domain.StatusDone]; len(done) == 0 || done[0].ID != "2" || done[0].Status != domain.StatusDone {
		t.Fatalf("expected task 2 at top of done, got %+v", done)
	}
	if todo := board.Columns[domain.StatusTodo]; len(todo) != 1 || todo[0].ID != "5" {
		t.Fatalf("unexpected todo column %+v", todo)
	}

	cases := []struct {
		name string
		body string
		want int
	}{
		{"mismatch", `{"taskId":"2","source":{"status":"todo","index":0},"destination":{"status":"review","index":0}}`, http.StatusBadRequest},
		{"out of range", `{"taskId":"5","source":{"status":"todo","index":0},"destination":{"status":"review","index":99}}`, http.StatusBadRequest},
		{"bad status", `{"taskId":"5","source":{"status":"todo","index":0},"destination":{"status":"archived","index":0}}`, http.StatusBadRequest},
		{"no task", `{"source":{"status":"todo","index":0},"destination":{"status":"done","index":0}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, env.do(http.MethodPost, "/api/board/moves", tc.body), tc.want)
		})
	}
}

func TestBoardRoster(t *testing.T) {
	env := newTestEnv(t)
	roster := decodeJSON[[]domain.RosterMember](t, env.do(http.MethodGet, "/api/board/roster", ""))
	if len(roster) != len(domain.DefaultRoster) {
		t.Fatalf("unexpected roster %+v", roster)
	}
}

func TestPresenceHandlers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/presence", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON[presenceResponse](t, rec); got.Total != 4 || got.Counts["poker"] != 3 {
		t.Fatalf("unexpected presence %+v", got)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/presence/baccarat/join", ""), http.StatusNotFound)

	rec = env.do(http.MethodPost, "/api/presence/poker/join", "", headerPeerID, "tab-1")
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON[joinResponse](t, rec); got.PeerID != "tab-1" || got.Channel != "poker" {
		t.Fatalf("unexpected join %+v", got)
	}
	if meta := env.tracker.joined["poker/tab-1"]; meta["user"] != "admin-1" {
		t.Fatalf("unexpected join meta %v", meta)
	}

	rec = env.do(http.MethodPost, "/api/presence/slots/join", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON[joinResponse](t, rec); got.PeerID == "" {
		t.Fatalf("expected generated peer id")
	}

	expectStatus(t, env.do(http.MethodPost, "/api/presence/poker/leave", ""), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/presence/poker/leave?peer=tab-1", ""), http.StatusNoContent)
	if len(env.tracker.left) != 1 || env.tracker.left[0] != "poker/tab-1" {
		t.Fatalf("unexpected leaves %v", env.tracker.left)
	}
}

func TestPresenceDisabled(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Presence = nil
		o.Tracker = nil
	})
	expectStatus(t, env.do(http.MethodGet, "/api/presence", ""), http.StatusServiceUnavailable)
	expectStatus(t, env.do(http.MethodPost, "/api/presence/poker/join", ""), http.StatusServiceUnavailable)
}

func TestDashboardView(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/views/dashboard", "")
	expectStatus(t, rec, http.StatusOK)
	var got struct {
		TotalUsers int `json:"totalUsers"`
		TodayUsers int `json:"todayUsers"`
		TotalChips int `json:"totalChips"`
	}
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if got.TotalUsers != 2 || got.TodayUsers != 1 || got.TotalChips != 1000 {
		t.Fatalf("unexpected dashboard %+v", got)
	}
}

func TestViewRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)
	expectStatus(t, env.do(http.MethodGet, "/api/views/statistics?range=fortnight", ""), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodGet, "/api/views/reporting?report=gossip", ""), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodGet, "/api/views/reporting?report=financial&range=7days", ""), http.StatusOK)
}

func TestExportReport(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/api/views/reporting/export?report=financial&range=7days", "")
	expectStatus(t, rec, http.StatusOK)
	want := `attachment; filename="financial-report-7days-2025-11-17.json"`
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != want {
		t.Fatalf("unexpected disposition %q", got)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("\n  ")) {
		t.Fatalf("expected indented export, got %s", rec.Body.String())
	}
}

func TestGrantChips(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/views/chips/grants", `{"userId":"u1","chipsAmount":250}`)
	expectStatus(t, rec, http.StatusCreated)
	got := decodeJSON[grantResponse](t, rec)
	if got.Chips != 1250 || got.Transaction["status"] != "completed" || got.Transaction["user_id"] != "u1" {
		t.Fatalf("unexpected grant %+v", got)
	}
	wallets, _ := env.mem.List(context.Background(), domain.TableWallets, nil, &tables.Filter{Column: "user_id", Value: "u1"})
	if len(wallets) != 1 || wallets[0]["chips"] != int64(1250) {
		t.Fatalf("wallet not credited: %v", wallets)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/views/chips/grants", `{"userId":"u2","chipsAmount":250}`), http.StatusNotFound)
	expectStatus(t, env.do(http.MethodPost, "/api/views/chips/grants", `{"userId":"u1","chipsAmount":0}`), http.StatusBadRequest)
	expectStatus(t, env.do(http.MethodPost, "/api/views/chips/grants", `{"chipsAmount":10}`), http.StatusBadRequest)
}

func TestToggleAccess(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.do(http.MethodPost, "/api/views/users/u1/access", ""), http.StatusConflict)
	rec := env.do(http.MethodPost, "/api/views/users/u1/access?confirm=true", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decodeJSON[accessResponse](t, rec); got.IsActive {
		t.Fatalf("expected access revoked, got %+v", got)
	}
	rec = env.do(http.MethodPost, "/api/views/users/u1/access?confirm=true", "")
	if got := decodeJSON[accessResponse](t, rec); !got.IsActive {
		t.Fatalf("expected access restored, got %+v", got)
	}
	expectStatus(t, env.do(http.MethodPost, "/api/views/users/nobody/access?confirm=true", ""), http.StatusNotFound)
}

func TestTeamMembers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/views/hr/members", `{"firstName":"Ann","lastName":"Lee","email":"ann@example.com","department":"Engineering"}`)
	expectStatus(t, rec, http.StatusCreated)
	member := decodeJSON[tables.Record](t, rec)
	if member["status"] != "active" || member["hire_date"] != "2025-11-17" {
		t.Fatalf("unexpected member defaults %v", member)
	}
	expectStatus(t, env.do(http.MethodPost, "/api/views/hr/members", `{"email":"x@example.com"}`), http.StatusBadRequest)

	id := member.ID()
	expectStatus(t, env.do(http.MethodDelete, "/api/views/hr/members/"+id, ""), http.StatusConflict)
	expectStatus(t, env.do(http.MethodDelete, "/api/views/hr/members/"+id+"?confirm=true", ""), http.StatusNoContent)
	expectStatus(t, env.do(http.MethodDelete, "/api/views/hr/members/"+id+"?confirm=true", ""), http.StatusNotFound)
}

func TestSystemStatusView(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Probes = map[string]Pinger{"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") })}
	})
	rec := env.do(http.MethodGet, "/api/views/admin", "")
	expectStatus(t, rec, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "connection refused") || !strings.Contains(body, `{"table":"profiles","rows":2}`) {
		t.Fatalf("unexpected status body %s", body)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, rec, http.StatusOK)

	down := newTestEnv(t, func(o *Options) {
		o.Probes = map[string]Pinger{
			"redis":  PingFunc(func(context.Context) error { return errors.New("down") }),
			"tables": PingFunc(func(context.Context) error { return nil }),
		}
	})
	rec = httptest.NewRecorder()
	down.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, rec, http.StatusServiceUnavailable)
	failed := decodeJSON[map[string]string](t, rec)
	if failed["redis"] != "down" || len(failed) != 1 {
		t.Fatalf("unexpected failures %v", failed)
	}
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
}

func TestStreamBoardPushesChanges(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/board/stream?token=good.token.sig", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get(echo.HeaderContentType) != "text/event-stream" {
		t.Fatalf("unexpected stream response %d %q", resp.StatusCode, resp.Header.Get(echo.HeaderContentType))
	}

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	if !strings.Contains(first, `"Fix mobile responsive header"`) {
		t.Fatalf("unexpected first event %s", first)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/board/tasks", `{"title":"Streamed task"}`), http.StatusCreated)
	next := readEvent(t, r)
	if !strings.Contains(next, `"Streamed task"`) {
		t.Fatalf("expected change to be pushed, got %s", next)
	}
}

func TestStreamKeepAlive(t *testing.T) {
	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	done := make(chan error, 1)
	go func() {
		done <- stream(c, make(chan struct{}), 10*time.Millisecond, func() (any, error) {
			return map[string]int{"n": 1}, nil
		})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("stream returned error: %v", err)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: {\"n\":1}\n\n") || !strings.Contains(body, ":keepalive\n\n") {
		t.Fatalf("unexpected stream body %q", body)
	}
}
