package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/reports"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

func registerViews(g *echo.Group, s *Server) {
	v := g.Group("/views")
	v.GET("/dashboard", s.view(reports.DashboardSources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildDashboard(d, s.localNow()), nil
	}))
	v.GET("/users", s.view(reports.UsersSources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildUsers(d, c.QueryParam("q")), nil
	}))
	v.GET("/chips", s.view(reports.ChipsSources, func(c echo.Context, d reports.Dataset) (any, error) {
		f := reports.ChipsFilter{Query: c.QueryParam("q"), Status: c.QueryParam("status")}
		return reports.BuildChips(d, f, s.localNow()), nil
	}))
	v.GET("/revenue", s.view(reports.RevenueSources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildRevenue(d, s.localNow()), nil
	}))
	v.GET("/bonuses", s.view(reports.BonusSources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildBonuses(d, s.localNow()), nil
	}))
	v.GET("/games", s.view(reports.GamesSources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildGames(d), nil
	}))
	v.GET("/marketing", s.view(reports.MarketingSources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildMarketing(d), nil
	}))
	v.GET("/hr", s.view(reports.HRSources, func(c echo.Context, d reports.Dataset) (any, error) {
		f := reports.HRFilter{Query: c.QueryParam("q"), Department: c.QueryParam("department")}
		return reports.BuildHR(d, f, s.localNow()), nil
	}))
	v.GET("/statistics", s.view(reports.StatisticsSources, func(c echo.Context, d reports.Dataset) (any, error) {
		r, err := reports.ParseRange(c.QueryParam("range"))
		if err != nil {
			return nil, badRequest(err.Error())
		}
		return reports.BuildStatistics(d, r, s.localNow()), nil
	}))
	v.GET("/activity", s.view(reports.ActivitySources, func(c echo.Context, d reports.Dataset) (any, error) {
		return reports.BuildActivity(d), nil
	}))
	v.GET("/reporting", s.view(reports.ReportingSources, func(c echo.Context, d reports.Dataset) (any, error) {
		kind, r, err := reportParams(c)
		if err != nil {
			return nil, err
		}
		return reports.BuildReport(d, kind, r, s.localNow()), nil
	}))
	v.GET("/reporting/export", s.exportReport)
	v.GET("/admin", s.systemStatus)

	v.POST("/users", s.addUser)
	v.POST("/users/:id/access", s.toggleAccess)
	v.POST("/chips/grants", s.grantChips)
	v.POST("/hr/members", s.addMember)
	v.DELETE("/hr/members/:id", s.removeMember)
	v.POST("/marketing/campaigns", s.addCampaign)
}

// view loads sources and renders build's result. Query parameters are
// validated before anything is fetched.
func (s *Server) view(sources []reports.Source, build func(echo.Context, reports.Dataset) (any, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, _, err := reportParams(c); err != nil {
			return s.respond(c, err, http.StatusBadRequest)
		}
		m := metricsFrom(c)
		fetchStart := time.Now()
		d, err := reports.Load(c.Request().Context(), s.tables, sources...)
		m.ObserveFetch(time.Since(fetchStart))
		if err != nil {
			return s.respond(c, err, http.StatusBadGateway)
		}
		rows := 0
		for _, n := range d.Rows {
			rows += n
		}
		m.SetRecords(rows)
		out, err := build(c, d)
		if err != nil {
			return s.respond(c, err, http.StatusBadRequest)
		}
		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, out)
		m.ObserveEncode(time.Since(encodeStart))
		return err
	}
}

func reportParams(c echo.Context) (reports.ReportKind, reports.Range, error) {
	kind, err := reports.ParseReportKind(c.QueryParam("report"))
	if err != nil {
		return "", reports.Range{}, badRequest(err.Error())
	}
	r, err := reports.ParseRange(c.QueryParam("range"))
	if err != nil {
		return "", reports.Range{}, badRequest(err.Error())
	}
	return kind, r, nil
}

func (s *Server) exportReport(c echo.Context) error {
	kind, r, err := reportParams(c)
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	d, err := reports.Load(c.Request().Context(), s.tables, reports.ReportingSources...)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	now := s.localNow()
	body, err := sonic.ConfigStd.MarshalIndent(reports.BuildExport(d, kind, r, now), "", "  ")
	if err != nil {
		return s.respond(c, err, http.StatusInternalServerError)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+reports.ExportFilename(kind, r, now)+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, body)
}

func (s *Server) systemStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sources := make([]reports.Source, 0, len(domain.KnownTables))
	for _, t := range domain.KnownTables {
		sources = append(sources, reports.Source{Table: t, Selection: "*"})
	}
	var d reports.Dataset
	components := []reports.ComponentStatus{reports.Check("tables", func() error {
		var err error
		d, err = reports.Load(ctx, s.tables, sources...)
		return err
	})}
	for name, p := range s.probes {
		components = append(components, reports.Check(name, func() error { return p.Ping(ctx) }))
	}
	return c.JSON(http.StatusOK, reports.BuildSystemStatus(s.started, s.now(), d.Rows, components...))
}

func (s *Server) insertOne(c echo.Context, table string, rec tables.Record) error {
	inserted, err := s.tables.Insert(c.Request().Context(), table, rec)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	var out tables.Record
	if len(inserted) > 0 {
		out = inserted[0]
	}
	s.record(c, "insert", table, out)
	return c.JSON(http.StatusCreated, out)
}

func (s *Server) addUser(c echo.Context) error {
	var form reports.NewUser
	if err := decodeBody(c.Request().Body, &form); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	rec, err := form.Record(s.now())
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	return s.insertOne(c, domain.TableProfiles, rec)
}

type accessResponse struct {
	ID       string `json:"id"`
	IsActive bool   `json:"is_active"`
}

// toggleAccess flips is_active of a profile.
func (s *Server) toggleAccess(c echo.Context) error {
	if !confirmed(c) {
		return s.respond(c, domain.ErrConfirmationRequired, http.StatusConflict)
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	d, err := reports.Load(ctx, s.tables, reports.Profiles)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	var profile *domain.Profile
	for i := range d.Profiles {
		if d.Profiles[i].ID == id {
			profile = &d.Profiles[i]
			break
		}
	}
	if profile == nil {
		return s.respond(c, errRecordNotFound, http.StatusNotFound)
	}
	next := !profile.Active()
	patch := tables.Record{"is_active": next}
	if _, err := s.tables.Update(ctx, domain.TableProfiles, tables.Filter{Column: "id", Value: id}, patch); err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	s.record(c, "update", domain.TableProfiles, accessResponse{ID: id, IsActive: next})
	return c.JSON(http.StatusOK, accessResponse{ID: id, IsActive: next})
}

type grantResponse struct {
	Transaction tables.Record `json:"transaction"`
	Chips       int64         `json:"chips"`
}

// grantChips records a manual transaction and credits the user's wallet.
func (s *Server) grantChips(c echo.Context) error {
	var grant reports.ChipGrant
	if err := decodeBody(c.Request().Body, &grant); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	tx, err := grant.Transaction(s.now())
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	ctx := c.Request().Context()
	d, err := reports.Load(ctx, s.tables, reports.Wallets)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	var wallet *domain.Wallet
	for i := range d.Wallets {
		if d.Wallets[i].UserID == grant.UserID {
			wallet = &d.Wallets[i]
			break
		}
	}
	if wallet == nil {
		return s.respond(c, errRecordNotFound, http.StatusNotFound)
	}

	inserted, err := s.tables.Insert(ctx, domain.TableTransactions, tx)
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	patch := grant.WalletPatch(wallet.Chips)
	if _, err := s.tables.Update(ctx, domain.TableWallets, tables.Filter{Column: "user_id", Value: grant.UserID}, patch); err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	resp := grantResponse{Chips: wallet.Chips + grant.Chips}
	if len(inserted) > 0 {
		resp.Transaction = inserted[0]
	}
	s.record(c, "grant", domain.TableTransactions, resp)
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) addMember(c echo.Context) error {
	var form reports.NewMember
	if err := decodeBody(c.Request().Body, &form); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	rec, err := form.Record(s.localNow())
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	return s.insertOne(c, domain.TableTeamMembers, rec)
}

func (s *Server) removeMember(c echo.Context) error {
	if !confirmed(c) {
		return s.respond(c, domain.ErrConfirmationRequired, http.StatusConflict)
	}
	id := c.Param("id")
	n, err := s.tables.Delete(c.Request().Context(), domain.TableTeamMembers, tables.Filter{Column: "id", Value: id})
	if err != nil {
		return s.respond(c, err, http.StatusBadGateway)
	}
	if n == 0 {
		return s.respond(c, errRecordNotFound, http.StatusNotFound)
	}
	s.record(c, "delete", domain.TableTeamMembers, map[string]string{"id": id})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) addCampaign(c echo.Context) error {
	var form reports.NewCampaign
	if err := decodeBody(c.Request().Body, &form); err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	rec, err := form.Record(s.now())
	if err != nil {
		return s.respond(c, err, http.StatusBadRequest)
	}
	return s.insertOne(c, domain.TableCampaigns, rec)
}
