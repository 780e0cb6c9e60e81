package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "bigslick"

// RegisterMetrics instruments e with request metrics and serves them on
// /metrics. Presence counts are exported when presence is not nil.
func RegisterMetrics(e *echo.Echo, reg *prometheus.Registry, presence PresenceCounter) error {
	mw, err := echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Subsystem:  "http",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/metrics" || p == "/healthz" || strings.HasSuffix(p, "/stream")
		},
	}.ToMiddleware()
	if err != nil {
		return err
	}
	e.Use(mw)
	if presence != nil {
		if err := reg.Register(newPresenceCollector(presence)); err != nil {
			return err
		}
	}
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))
	return nil
}

type presenceCollector struct {
	presence PresenceCounter
	desc     *prometheus.Desc
}

func newPresenceCollector(p PresenceCounter) *presenceCollector {
	return &presenceCollector{
		presence: p,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "presence", "peers"),
			"Connected peers per game channel.",
			[]string{"channel"}, nil,
		),
	}
}

func (c *presenceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *presenceCollector) Collect(ch chan<- prometheus.Metric) {
	for channel, n := range c.presence.Counts() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), channel)
	}
}
