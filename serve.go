package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Abhinavmohindersingh/bigslick-admin/api"
	"github.com/Abhinavmohindersingh/bigslick-admin/config"
	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/kanban"
	"github.com/Abhinavmohindersingh/bigslick-admin/logging"
	"github.com/Abhinavmohindersingh/bigslick-admin/presence"
	"github.com/Abhinavmohindersingh/bigslick-admin/storage"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(*cfgFile)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}
			logger, closer := logging.New(cfg.Log)
			defer closer.Close()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// activityLog stands in for the queue when tables live in memory.
type activityLog struct {
	log *log.Logger
}

func (a activityLog) EnqueueActivities(_ context.Context, userID string, acts []domain.Activity) error {
	for _, act := range acts {
		a.log.WithFields(log.Fields{
			"user":   userID,
			"action": act.Action,
			"table":  act.Table,
			"id":     act.ID,
		}).Info("admin activity")
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	rc := redis.NewClient(storage.ParseRedisOptions(cfg.RedisConnStr))
	defer rc.Close()
	probes := map[string]api.Pinger{
		"redis": api.PingFunc(func(ctx context.Context) error { return rc.Ping(ctx).Err() }),
	}

	var (
		backend tables.Backend
		sink    api.ActivitySink
	)
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Warn("tables are kept in memory and lost on restart")
		backend = storage.NewMemory()
		sink = activityLog{log: logger}
	default:
		t, err := storage.NewTables(cfg.StorageConnStr, cfg.TablesPartition)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		probes["tables"] = t
		backend = t
		q, err := storage.NewActivityQueue(cfg.StorageConnStr, cfg.ActivityQueue)
		if err != nil {
			return fmt.Errorf("activity queue: %w", err)
		}
		sink = q
	}
	client := tables.NewClient(storage.NewCache(backend, rc, cfg.TableCacheTTL), domain.KnownTables)

	var boardStore kanban.Store = storage.NewRedisBoardStore(rc)
	if cfg.BoardStore == config.BoardSQLite {
		s, err := storage.OpenSQLBoardStore(cfg.BoardSQLitePath)
		if err != nil {
			return fmt.Errorf("board store: %w", err)
		}
		boardStore = s
	}

	var jwks *keyfunc.JWKS
	authCfg := api.AuthConfig{
		Audience:    cfg.Auth.Audience,
		Issuer:      cfg.Auth.Issuer(),
		KeyCacheTTL: cfg.Auth.JWKSCacheTTL,
	}
	if cfg.Auth.LocalMode {
		logger.Warn("local auth mode: accepting HS256 tokens signed with the shared secret")
		authCfg.SharedSecret = cfg.Auth.SharedSecret
	} else {
		var err error
		jwks, err = keyfunc.Get(cfg.Auth.JWKSURL(), keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				logger.WithError(err).Error("jwks refresh failed")
			},
		})
		if err != nil {
			return fmt.Errorf("jwks: %w", err)
		}
		defer jwks.EndBackground()
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown")
		}
	}()

	agg := presence.NewAggregator(rc, cfg.PresenceChannels, logger)
	agg.SetSweep(cfg.PresenceTTL / 2)
	agg.Start(ctx)
	defer agg.Close()

	sender := api.NewActivitySender(sink, api.SenderConfig{
		Workers:        cfg.Enqueue.Workers,
		Buffer:         cfg.Enqueue.Buffer,
		Timeout:        cfg.Enqueue.Timeout,
		HandoffTimeout: cfg.Enqueue.HandoffTimeout,
	}, logger)
	defer sender.Close()

	e := echo.New()
	e.HideBanner = true
	// open streams end with ctx
	e.Server.BaseContext = func(net.Listener) context.Context { return ctx }
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			echo.HeaderContentEncoding, "Idempotency-Key", "X-Peer-Id",
		},
	}))
	e.Use(api.GzipRequestMiddleware())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := api.RegisterMetrics(e, reg, agg); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	api.Register(e, api.NewServer(api.Options{
		Tables:   client,
		Board:    kanban.NewService(boardStore, logger),
		Auth:     api.NewAuth(jwks, authCfg),
		Presence: agg,
		Tracker:  presence.NewTracker(rc, cfg.PresenceTTL),
		Deduper:  api.NewRedisDeduper(rc, cfg.DeduperTTL),
		Activity: sender,
		Probes:   probes,
		Location: cfg.Location,
		Log:      logger,
	}))

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("listening")
		errCh <- e.Start(":" + cfg.Port)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
