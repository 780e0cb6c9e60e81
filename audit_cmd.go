package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Abhinavmohindersingh/bigslick-admin/audit"
	"github.com/Abhinavmohindersingh/bigslick-admin/config"
	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/logging"
	"github.com/Abhinavmohindersingh/bigslick-admin/storage"
	"github.com/Abhinavmohindersingh/bigslick-admin/tables"
)

func newAuditCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Drain the admin activity queue into the audit table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(*cfgFile)
			if err != nil {
				return err
			}
			cfg, err := config.LoadAudit(v)
			if err != nil {
				return err
			}
			logger, closer := logging.New(cfg.Log)
			defer closer.Close()

			queue, err := storage.NewActivityQueue(cfg.StorageConnStr, cfg.Queue)
			if err != nil {
				return fmt.Errorf("queue client: %w", err)
			}
			backend, err := storage.NewTables(cfg.StorageConnStr, cfg.TablesPartition)
			if err != nil {
				return fmt.Errorf("table service: %w", err)
			}
			writer := tables.NewClient(backend, []string{domain.TableAdminActivity})

			var rc *redis.Client
			if cfg.RedisConnStr != "" {
				rc = redis.NewClient(storage.ParseRedisOptions(cfg.RedisConnStr))
				defer rc.Close()
			} else {
				logger.Warn("REDIS_CONNECTION_STRING not set; audit entries will not be published")
			}

			logger.WithField("queue", cfg.Queue).Info("audit consumer starting")
			p := audit.NewProcessor(queue, writer, rc, audit.Options{Channel: cfg.Channel, Idle: cfg.Idle}, logger)
			err = p.Run(cmd.Context())
			if errors.Is(err, cmd.Context().Err()) {
				logger.Info("audit consumer stopped")
				return nil
			}
			return err
		},
	}
}
