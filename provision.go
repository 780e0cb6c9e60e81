package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Abhinavmohindersingh/bigslick-admin/config"
	"github.com/Abhinavmohindersingh/bigslick-admin/domain"
	"github.com/Abhinavmohindersingh/bigslick-admin/logging"
	"github.com/Abhinavmohindersingh/bigslick-admin/storage"
)

func newProvisionCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the dashboard tables and the activity queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(*cfgFile)
			if err != nil {
				return err
			}
			logger, closer := logging.New(logging.Options{Debug: v.GetBool("debug"), Format: v.GetString("log_format")})
			defer closer.Close()

			p, err := config.LoadProvision(v)
			if err != nil {
				return err
			}
			logger.Info("storage init starting")
			ctx := cmd.Context()
			if err := storage.CreateTables(ctx, p.StorageConnStr, domain.KnownTables); err != nil {
				return fmt.Errorf("create tables: %w", err)
			}
			if err := storage.CreateQueues(ctx, p.StorageConnStr, p.Queues); err != nil {
				return fmt.Errorf("create queues: %w", err)
			}
			logger.WithField("tables", len(domain.KnownTables)).Info("storage init complete")
			return nil
		},
	}
}
