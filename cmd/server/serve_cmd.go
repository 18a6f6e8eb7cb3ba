package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/northbeam/capitalgate/internal/server"
	"github.com/northbeam/capitalgate/pkg/configuration"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := configuration.Use()
			defer conf.Unload()
			logger := conf.Logger()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			var pool *pgxpool.Pool
			if conf.Store.Backend == configuration.StoreBackendPostgres {
				var err error
				pool, err = pgxpool.New(ctx, conf.Database.Opts)
				if err != nil {
					return fmt.Errorf("connecting to database: %w", err)
				}
				defer pool.Close()
			}

			srv, err := server.Default(ctx, &server.DefaultOptions{
				Logger:        logger,
				Configuration: conf,
				Pool:          pool,
			})
			if err != nil {
				return fmt.Errorf("assembling server: %w", err)
			}

			logger.Infof("listening on %s", conf.SocketAddress)
			return srv.Start(conf.SocketAddress)
		},
	}
}
