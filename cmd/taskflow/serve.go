package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"taskflow/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the taskflow API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if !slog.Default().Enabled(cmd.Context(), slog.LevelDebug) {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := srv.Close(); err != nil {
					slog.Warn("mongo disconnect failed", "error", err)
				}
			}()

			return srv.Run(ctx)
		},
	}
}
