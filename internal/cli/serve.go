package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/snow-status-aggregation/internal/api/http"
	"github.com/i474232898/snow-status-aggregation/internal/logger"
	"github.com/i474232898/snow-status-aggregation/internal/scheduler"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			accessLog, err := cmd.Flags().GetBool("access-log")
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			// Scheduler that periodically aggregates every resort and samples traffic.
			var refresher scheduler.TrafficRefresher
			if rt.refresher != nil {
				refresher = rt.refresher
			}
			sched := scheduler.New(rt.service, cfg.FetchInterval, refresher, cfg.TrafficInterval).WithPurger(rt.weather)
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()

			var clicks httpapi.ClickStore
			if rt.clicks != nil {
				clicks = rt.clicks
			}
			app := httpapi.NewApp(rt.service, clicks, accessLog)

			go func() {
				logger.Info("listening on :%s", cfg.Port)
				if err := app.Listen(":" + cfg.Port); err != nil {
					logger.Error("fiber server stopped: %v", err)
				}
			}()

			// Wait for termination signal
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Warn("error during shutdown: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("access-log", true, "Log every HTTP request")
	return cmd
}
