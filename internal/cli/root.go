package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/i474232898/snow-status-aggregation/internal/config"
	"github.com/i474232898/snow-status-aggregation/internal/logger"
)

type ctxKey struct{}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snow-status",
		Short: "Aggregate lift and slope status for winter-sports destinations",
		Long: `snow-status polls every configured resort, normalizes lift and slope
status into one record per resort and enriches it with weather and travel times.
Run "serve" for the HTTP API or "fetch" for a one-off cycle.`,
		Example: `snow-status serve
snow-status fetch stubai axamer-lizum`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("json-logs") {
				cfg.LogJSON, _ = cmd.Flags().GetBool("json-logs")
			}
			if cmd.Flags().Changed("resorts") {
				cfg.ResortsFile, _ = cmd.Flags().GetString("resorts")
			}

			logger.Configure(logger.Options{Level: cfg.LogLevel, JSON: cfg.LogJSON, Out: cmd.ErrOrStderr()})
			cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, cfg))
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("json-logs", false, "Emit JSON log lines")
	cmd.PersistentFlags().String("resorts", "", "Resort registry file (defaults to the bundled registry)")

	cmd.AddCommand(NewServeCmd(), NewFetchCmd(), NewResortsCmd())
	return cmd
}

func Execute() error {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Debug("command failed: %v", err)
		return err
	}
	return nil
}

func configFrom(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg, ok := cmd.Context().Value(ctxKey{}).(*config.AppConfig)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
