// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/service"
)

func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs and saved scenarios over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), factory)
		},
	}
	serveCmd.Flags().String("addr", "", "listen address (default from service.addr)")
	serveCmd.Flags().Int("max-runs", 0, "maximum number of concurrent runs")
	serveCmd.Flags().Bool("headless", true, "run the browser without a window")
	serveCmd.Flags().String("browser-mode", "", "browser deployment mode (auto, local, serverless)")
	return serveCmd
}

func runServe(ctx context.Context, factory service.ComponentFactory) error {
	logger := observability.GetLogger().Named("serve")

	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}

	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	srv := service.NewServer(cfg.Service(), components.Runner, components.Store, logger)
	logger.Info("Starting service.", zap.String("addr", cfg.Service().Addr), zap.Int("max_concurrent_runs", cfg.Service().MaxConcurrentRuns))

	err = srv.ListenAndServe(ctx, cfg.Service().Addr)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
