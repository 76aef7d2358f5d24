package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/cctp-vault-orchestrator/relayer"
)

const shutdownTimeout = 10 * time.Second

// Start runs the worker pool, the resumption scheduler and the HTTP API until interrupted.
func Start(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the transfer orchestrator",
		Long:  `Start the transfer orchestrator, its HTTP API and the resumption scheduler.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.InitAppState()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.Logger
			cfg := a.Config

			if err := applyAPIFlags(cmd, cfg); err != nil {
				return err
			}

			port, err := cmd.Flags().GetInt16(flagMetricsPort)
			if err != nil {
				return err
			}
			metrics := relayer.InitPromMetrics(port)

			svc, err := buildApp(ctx, cfg, logger, metrics)
			if err != nil {
				logger.Error("Unable to start orchestrator", "err", err)
				return err
			}
			defer svc.Close()

			for _, c := range svc.evmChains {
				go c.WalletBalanceMetric(ctx, logger, metrics)
			}

			svc.orchestrator.Start(ctx)

			scheduler, err := relayer.NewScheduler(cfg.Scheduler, svc.store, svc.orchestrator, metrics, logger)
			if err != nil {
				return err
			}
			if err := scheduler.Start(ctx); err != nil {
				return err
			}

			router, err := relayer.NewRouter(svc.orchestrator, svc.store, cfg.API.TrustedProxies)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				logger.Info("Starting API server", "address", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("API server stopped", "err", err)
				}
			}()

			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	return addAPIFlags(cmd)
}
