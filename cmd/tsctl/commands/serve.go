package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arm-trusted-services/ts-core/internal/bootstrap"
	"github.com/arm-trusted-services/ts-core/internal/logger"
	"github.com/arm-trusted-services/ts-core/internal/telemetry"
	"github.com/arm-trusted-services/ts-core/pkg/config"
	"github.com/arm-trusted-services/ts-core/pkg/rest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SMM_VARIABLE service over HTTP",
	Long: `Start the REST front door for the SMM_VARIABLE RPC service, using the
storage backend, audit ledger, and transport settings from the loaded
configuration.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry.ToTelemetryConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	stack, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build stack: %w", err)
	}
	defer stack.Close()

	server := rest.NewServer(stack.Endpoint, rest.Config{
		RequireAuth: cfg.Transport.RequireAuth,
		JWTSecret:   []byte(cfg.Transport.JWTSecret),
		Metrics:     stack.Metrics,
	})

	httpServer := &http.Server{
		Addr:    cfg.Transport.ListenAddr,
		Handler: server.Router(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("serving SMM_VARIABLE over HTTP", "addr", cfg.Transport.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
