package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/api"
	"github.com/akylbek/payment-system/agent-tools/internal/config"
	"github.com/akylbek/payment-system/agent-tools/internal/natsrpc"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tools over HTTP (and NATS when NATS_URL is set)",
	Long: `Start the agent-tools server.

Examples:
  agent-tools serve
  PORT=9090 MINIPAY_BASE_URL=http://minipay:8080 agent-tools serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry(api.ServiceName, cfg.JaegerEndpoint, cfg.LogLevel); err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting agent tools",
		zap.String("minipay_base_url", cfg.MiniPayBaseURL),
		zap.Duration("minipay_timeout", cfg.MiniPayTimeout),
	)

	s, err := buildStack(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	// Connect to NATS
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(api.ServiceName))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Close()

		responder := natsrpc.NewResponder(nc, s.dispatcher, natsrpc.DefaultRequestTimeout)
		if err := responder.Start(); err != nil {
			return fmt.Errorf("subscribe to tool requests: %w", err)
		}
		defer func() {
			if err := responder.Stop(); err != nil {
				telemetry.Logger.Warn("Failed to drain NATS subscription", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(s.dispatcher),
	}

	serveErr := make(chan error, 1)
	go func() {
		telemetry.Logger.Info("Agent tools listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("start server: %w", err)
	case <-quit:
	}

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}
