package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadflow/outreach/internal/call"
	"github.com/leadflow/outreach/internal/config"
	"github.com/leadflow/outreach/internal/engine"
	"github.com/leadflow/outreach/internal/logging"
	"github.com/leadflow/outreach/internal/outbound"
	"github.com/leadflow/outreach/internal/scheduler"
	"github.com/leadflow/outreach/internal/server"
	"github.com/leadflow/outreach/internal/store"
	"github.com/leadflow/outreach/internal/validation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the outreach engine and HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	st, err := store.NewLibSQLStore(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	if err := engine.SeedTemplates(ctx, st, logger); err != nil {
		return fmt.Errorf("seed templates: %w", err)
	}

	sender := outbound.NewHTTPEmailSender(cfg.Email.BaseURL, cfg.Email.APIKey)
	placer := outbound.NewTwilioCallPlacer(outbound.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		BaseURL:    cfg.Twilio.BaseURL,
		PublicURL:  cfg.Server.PublicURL,
	})

	tracker := call.NewTracker(st, logger)
	coordinator := engine.NewCoordinator(st, logger)
	executors := engine.NewExecutorSet(st, sender, placer, tracker, logger)
	sched := scheduler.NewScheduler(st, coordinator, executors, scheduler.Config{
		TickInterval:        cfg.Engine.TickInterval,
		RetryCeiling:        cfg.Engine.RetryCeiling,
		BackoffBase:         cfg.Engine.BackoffBase,
		BackoffCap:          cfg.Engine.BackoffCap,
		ExternalWaitCeiling: cfg.Engine.ExternalWaitCeiling,
	}, logger)
	coordinator.SetAdvancer(sched)
	tracker.SetResumer(coordinator)

	validator, err := validation.NewWorkflowValidator()
	if err != nil {
		return fmt.Errorf("build validator: %w", err)
	}

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		PublicURL:  cfg.Server.PublicURL,
		AuthToken:  cfg.Twilio.AuthToken,
	}, coordinator, tracker, st, validator, sched, logger)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", slog.String("error", err.Error()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	if err := sched.Stop(); err != nil {
		logger.Error("scheduler shutdown failed", slog.String("error", err.Error()))
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
