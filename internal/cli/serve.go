package cli

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

	"github.com/dukerupert/simplechores/internal/appconfig"
	"github.com/dukerupert/simplechores/internal/config"
	"github.com/dukerupert/simplechores/internal/database"
	"github.com/dukerupert/simplechores/internal/logging"
	"github.com/dukerupert/simplechores/internal/middleware"
	"github.com/dukerupert/simplechores/internal/rollover"
	"github.com/dukerupert/simplechores/internal/server"
	"github.com/dukerupert/simplechores/internal/store"
	"github.com/dukerupert/simplechores/internal/tracker"
	ws "github.com/dukerupert/simplechores/internal/websocket"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logging.Setup(cfg.Log.Level, cfg.Log.Format))
		},
	}
}

func runServe(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	chores := config.NewStore(config.NewFileSource(cfg.Storage.ChoresFile), logger.With("component", "config"))
	hub := ws.NewHub(logger.With("component", "hub"))
	tr := tracker.New(chores, db, hub, logger.With("component", "tracker"),
		tracker.WithPollInterval(cfg.Storage.PollInterval))
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}
	defer tr.Stop()

	if cfg.Rollover.At != "" {
		at, err := rollover.ParseTimeOfDay(cfg.Rollover.At)
		if err != nil {
			return err
		}
		sched := rollover.NewScheduler(tr, store.NewSettingsStore(db), at, logger.With("component", "scheduler"))
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(tr, hub, server.Options{
		OriginPatterns: cfg.Server.Origins(),
		WriteLimit:     cfg.Server.WriteLimit,
	}, logger)
	go pruneThrottle(ctx, srv.Throttle())

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simplechores listening", "addr", httpServer.Addr, "chores_file", cfg.Storage.ChoresFile)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func pruneThrottle(ctx context.Context, t *middleware.Throttle) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Prune()
		}
	}
}
