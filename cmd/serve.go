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

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/database"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/handler"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply the schema before serving (postgres store only)")
}

func runServer(ctx context.Context) error {
	// ── 1. Storage ───────────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if pg, ok := store.(*repository.PostgresStore); ok && autoMigrate {
		if err := database.Migrate(ctx, pg.Pool()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	publisher := newPublisher()
	defer publisher.Close()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(store, logger)
	attendanceSvc := service.NewAttendanceService(store, publisher, policy(), logger)

	router := handler.NewRouter(handler.Deps{
		Events:     handler.NewEventHandler(eventSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Members:    store,
		Guard:      auth.Guard{MinProfileCompleteness: cfg.Policy.MinProfileCompleteness},
		Logger:     logger,
	})

	// ── 3. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Block until SIGINT/SIGTERM or a listener failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
