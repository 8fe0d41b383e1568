/*
run.go - Server lifecycle

PURPOSE:
  Builds the store, handler and router from a config.Config and runs the
  HTTP server until the context is cancelled. Shared by cmd/server and the
  CLI's serve command.

STARTUP SEQUENCE:
  1. Initialize the store (SQLite path, or PostgreSQL for a postgres:// URL)
  2. Create API handler with dependencies
  3. Store the seed document as a scenario, if configured
  4. Configure HTTP router
  5. Serve until ctx is done, then shut down gracefully

GRACEFUL SHUTDOWN:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

SEE ALSO:
  - config/config.go: Settings
  - server.go: Router configuration
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/warp/proforma-engine/config"
	"github.com/warp/proforma-engine/engine"
	"github.com/warp/proforma-engine/store/postgres"
	"github.com/warp/proforma-engine/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the API server described by cfg until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := OpenStore(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	handler := NewHandler(store, logger)
	handler.Strict = cfg.Strict

	if cfg.SeedPath != "" {
		rec, err := handler.SeedScenario(ctx, cfg.SeedPath)
		if err != nil {
			return err
		}
		logger.Info("seed scenario stored", "id", rec.ID, "name", rec.Name, "version", rec.Version)
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath, "strict", cfg.Strict)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// ClosableStore is a ScenarioStore holding a connection.
type ClosableStore interface {
	engine.ScenarioStore
	Close() error
}

// OpenStore opens PostgreSQL for a postgres:// URL and SQLite otherwise.
func OpenStore(ctx context.Context, dsn string) (ClosableStore, error) {
	if postgres.IsURL(dsn) {
		s, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := sqlite.New(dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SeedScenario stores the model document at path as a scenario named after
// the file. An existing scenario of that name is replaced, bumping its
// version.
func (h *Handler) SeedScenario(ctx context.Context, path string) (engine.ScenarioRecord, error) {
	m, variant, err := h.Factory.LoadFile(path)
	if err != nil {
		return engine.ScenarioRecord{}, fmt.Errorf("load seed: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rec := engine.ScenarioRecord{Name: name}

	existing, err := h.Store.ListScenarios(ctx)
	if err != nil {
		return engine.ScenarioRecord{}, err
	}
	for _, e := range existing {
		if e.Name == name {
			rec = e
			break
		}
	}
	return h.saveModel(ctx, rec, m, variant)
}
