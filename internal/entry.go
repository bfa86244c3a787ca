// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/aldergrove/arbor/internal/api"
	"github.com/aldergrove/arbor/internal/articleservice"
	"github.com/aldergrove/arbor/internal/garden"
	"github.com/aldergrove/arbor/internal/gitsync"
	"github.com/aldergrove/arbor/internal/index"
	"github.com/aldergrove/arbor/internal/render"
	"github.com/aldergrove/arbor/internal/sse"
	"github.com/aldergrove/arbor/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger unless one was injected.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_path", cfg.Content.Path),
		slog.String("data_path", cfg.Data.Path),
		slog.String("indexing_mode", cfg.Indexing.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure content and data directories exist.
	if err := os.MkdirAll(cfg.Content.Path, 0o755); err != nil {
		return fmt.Errorf("create content dir: %w", err)
	}
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Garden manager; backfill config files for bare garden directories.
	gardens := garden.NewManager(cfg.Content.Path)
	if created, err := gardens.EnsureConfigs(); err != nil {
		logger.Warn("garden config backfill failed", slog.String("error", err.Error()))
	} else if len(created) > 0 {
		logger.Info("garden configs created", slog.String("gardens", strings.Join(created, ",")))
	}

	// Initialize SQLite index.
	db, err := index.Open(cfg.Data.DatabasePath())
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Index coordinator. The dirty flag lives next to the database so a
	// crash between a deferred save and its reconcile is not forgotten.
	var dirty index.DirtyStore
	if cfg.Indexing.Mode == index.ModeDeferred {
		dirty = index.NewFileDirtyStore(cfg.Data.DirtyFlagPath())
	}
	coord, err := index.NewCoordinator(cfg.Indexing.Mode, db, store, dirty, logger)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	// Git integration for the content tree.
	var git *gitsync.Syncer
	if cfg.Git.AutoCommit {
		git, err = gitsync.Init(cfg.Content.Path, logger)
		if err != nil {
			logger.Warn("git init failed, continuing without git", slog.String("error", err.Error()))
			git = nil
		}
	} else {
		git, err = gitsync.Open(cfg.Content.Path, logger)
		if err != nil {
			logger.Warn("git open failed, continuing without git", slog.String("error", err.Error()))
			git = nil
		}
	}

	resolver := index.NewResolver(db)
	renderer := render.New(resolver, store, logger)
	svc := articleservice.NewService(store, db, coord, resolver, renderer, gardens, git, logger)

	// Run a startup reconcile so the index reflects edits made while the
	// server was down.
	if res, err := coord.Reconcile(ctx, true); err != nil {
		logger.Warn("startup reconcile failed", slog.String("error", err.Error()))
	} else {
		logger.Info("startup reconcile complete",
			slog.Int("indexed", res.Indexed),
			slog.Int("failed", res.Failed))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	switch coord.Mode() {
	case index.ModeImmediate:
		// Watch the content tree so external edits reach the index without
		// waiting for an API save.
		g.Go(func() error {
			err := index.Watch(gCtx, coord, cfg.Content.Path, logger, func(kind, path string) {
				broker.PublishArticleEvent(kind, path)
			})
			if err != nil {
				logger.Warn("file watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	case index.ModeDeferred:
		// Periodic reconcile picks up deferred saves and external edits.
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Indexing.ReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					res, err := coord.Reconcile(gCtx, false)
					if err != nil {
						logger.Warn("periodic reconcile failed", slog.String("error", err.Error()))
						continue
					}
					if res.Rebuilt {
						logger.Info("periodic reconcile complete",
							slog.Int("indexed", res.Indexed),
							slog.Int("failed", res.Failed))
						broker.PublishArticleEvent("reconciled", "")
					}
				}
			}
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
