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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ignite/internal/api"
	"github.com/starford/ignite/internal/mcpserver"
	"github.com/starford/ignite/internal/remote"
	"github.com/starford/ignite/internal/thoughtservice"
)

// Run starts the HTTP server and the sync session with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	c, err := assemble(ctx, app)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := app.config
	logger := c.logger

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.svc.Stats(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.orch.Run(gCtx)
	})

	if c.watchPath != "" {
		g.Go(func() error {
			if err := remote.Watch(gCtx, c.watchPath, c.file.Known, logger, c.orch.RemoteChanged); err != nil {
				logger.Warn("remote watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// The orchestrator stops on gCtx, so a signal has to cancel it too.
	sigCtx, stop := signal.NotifyContext(gCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g.Go(func() error {
		<-sigCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup once a signal or the parent context ends.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio while the sync session runs in the
// background. Logs go to stderr unless a log file is configured.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	c, err := assemble(ctx, app)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := mcpserver.New(c.svc, app.version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.orch.Run(gCtx)
	})
	if c.watchPath != "" {
		g.Go(func() error {
			if err := remote.Watch(gCtx, c.watchPath, c.file.Known, c.logger, c.orch.RemoteChanged); err != nil {
				c.logger.Warn("remote watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		c.logger.Info("MCP server starting on stdio")
		return srv.ServeStdio()
	})

	return g.Wait()
}

// Exec runs fn once against the sync core without the background session,
// then waits for any push fn started. Used by the one-shot CLI commands.
func Exec(ctx context.Context, fn func(ctx context.Context, svc *thoughtservice.Service) error, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	c, err := assemble(ctx, app)
	if err != nil {
		return err
	}
	defer c.Close()

	c.ensureCredential(ctx)
	err = fn(ctx, c.svc)
	c.orch.Wait()
	return err
}
