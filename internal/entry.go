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

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/api"
	"github.com/starford/annota/internal/document"
	"github.com/starford/annota/internal/history"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/mcpserver"
	"github.com/starford/annota/internal/sse"
)

// seed is the document the service was loaded from.
type seed struct {
	fs   *document.FS
	name string
	sum  string
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts, os.Stdout)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("document_path", cfg.Document.Path),
		slog.Bool("document_watch", cfg.Document.Watch),
		slog.Int("max_history_size", cfg.Engine.MaxHistorySize),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, src, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	broker := sse.NewBroker(sse.DefaultSnapshotThrottle, sse.WithLogger(logger))
	defer broker.Close()
	unsubscribe := svc.Subscribe(broker)
	defer unsubscribe()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if src != nil && cfg.Document.Watch {
		g.Go(func() error {
			return watchDocument(gCtx, svc, src, logger)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

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

// RunMCP serves the annotation tools over stdin/stdout until ctx is
// cancelled or stdin is closed. Logs go to stderr unless overridden.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts, os.Stderr)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := app.newLogger()

	svc, src, err := newService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	if src != nil && cfg.Document.Watch {
		g.Go(func() error {
			return watchDocument(gCtx, svc, src, logger)
		})
	}
	g.Go(func() error {
		// Closing stdin ends the session; stop the watcher with it.
		defer stop()
		logger.Info("Starting MCP server", slog.String("version", app.version))
		err := mcpserver.New(svc, app.version).Listen(gCtx, os.Stdin, os.Stdout, logger)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// newService builds the service from cfg: engine options, configured
// layers, then the seed document if one is set.
func newService(cfg *Config, logger *slog.Logger) (*annotationservice.Service, *seed, error) {
	svc := annotationservice.New(
		annotationservice.WithLogger(logger),
		annotationservice.WithHitBuffer(cfg.Engine.HitBuffer),
		annotationservice.WithSplitWidth(cfg.Engine.SplitWidth),
		annotationservice.WithHistory(
			history.WithMaxSize(cfg.Engine.MaxHistorySize),
			history.WithMerging(cfg.Engine.HistoryMerging),
		),
	)

	for _, lc := range cfg.Layers {
		var err error
		if layers.IsReserved(lc.ID) {
			_, err = svc.UpdateLayer(lc.ID, lc.Config)
		} else {
			_, err = svc.CreateLayer(lc.ID, lc.Config)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("configure layer %q: %w", lc.ID, err)
		}
	}

	if cfg.Document.Path == "" {
		return svc, nil, nil
	}
	dir, name := document.Split(cfg.Document.Path)
	fs, err := document.NewFS(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("init document provider: %w", err)
	}
	doc, sum, err := fs.Load(name)
	if err != nil {
		return nil, nil, fmt.Errorf("load seed document: %w", err)
	}
	if err := svc.Import(doc, true); err != nil {
		return nil, nil, fmt.Errorf("import seed document: %w", err)
	}
	logger.Info("seed document loaded",
		slog.String("path", cfg.Document.Path),
		slog.Int("annotations", len(doc.Annotations)))
	return svc, &seed{fs: fs, name: name, sum: sum}, nil
}

func watchDocument(ctx context.Context, svc *annotationservice.Service, src *seed, logger *slog.Logger) error {
	return document.Watch(ctx, src.fs, src.name, src.sum, document.DefaultDebounce, logger, func(doc *document.Document) {
		if err := svc.Import(doc, true); err != nil {
			logger.Warn("watcher: import failed", slog.String("error", err.Error()))
		}
	})
}
