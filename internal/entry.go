// Package internal provides the application wiring and the run modes
// behind each CLI command.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/citemark/internal/api"
	"github.com/starford/citemark/internal/citeservice"
	"github.com/starford/citemark/internal/extractor"
	"github.com/starford/citemark/internal/index"
	"github.com/starford/citemark/internal/mcpserver"
	"github.com/starford/citemark/internal/parsecache"
	"github.com/starford/citemark/internal/parser"
	"github.com/starford/citemark/internal/sse"
	"github.com/starford/citemark/internal/storage"
	"github.com/starford/citemark/internal/validator"
)

// ErrCitationErrors is returned by Validate when at least one link failed.
var ErrCitationErrors = errors.New("citation errors found")

// engine is the wired citation stack shared by every run mode.
type engine struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *citeservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout, errOut: os.Stderr, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newEngine opens the vault and index and wires parser, cache, validator,
// extractor and service. Logs go to the application's log writer so stdout
// stays reserved for results and the MCP transport.
func (a *application) newEngine() (*engine, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.errOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	cache := parsecache.New(parser.New().ParseFile, logger)
	v := validator.New(cache,
		validator.WithFinder(index.NewFinder(db, store.Root())),
		validator.WithVaultRoot(store.Root()),
		validator.WithWorkers(cfg.Validation.Workers),
		validator.WithLogger(logger))
	x := extractor.New(v, cache,
		extractor.WithWorkers(cfg.Extraction.Workers),
		extractor.WithLogger(logger))

	logger.Debug("Engine ready",
		slog.String("vault_path", store.Root()),
		slog.String("sqlite_path", cfg.SQLite.Path))

	return &engine{
		cfg:    cfg,
		logger: logger,
		store:  store,
		db:     db,
		svc:    citeservice.NewService(store, db, cache, v, x, logger),
	}, nil
}

func (e *engine) Close() error {
	return e.db.Close()
}

// fileReport is one entry of a multi-file validate result.
type fileReport struct {
	File string `json:"file"`
	*validator.Result
}

// Validate validates each file in paths (relative to the working
// directory) and writes the JSON result. It returns ErrCitationErrors when
// any link has status error.
func Validate(ctx context.Context, paths []string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := app.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	reports := make([]fileReport, 0, len(paths))
	failed := false
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		res, err := e.svc.Validate(ctx, abs)
		if err != nil {
			return err
		}
		if res.Summary.Errors > 0 {
			failed = true
		}
		reports = append(reports, fileReport{File: abs, Result: res})
	}

	var out any = reports
	if len(reports) == 1 {
		out = reports[0].Result
	}
	if err := writeResult(app, out); err != nil {
		return err
	}
	if failed {
		return ErrCitationErrors
	}
	return nil
}

// Extract extracts the cited content of paths into one deduplicated
// payload and writes it as JSON. fullFiles overrides the configured default
// when true.
func Extract(ctx context.Context, paths []string, fullFiles bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := app.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		abs = append(abs, a)
	}
	flags := extractor.Flags{FullFiles: fullFiles || app.config.Extraction.FullFiles}
	res, err := e.svc.Extract(ctx, abs, flags)
	if err != nil {
		return err
	}
	return writeResult(app, res)
}

func writeResult(app *application, v any) error {
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ServeMCP serves the MCP tools over stdio until stdin closes. The vault
// watcher runs alongside so cached parses follow edits.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	e, err := app.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.watch(gCtx, nil)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return mcpserver.New(e.svc, app.version).ServeStdio()
	})
	return g.Wait()
}

// watch runs the vault watcher until ctx ends. Every change invalidates
// the cache and revalidates citing sources; publish, if non-nil, also
// receives the raw file event.
func (e *engine) watch(ctx context.Context, publish func(kind, path string)) {
	err := index.Watch(ctx, e.db, e.store, e.logger, func(kind, path string) {
		if publish != nil {
			publish(kind, path)
		}
		e.svc.HandleChange(ctx, kind, path)
	})
	if err != nil {
		e.logger.Warn("watcher failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server with the watcher and SSE broker until a
// shutdown signal arrives or ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	e, err := app.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()
	logger := e.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", e.store.Root()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	e.svc.OnRevalidated(func(rv citeservice.Revalidation) {
		broker.Publish(sse.Event{Type: sse.TypeValidation, Data: rv})
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(e, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.watch(gCtx, broker.PublishFileEvent)
		return nil
	})

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
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// newHTTPHandler builds the root router: health probes plus the API.
func newHTTPHandler(e *engine, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := e.db.PathsByName(r.Context(), ".health"); err != nil {
			writeHealth(w, http.StatusServiceUnavailable, "index unavailable")
			return
		}
		writeHealth(w, http.StatusOK, "ok")
	})

	r.Mount("/api", api.NewRouter(e.svc, e.cfg.Auth.AuthEnabled(), e.cfg.Auth.Token, broker))
	return r
}

func writeHealth(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": msg})
}
