// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/restmodel/adapters/clock"
	"github.com/artpar/restmodel/adapters/hasher"
	"github.com/artpar/restmodel/adapters/memory"
	"github.com/artpar/restmodel/adapters/metrics"
	"github.com/artpar/restmodel/adapters/sqlite"
	"github.com/artpar/restmodel/config"
	channel "github.com/artpar/restmodel/core/channel/http"
	"github.com/artpar/restmodel/core/events"
	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/openapi"
	"github.com/artpar/restmodel/core/registry"
	"github.com/artpar/restmodel/core/route"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
	"github.com/artpar/restmodel/domain/chore"
	"github.com/artpar/restmodel/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App represents the running application.
type App struct {
	Logger   zerolog.Logger
	Config   *config.Config
	Registry *registry.Registry
	Router   *route.Router
	Faults   *fault.Table
	Events   *events.Bus
	Metrics  *metrics.Collector
	Backend  ports.RecordStore

	// Holder is nil when the app runs on built-in defaults.
	Holder *config.Holder

	HTTPServer *http.Server
	openAPI    *openapi.Spec
}

// Options configures New.
type Options struct {
	// ConfigPath is the YAML file to load. A missing file falls back to
	// config.Default.
	ConfigPath string

	// Output receives log lines. Defaults to stdout.
	Output io.Writer
}

// New loads configuration and builds the application.
func New(opts Options) (*App, error) {
	var holder *config.Holder
	cfg := config.Default()

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			h, err := config.NewHolder(opts.ConfigPath, zerolog.Nop())
			if err != nil {
				return nil, err
			}
			holder = h
			cfg = h.Get()
		}
	}

	logger := NewLogger(cfg.Logging, opts.Output)
	if holder == nil {
		logger.Info().Str("path", opts.ConfigPath).Msg("no config file, using defaults")
	}

	a, err := NewFromConfig(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	if holder != nil {
		a.attachHolder(holder, opts.ConfigPath)
	}
	return a, nil
}

// NewFromConfig builds the application from an already loaded configuration.
// Registries, routes and the fault table are frozen on return.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	logger.Info().Str("driver", cfg.Database.Driver).Msg("initializing restmodel")

	a := &App{
		Logger:   logger,
		Config:   cfg,
		Registry: registry.New(),
		Faults:   fault.NewTable(),
		Events:   events.NewBus(logger),
		Metrics:  metrics.New(),
	}

	routerOpts := []route.Option{route.WithFaultTable(a.Faults)}
	if cfg.Metrics.Enabled {
		routerOpts = append(routerOpts, route.WithObserver(a.Metrics))
	}
	a.Router = route.New(routerOpts...)

	backend, err := openBackend(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.Backend = backend

	if err := a.registerResources(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Registry.Freeze()
	a.Router.Freeze()
	a.Faults.Freeze()

	a.openAPI = a.buildOpenAPI()
	if _, err := openapi.Publish(a.openAPI); err != nil {
		a.Close()
		return nil, fmt.Errorf("publish openapi: %w", err)
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.buildHandler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	for _, res := range a.Registry.List() {
		logger.Info().
			Str("resource", res.Name).
			Str("path", res.Path).
			Strs("methods", res.Store.Methods()).
			Msg("resource registered")
	}
	return a, nil
}

func openBackend(cfg config.DatabaseConfig) (ports.RecordStore, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewRecordStore(), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRecordStore(db), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func (a *App) storeOptions() []store.Option {
	opts := []store.Option{store.WithObserver(a.Events), store.WithLogger(a.Logger)}
	if a.Config.Metrics.Enabled {
		opts = append(opts, store.WithObserver(a.Metrics))
	}
	return opts
}

func (a *App) registerResources(ctx context.Context) error {
	if a.Config.Builtin.Chores {
		if _, err := chore.Register(ctx, a.Registry, a.Router, a.Backend, clock.Real{}, a.storeOptions()...); err != nil {
			return fmt.Errorf("register %s: %w", chore.Name, err)
		}
	}

	for _, def := range a.Config.Resources {
		if err := a.registerDefinition(ctx, def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}

func (a *App) registerDefinition(ctx context.Context, def schema.Definition) error {
	sch, err := def.Build()
	if err != nil {
		return err
	}
	if err := a.Backend.Migrate(ctx, sch); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	s := store.New(sch, a.Backend, a.storeOptions()...)
	if err := s.Disable(def.Disable...); err != nil {
		return err
	}

	res, err := a.Registry.Register(s, def.Path)
	if err != nil {
		return err
	}
	return a.Router.Mount(res)
}

func (a *App) buildOpenAPI() *openapi.Spec {
	gen := openapi.NewGenerator(a.Registry.List(), a.Router)
	gen.SetInfo(openapi.Info{
		Title:       a.Config.OpenAPI.Title,
		Version:     a.Config.OpenAPI.Version,
		Description: "Generated from resource schemas",
	})
	if a.Config.Auth.Enabled() {
		gen.RequireAPIKey(a.Config.Auth.Header)
	}
	return gen.Generate()
}

// OpenAPI returns the generated document.
func (a *App) OpenAPI() *openapi.Spec {
	return a.openAPI
}

func (a *App) buildHandler() http.Handler {
	cfg := channel.Config{
		Router:         a.Router,
		Logger:         a.Logger,
		Faults:         a.Faults,
		RequestTimeout: a.Config.Server.WriteTimeout,
	}
	if a.Config.Metrics.Enabled {
		cfg.Metrics = a.Metrics
		cfg.MetricsPath = a.Config.Metrics.Path
	}
	if a.Config.OpenAPI.Enabled {
		cfg.OpenAPI = a.OpenAPI
	}
	if a.Config.Auth.Enabled() {
		cfg.APIKeyHash = []byte(a.Config.Auth.APIKeyHash)
		cfg.APIKeyHeader = a.Config.Auth.Header
		cfg.Hasher = hasher.NewBcrypt(0)
	}
	return channel.New(cfg).Handler()
}

// attachHolder applies reloaded log levels and counts reloads.
func (a *App) attachHolder(h *config.Holder, path string) {
	a.Holder = h
	h.SetLogger(a.Logger)
	h.SetObserver(a.Metrics)
	h.OnChange(func(cfg *config.Config) {
		zerolog.SetGlobalLevel(config.ParseLevel(cfg.Logging.Level))
	})
	a.Logger.Info().Str("path", path).Msg("configuration loaded")
}

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.HTTPServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln with graceful shutdown and, when a config file
// is in use, watches it for changes. The app is closed on return.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("starting http server")
		if err := a.HTTPServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if a.Holder != nil {
		g.Go(func() error {
			return a.Holder.Watch(ctx)
		})
	}

	return g.Wait()
}

// Close releases the backend.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	err := a.Backend.Close()
	a.Backend = nil
	if err != nil {
		a.Logger.Error().Err(err).Msg("database close error")
		return err
	}
	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.Level))

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}
