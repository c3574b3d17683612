package app

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchktools/webframe/config"
	"github.com/searchktools/webframe/core"
	"github.com/searchktools/webframe/core/middleware"
	"github.com/searchktools/webframe/core/observability"
	"github.com/searchktools/webframe/core/pools"
)

// App is the application instance: configuration, logger and engine
type App struct {
	cfg    *config.Config
	log    zerolog.Logger
	engine *core.Engine
}

// New creates an application instance. It fails when the TLS key pair can
// not be loaded.
func New(cfg *config.Config) (*App, error) {
	log := NewLogger(cfg, os.Stderr)

	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.GCPercent > 0 {
		pools.ApplyGCConfig(pools.GCConfig{GOGC: cfg.GCPercent})
	}

	monitor := observability.NewMonitor()
	monitor.SetEnabled(cfg.Metrics)

	engine := core.NewEngine(core.Options{
		Threads:     cfg.Threads,
		Transport:   transport,
		Logger:      log,
		NotFound:    cfg.NotFound,
		IdleTimeout: cfg.IdleTimeout,
		Monitor:     monitor,
	})
	if cfg.AccessLog {
		engine.Use(middleware.Logger())
	}
	if cfg.Recover {
		engine.Use(middleware.Recovery())
	}

	return &App{
		cfg:    cfg,
		log:    log,
		engine: engine,
	}, nil
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Logger returns the application logger
func (a *App) Logger() *zerolog.Logger {
	return &a.log
}

// Run serves until SIGINT or SIGTERM
func (a *App) Run() error {
	go a.awaitSignal()

	a.log.Info().
		Int("port", a.cfg.Port).
		Int("threads", a.cfg.Threads).
		Bool("tls", a.cfg.TLS()).
		Str("env", a.cfg.Env).
		Msg("starting server")

	if err := a.engine.Start(a.cfg.Addr()); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	return nil
}

func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	a.log.Info().Str("signal", sig.String()).Msg("shutting down")
	a.engine.Close()
}

// NewTransport returns a TLS transport when a key pair is configured and a
// plain one otherwise
func NewTransport(cfg *config.Config) (core.Transport, error) {
	if cfg.TLS() {
		return core.NewTLSTransport(cfg.CertFile, cfg.KeyFile, cfg.MaxConnections)
	}
	return &core.PlainTransport{MaxConnections: cfg.MaxConnections}, nil
}

// NewLogger builds the application logger: console output in development,
// JSON lines otherwise
func NewLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
