// Package app wires the application components together and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr-karan/vigil/internal/alerts"
	"github.com/mr-karan/vigil/internal/config"
	"github.com/mr-karan/vigil/internal/server"
	"github.com/mr-karan/vigil/internal/sqlite"
)

// App holds the application components.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	SQLite     *sqlite.DB
	Engine     *alerts.Engine
	Dispatcher *alerts.Dispatcher
	Version    string

	server *server.Server
}

// Options holds the configuration for creating a new App.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string
}

// New creates an App shell. Components are built in Initialize.
func New(opts Options) *App {
	return &App{
		Config:  opts.Config,
		Logger:  opts.Logger,
		Version: opts.Version,
	}
}

// Initialize builds all components and starts the dispatcher loop.
func (a *App) Initialize(ctx context.Context) error {
	var err error

	a.SQLite, err = sqlite.New(sqlite.Options{
		Config: a.Config.SQLite,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite: %w", err)
	}

	a.Engine = alerts.NewEngine(a.SQLite, a.Logger)
	a.Dispatcher = alerts.NewDispatcher(a.SQLite, a.Config.Alerts, a.Logger)

	a.server = server.New(server.Options{
		Config:  a.Config,
		SQLite:  a.SQLite,
		Engine:  a.Engine,
		Logger:  a.Logger,
		Version: a.Version,
	})

	a.Dispatcher.Start(ctx)
	return nil
}

// Start begins serving HTTP. It blocks until the listener closes.
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("server not initialized")
	}
	return a.server.Start()
}

// Shutdown stops all components with per-component timeouts, newest
// consumers first so in-flight work drains cleanly.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if a.Dispatcher != nil {
		a.Logger.Info("stopping notification dispatcher")
		a.Dispatcher.Stop()
	}

	if a.server != nil {
		serverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		a.Logger.Info("shutting down HTTP server")
		if err := a.server.Shutdown(serverCtx); err != nil {
			a.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if a.SQLite != nil {
		a.Logger.Info("closing database")
		if err := a.SQLite.Close(); err != nil {
			a.Logger.Error("error closing database", "error", err)
		}
	}

	a.Logger.Info("shutdown complete")
	return nil
}
