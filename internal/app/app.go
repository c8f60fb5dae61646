// Package app wires the sync client together and manages its lifecycle: the
// stream connection, the dispatch loop, the audit orchestrator, and the
// local HTTP server run under one errgroup and tear down with the owning
// context.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rfenwick/tradedesk/internal/audit"
	"github.com/rfenwick/tradedesk/internal/config"
	"github.com/rfenwick/tradedesk/internal/server"
	"github.com/rfenwick/tradedesk/internal/server/handler"
	"github.com/rfenwick/tradedesk/internal/state"
	"github.com/rfenwick/tradedesk/internal/stream"
)

// App is the root application object.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, starts the long-running loops, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting sync client",
		slog.String("stream_url", a.cfg.Engine.StreamURL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	store := state.New(a.logger)

	client := stream.NewClient(stream.Config{
		URL:            a.cfg.Engine.StreamURL,
		Token:          a.cfg.Engine.Token,
		ReconnectDelay: time.Duration(a.cfg.Stream.ReconnectDelaySeconds) * time.Second,
		InboundBuffer:  a.cfg.Stream.InboundBuffer,
	}, a.logger)
	client.OnConnectionChange(store.SetConnected)
	a.closers = append(a.closers, func() { _ = client.Close() })

	orch := audit.NewOrchestrator(
		deps.Engine,
		audit.SessionConfig{AutoCloseSeconds: a.cfg.Audit.AutoCloseSeconds},
		audit.Deps{
			History: deps.History,
			Archive: deps.Archive,
			Alerter: deps.Notifier,
		},
		a.logger,
	)
	store.OnThought(orch.HandleThought)
	a.closers = append(a.closers, orch.Dispose)

	dispatcher := stream.NewDispatcher(store, deps.Mirror, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx, client.Inbound())
	})

	if a.cfg.Server.Enabled {
		srv := server.NewServer(
			server.Config{Port: a.cfg.Server.Port, APIKey: a.cfg.Server.APIKey},
			server.Handlers{
				Health: handler.NewHealthHandler(),
				Desk:   handler.NewDeskHandler(store, client),
				Audit:  handler.NewAuditHandler(orch, deps.History),
				Tuning: handler.NewTuningHandler(deps.Engine),
			},
			a.logger,
		)
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Dial failures schedule their own retries; only a refused dial (no
	// token, already torn down) is worth surfacing here.
	if err := client.Connect(gctx); err != nil {
		a.logger.Warn("initial connect failed",
			slog.String("error", err.Error()),
		)
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down sync client")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
