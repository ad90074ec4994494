// Package app builds the service graph from configuration and owns its
// lifecycle: background sweeps, the HTTP server and ordered shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sqlgate/sqlgate/audit"
	"github.com/sqlgate/sqlgate/config"
	"github.com/sqlgate/sqlgate/confirm"
	"github.com/sqlgate/sqlgate/database"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/executor"
	"github.com/sqlgate/sqlgate/internal/tracking"
	"github.com/sqlgate/sqlgate/logger"
	"github.com/sqlgate/sqlgate/metadata"
	"github.com/sqlgate/sqlgate/observability"
	"github.com/sqlgate/sqlgate/server"
	"github.com/sqlgate/sqlgate/toolset"
)

type namedCloser struct {
	name   string
	closer io.Closer
}

// App is the assembled service.
type App struct {
	cfg      *config.Config
	logger   logger.Logger
	obs      observability.Provider
	provider *database.Provider
	store    *confirm.Store
	tools    *toolset.Toolset
	server   *server.Server
	closers  []namedCloser
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	// Connector opens pools. Nil selects database.Connect.
	Connector database.Connector
	// Recorders are added to the audit fan-out next to the configured sinks.
	Recorders []audit.Recorder
}

// New builds every component. Nothing is started until Run.
func New(cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: log}

	obs, err := observability.NewProvider(cfg.Observability, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	a.obs = obs
	in := tracking.New(obs.MeterProvider(), obs.TracerProvider())

	a.provider = database.NewProvider(log, providerOptions(cfg), opts.Connector)
	if err := a.provider.RegisterMetrics(in); err != nil {
		log.Warn().Err(err).Msg("Pool metrics disabled")
	}

	recorder, err := a.buildRecorder(opts.Recorders)
	if err != nil {
		_ = a.Shutdown(context.Background())
		return nil, err
	}

	exec := executor.New(a.provider, recorder, in, log, executor.Options{
		DefaultLimit:   cfg.Execution.Limit,
		DefaultTimeout: cfg.Execution.Timeout,
	})

	a.store = confirm.NewStore(exec, log, cfg.Confirm.TTL)
	if err := a.store.RegisterMetrics(in); err != nil {
		log.Warn().Err(err).Msg("Preview metrics disabled")
	}

	reader := metadata.NewReader(a.provider, log, cfg.Execution.Timeout)
	a.tools = toolset.New(exec, a.store, reader, log)
	a.server = server.New(cfg, log, a.tools, a.readiness)

	return a, nil
}

func providerOptions(cfg *config.Config) database.Options {
	return database.Options{
		Pool: types.PoolOptions{
			MaxOpen:     cfg.Pool.Max,
			MinIdle:     cfg.Pool.Idle.Min,
			IdleTimeout: cfg.Pool.Idle.Timeout,
			PingTimeout: cfg.Pool.Ping.Timeout,
		},
		AcquireTimeout: cfg.Pool.Acquire.Timeout,
		IdleTTL:        cfg.Pool.Idle.Timeout,
	}
}

// buildRecorder assembles the audit fan-out. The log sink is always present.
// An unreachable broker disables only the AMQP sink.
func (a *App) buildRecorder(extra []audit.Recorder) (audit.Multi, error) {
	recorders := audit.Multi{audit.NewLogRecorder(a.logger)}

	if path := a.cfg.Audit.File; path != "" {
		f, err := audit.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		recorders = append(recorders, f)
		a.closers = append(a.closers, namedCloser{"audit file", f})
	}

	if amqpCfg := a.cfg.Audit.AMQP; amqpCfg.URL != "" {
		r, err := audit.DialAMQP(amqpCfg.URL, amqpCfg.Exchange, amqpCfg.Key, a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Str("amqp_url", amqpCfg.URL).Msg("AMQP audit sink disabled")
		} else {
			recorders = append(recorders, r)
			a.closers = append(a.closers, namedCloser{"audit amqp", r})
		}
	}

	return append(recorders, extra...), nil
}

func (a *App) readiness(context.Context) (map[string]any, error) {
	details := map[string]any{
		"pools":            a.provider.Size(),
		"pending_previews": a.store.Len(),
	}
	if a.provider.Closed() {
		return details, database.ErrProviderClosed
	}
	return details, nil
}

// Server returns the HTTP server.
func (a *App) Server() *server.Server {
	return a.server
}

// Tools returns the tool boundary.
func (a *App) Tools() *toolset.Toolset {
	return a.tools
}

// Start launches the pool reaper and the preview sweep.
func (a *App) Start() {
	a.provider.StartCleanup(a.cfg.Pool.Cleanup.Interval)
	a.store.StartSweep(a.cfg.Confirm.Cleanup.Interval)
}

// Run starts background work and serves until ctx is done or the server
// fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			a.logger.Error().Err(err).Msg("Server stopped unexpectedly")
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.Timeout.Shutdown)
	defer cancel()

	a.logger.Info().Msg("Shutting down application")
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the server first so no new calls arrive, then the sweeps,
// pools, audit sinks and telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server: %w", err))
		}
	}
	if a.store != nil {
		a.store.StopSweep()
	}
	if err := a.provider.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database pools")
		errs = append(errs, fmt.Errorf("database pools: %w", err))
	}

	for _, c := range a.closers {
		a.shutdownResource(c, &errs)
	}
	a.closers = nil

	if err := observability.Shutdown(a.obs, a.cfg.Server.Timeout.Shutdown); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		a.logger.Info().Msg("Graceful shutdown completed")
	}
	return errors.Join(errs...)
}

func (a *App) shutdownResource(c namedCloser, errs *[]error) {
	if err := c.closer.Close(); err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", c.name, err))
		a.logger.Error().Err(err).Msgf("Failed to close %s", c.name)
	}
}
