// Package sqlpool wraps a database/sql handle as a types.Pool. The family
// connectors build the handle; this package sizes it, proves it reachable
// and owns its lifecycle.
package sqlpool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

const (
	healthTimeout      = 5 * time.Second
	defaultPingTimeout = 10 * time.Second
)

// Pool implements types.Pool over *sql.DB.
type Pool struct {
	db     *sql.DB
	kind   types.Kind
	name   string
	logger logger.Logger
}

var _ types.Pool = (*Pool)(nil)

// Wrap adopts an already configured handle without pinging it.
func Wrap(db *sql.DB, target types.Target, log logger.Logger) *Pool {
	return &Pool{db: db, kind: target.Kind, name: target.String(), logger: log}
}

// Open applies opts to db, warms MinIdle connections and pings. On failure the
// handle is closed and the ping error returned.
func Open(ctx context.Context, db *sql.DB, target types.Target, opts types.PoolOptions, log logger.Logger) (*Pool, error) {
	configure(db, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := warm(pingCtx, db, opts.MinIdle); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("pool", target.String()).Msg("Failed to close database handle after ping failure")
		}
		return nil, fmt.Errorf("failed to ping %s database: %w", target.Kind, err)
	}

	log.Info().
		Str("pool", target.String()).
		Int("max_open", opts.MaxOpen).
		Int("min_idle", opts.MinIdle).
		Msg("Connected to database")

	return Wrap(db, target, log), nil
}

func configure(db *sql.DB, opts types.PoolOptions) {
	db.SetMaxOpenConns(opts.MaxOpen)
	// database/sql has no idle floor; retaining up to MaxOpen idle connections
	// and retiring them by age is the closest match.
	db.SetMaxIdleConns(max(opts.MaxOpen, opts.MinIdle))
	db.SetConnMaxIdleTime(opts.IdleTimeout)
}

// warm opens n connections at once (at least one) and returns them to the idle set.
func warm(ctx context.Context, db *sql.DB, n int) error {
	if n <= 1 {
		return db.PingContext(ctx)
	}
	conns := make([]*sql.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for range n {
		c, err := db.Conn(ctx)
		if err != nil {
			return err
		}
		conns = append(conns, c)
		if err := c.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Conn leases a dedicated connection.
func (p *Pool) Conn(ctx context.Context) (*sql.Conn, error) {
	return p.db.Conn(ctx)
}

// Health pings the database.
func (p *Pool) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

func (p *Pool) Kind() types.Kind {
	return p.kind
}

// Close closes the handle. Closing twice is harmless.
func (p *Pool) Close() error {
	p.logger.Info().Str("pool", p.name).Msg("Closing database pool")
	return p.db.Close()
}
