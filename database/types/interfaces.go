//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"context"
	"database/sql"
	"time"
)

// Pool is a live connection pool for one Target.
type Pool interface {
	// Conn leases a dedicated connection. Callers must Close it.
	Conn(ctx context.Context) (*sql.Conn, error)
	Health(ctx context.Context) error
	Stats() sql.DBStats
	Close() error
	Kind() Kind
}

// PoolOptions sizes a pool at creation time.
type PoolOptions struct {
	// MaxOpen caps open connections; further leases wait for a release.
	MaxOpen int
	// MinIdle connections are opened eagerly when the pool is created.
	MinIdle int
	// IdleTimeout retires connections unused for this long.
	IdleTimeout time.Duration
	// PingTimeout bounds the connectivity check made on creation.
	PingTimeout time.Duration
}
