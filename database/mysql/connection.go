// Package mysql opens pools for MySQL targets.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/sqlgate/sqlgate/database/internal/sqlpool"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

var openMySQLDB = func(cfg *mysql.Config) (*sql.DB, error) {
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// BuildConfig maps target onto a driver configuration. Temporal columns are
// parsed into time.Time so results carry native values.
func BuildConfig(target types.Target) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = target.Username
	cfg.Passwd = target.Password
	cfg.Net = "tcp"
	cfg.Addr = target.Address()
	cfg.DBName = target.Database
	cfg.ParseTime = true
	if target.TLS {
		cfg.TLSConfig = "true"
	}
	return cfg
}

// Open creates a pool for a MySQL target.
func Open(ctx context.Context, target types.Target, opts types.PoolOptions, log logger.Logger) (*sqlpool.Pool, error) {
	db, err := openMySQLDB(BuildConfig(target))
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	return sqlpool.Open(ctx, db, target, opts, log)
}
