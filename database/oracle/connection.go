// Package oracle opens pools for Oracle targets through go-ora.
package oracle

import (
	"context"
	"database/sql"
	"fmt"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/sqlgate/sqlgate/database/internal/sqlpool"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

var openOracleDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("oracle", dsn)
}

// BuildDSN renders target as a go-ora URL. The database name is the service name.
func BuildDSN(target types.Target) string {
	return go_ora.BuildUrl(target.Host, target.Port, target.Database, target.Username, target.Password, nil)
}

// Open creates a pool for an Oracle target. Oracle has no TLS option here;
// the provider warns before calling when one is requested.
func Open(ctx context.Context, target types.Target, opts types.PoolOptions, log logger.Logger) (*sqlpool.Pool, error) {
	db, err := openOracleDB(BuildDSN(target))
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle connection: %w", err)
	}
	return sqlpool.Open(ctx, db, target, opts, log)
}
