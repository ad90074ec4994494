// Package sqlserver opens pools for Microsoft SQL Server targets.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/sqlgate/sqlgate/database/internal/sqlpool"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

var openSQLServerDB = func(dsn string) (*sql.DB, error) {
	connector, err := mssql.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// BuildDSN renders target as a sqlserver:// URL.
func BuildDSN(target types.Target) string {
	query := url.Values{}
	query.Set("database", target.Database)
	if target.TLS {
		query.Set("encrypt", "true")
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(target.Username, target.Password),
		Host:     target.Address(),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Open creates a pool for a SQL Server target.
func Open(ctx context.Context, target types.Target, opts types.PoolOptions, log logger.Logger) (*sqlpool.Pool, error) {
	db, err := openSQLServerDB(BuildDSN(target))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL Server connection: %w", err)
	}
	return sqlpool.Open(ctx, db, target, opts, log)
}
