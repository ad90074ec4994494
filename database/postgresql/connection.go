// Package postgresql opens pools for PostgreSQL and for KingBase, which speaks
// the PostgreSQL wire protocol.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlgate/sqlgate/database/internal/sqlpool"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

var openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
	return stdlib.OpenDB(*cfg)
}

// quoteDSN quotes a keyword/value DSN value following libpq rules.
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	needsQuoting := false
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '.' && r != '_' && r != '-' {
			needsQuoting = true
			break
		}
	}
	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

// BuildDSN renders target as a libpq keyword/value string.
func BuildDSN(target types.Target) string {
	parts := []string{
		"host=" + quoteDSN(target.Host),
		fmt.Sprintf("port=%d", target.Port),
		"user=" + quoteDSN(target.Username),
		"password=" + quoteDSN(target.Password),
		"dbname=" + quoteDSN(target.Database),
	}
	if target.TLS && target.Kind.SupportsTLS() {
		parts = append(parts, "sslmode=require")
	}
	return strings.Join(parts, " ")
}

// Open creates a pool for a PostgreSQL or KingBase target.
func Open(ctx context.Context, target types.Target, opts types.PoolOptions, log logger.Logger) (*sqlpool.Pool, error) {
	pgxConfig, err := pgx.ParseConfig(BuildDSN(target))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", target.Kind, err)
	}

	return sqlpool.Open(ctx, openPostgresDB(pgxConfig), target, opts, log)
}
