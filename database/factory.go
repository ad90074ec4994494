package database

import (
	"context"

	"github.com/sqlgate/sqlgate/database/mysql"
	"github.com/sqlgate/sqlgate/database/oracle"
	"github.com/sqlgate/sqlgate/database/postgresql"
	"github.com/sqlgate/sqlgate/database/sqlserver"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

// Connector opens a new pool for a target.
type Connector func(ctx context.Context, target types.Target, opts types.PoolOptions, log logger.Logger) (types.Pool, error)

// Connect dispatches to the family connector for target.Kind.
func Connect(ctx context.Context, target types.Target, opts types.PoolOptions, log logger.Logger) (types.Pool, error) {
	if target.TLS && !target.Kind.SupportsTLS() {
		log.Warn().
			Str("db_type", string(target.Kind)).
			Str("pool", target.String()).
			Msg("TLS requested but not supported for database type, connecting without it")
	}

	switch target.Kind {
	case types.MySQL:
		return asPool(mysql.Open(ctx, target, opts, log))
	case types.PostgreSQL, types.KingBase:
		return asPool(postgresql.Open(ctx, target, opts, log))
	case types.Oracle:
		return asPool(oracle.Open(ctx, target, opts, log))
	case types.SQLServer:
		return asPool(sqlserver.Open(ctx, target, opts, log))
	default:
		_, err := target.Kind.Spec()
		return nil, err
	}
}

// asPool keeps a nil concrete pointer from becoming a non-nil interface.
func asPool[P types.Pool](p P, err error) (types.Pool, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
