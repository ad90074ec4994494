package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

func pgTarget() types.Target {
	return types.Target{Kind: types.PostgreSQL, Host: "pg.internal", Port: 5432, Username: "app", Password: "p w'd", Database: "orders"}
}

func TestQuoteDSN(t *testing.T) {
	assert.Equal(t, "''", quoteDSN(""))
	assert.Equal(t, "plain_value-1.0", quoteDSN("plain_value-1.0"))
	assert.Equal(t, `'a b'`, quoteDSN("a b"))
	assert.Equal(t, `'it\'s'`, quoteDSN("it's"))
	assert.Equal(t, `'back\\slash'`, quoteDSN(`back\slash`))
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, `host=pg.internal port=5432 user=app password='p w\'d' dbname=orders`, BuildDSN(pgTarget()))

	tls := pgTarget()
	tls.TLS = true
	assert.Contains(t, BuildDSN(tls), "sslmode=require")
}

func TestBuildDSNKingBaseIgnoresTLS(t *testing.T) {
	kb := pgTarget()
	kb.Kind = types.KingBase
	kb.TLS = true
	assert.NotContains(t, BuildDSN(kb), "sslmode")
}

func withMockOpener(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	original := openPostgresDB
	openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
		assert.Equal(t, "pg.internal", cfg.Host)
		assert.Equal(t, "p w'd", cfg.Password)
		return db
	}
	t.Cleanup(func() { openPostgresDB = original })
	return mock
}

func TestOpen(t *testing.T) {
	mock := withMockOpener(t)
	mock.ExpectPing()

	pool, err := Open(context.Background(), pgTarget(), types.PoolOptions{MaxOpen: 10, MinIdle: 1, IdleTimeout: time.Hour, PingTimeout: time.Second}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, types.PostgreSQL, pool.Kind())
	assert.Equal(t, 10, pool.Stats().MaxOpenConnections)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenPingFailure(t *testing.T) {
	mock := withMockOpener(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	_, err := Open(context.Background(), pgTarget(), types.PoolOptions{MaxOpen: 1, PingTimeout: time.Second}, logger.Nop())
	require.ErrorContains(t, err, "connection refused")
	require.NoError(t, mock.ExpectationsWereMet())
}
