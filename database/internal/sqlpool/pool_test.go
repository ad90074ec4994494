package sqlpool

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

var target = types.Target{Kind: types.MySQL, Host: "db", Port: 3306, Username: "app", Password: "pw", Database: "shop"}

func options() types.PoolOptions {
	return types.PoolOptions{MaxOpen: 4, MinIdle: 1, IdleTimeout: time.Hour, PingTimeout: time.Second}
}

func TestOpenPingsAndConfigures(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	pool, err := Open(context.Background(), db, target, options(), logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, types.MySQL, pool.Kind())
	assert.Equal(t, 4, pool.Stats().MaxOpenConnections)
	assert.Equal(t, 1, pool.Stats().Idle)

	mock.ExpectClose()
	require.NoError(t, pool.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenClosesHandleWhenPingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing().WillReturnError(errors.New("access denied"))
	mock.ExpectClose()

	pool, err := Open(context.Background(), db, target, options(), logger.Nop())
	require.Error(t, err)
	assert.Nil(t, pool)
	assert.Contains(t, err.Error(), "failed to ping mysql database: access denied")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnAndHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	pool := Wrap(db, target, logger.Nop())

	conn, err := pool.Conn(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	mock.ExpectPing()
	require.NoError(t, pool.Health(context.Background()))

	mock.ExpectClose()
	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
