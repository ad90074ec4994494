package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

func myTarget() types.Target {
	return types.Target{Kind: types.MySQL, Host: "mysql.internal", Port: 3306, Username: "app", Password: "pw", Database: "shop"}
}

func TestBuildConfig(t *testing.T) {
	cfg := BuildConfig(myTarget())
	assert.Equal(t, "mysql.internal:3306", cfg.Addr)
	assert.Equal(t, "shop", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Empty(t, cfg.TLSConfig)
	assert.Equal(t, "app:pw@tcp(mysql.internal:3306)/shop?parseTime=true", cfg.FormatDSN())
}

func TestBuildConfigTLS(t *testing.T) {
	target := myTarget()
	target.TLS = true
	assert.Contains(t, BuildConfig(target).FormatDSN(), "tls=true")
}

func TestOpen(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	original := openMySQLDB
	openMySQLDB = func(cfg *mysql.Config) (*sql.DB, error) {
		assert.Equal(t, "shop", cfg.DBName)
		return db, nil
	}
	t.Cleanup(func() { openMySQLDB = original })

	mock.ExpectPing()
	pool, err := Open(context.Background(), myTarget(), types.PoolOptions{MaxOpen: 3, PingTimeout: time.Second}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, types.MySQL, pool.Kind())
	require.NoError(t, mock.ExpectationsWereMet())
}
