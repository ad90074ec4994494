//go:build integration

package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/database"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
	"github.com/sqlgate/sqlgate/testing/containers"
)

func newPostgresExecutor(t *testing.T) (*Executor, types.Target) {
	t.Helper()
	ctx := context.Background()
	pg := containers.StartPostgreSQL(ctx, t, containers.PostgreSQLConfig{})

	provider := database.NewProvider(logger.Nop(), database.DefaultOptions(), nil)
	t.Cleanup(func() { _ = provider.Close() })

	return New(provider, &captureRecorder{}, nil, logger.Nop(), Options{}), pg.Target
}

func TestPostgresBatchRollsBackOnFailure(t *testing.T) {
	exec, target := newPostgresExecutor(t)
	ctx := context.Background()

	out := exec.Update(ctx, target, Statement{Text: "CREATE TABLE accounts (id int PRIMARY KEY, balance int NOT NULL)"})
	require.True(t, out.Success, out.Message)

	out = exec.Batch(ctx, target, []string{
		"INSERT INTO accounts VALUES (1, 100)",
		"INSERT INTO accounts VALUES (2, 50)",
		"INSERT INTO accounts VALUES (1, 0)",
	}, 0)
	require.False(t, out.Success)
	var execErr *ExecutionError
	require.True(t, errors.As(out.Err, &execErr))
	assert.Equal(t, "batch statement 3", execErr.Op)

	out = exec.Query(ctx, target, Statement{Text: "SELECT count(*) AS n FROM accounts"})
	require.True(t, out.Success, out.Message)
	n, _ := out.Rows[0].Get("n")
	assert.EqualValues(t, 0, n)
}

func TestPostgresQueryHonoursLimit(t *testing.T) {
	exec, target := newPostgresExecutor(t)

	out := exec.Query(context.Background(), target, Statement{Text: "SELECT g AS n FROM generate_series(1, 1500) AS g", Limit: 1000})

	require.True(t, out.Success, out.Message)
	assert.Len(t, out.Rows, 1000)
}

func TestPostgresParameterizedQueryIsRepeatable(t *testing.T) {
	exec, target := newPostgresExecutor(t)
	ctx := context.Background()

	require.True(t, exec.Update(ctx, target, Statement{Text: "CREATE TABLE items (id int, name text)"}).Success)
	for i := 1; i <= 3; i++ {
		out := exec.Update(ctx, target, Statement{Text: "INSERT INTO items VALUES ($1, $2)", Params: []any{i, fmt.Sprintf("item-%d", i)}})
		require.True(t, out.Success, out.Message)
	}

	stmt := Statement{Text: "SELECT id, name FROM items WHERE id >= $1 ORDER BY id", Params: []any{2}}
	first := exec.Query(ctx, target, stmt)
	second := exec.Query(ctx, target, stmt)

	require.True(t, first.Success, first.Message)
	require.True(t, second.Success, second.Message)
	assert.Equal(t, first.Rows, second.Rows)
	require.Len(t, first.Rows, 2)
	name, _ := first.Rows[0].Get("name")
	assert.Equal(t, "item-2", name)
}

func TestPostgresStatementTimeout(t *testing.T) {
	exec, target := newPostgresExecutor(t)

	start := time.Now()
	out := exec.Query(context.Background(), target, Statement{Text: "SELECT pg_sleep(5)", Timeout: time.Second})

	require.False(t, out.Success)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, MsgTimeout, out.FriendlyMessage)
}
