package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/confirm"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/executor"
	"github.com/sqlgate/sqlgate/logger"
	"github.com/sqlgate/sqlgate/metadata"
	"github.com/sqlgate/sqlgate/safety"
)

type call struct {
	op         string
	target     types.Target
	stmt       executor.Statement
	statements []string
	timeout    time.Duration
}

type fakeRunner struct {
	calls   []call
	outcome *executor.Outcome
}

func (f *fakeRunner) result() *executor.Outcome {
	if f.outcome != nil {
		return f.outcome
	}
	n := int64(1)
	return &executor.Outcome{Success: true, Affected: &n, Elapsed: 12 * time.Millisecond, Message: "execution succeeded", FriendlyMessage: "1 rows affected"}
}

func (f *fakeRunner) Query(_ context.Context, t types.Target, s executor.Statement) *executor.Outcome {
	f.calls = append(f.calls, call{op: "query", target: t, stmt: s})
	return f.result()
}

func (f *fakeRunner) Update(_ context.Context, t types.Target, s executor.Statement) *executor.Outcome {
	f.calls = append(f.calls, call{op: "update", target: t, stmt: s})
	return f.result()
}

func (f *fakeRunner) Batch(_ context.Context, t types.Target, statements []string, timeout time.Duration) *executor.Outcome {
	f.calls = append(f.calls, call{op: "batch", target: t, statements: statements, timeout: timeout})
	return f.result()
}

type fakeMeta struct {
	tables []string
	table  *metadata.Table
	err    error
}

func (f *fakeMeta) ListTables(context.Context, types.Target) ([]string, error) {
	return f.tables, f.err
}

func (f *fakeMeta) DescribeTable(_ context.Context, _ types.Target, name string) (*metadata.Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func newToolset() (*Toolset, *fakeRunner, *confirm.Store, *fakeMeta) {
	runner := &fakeRunner{}
	store := confirm.NewStore(runner, logger.Nop(), 0)
	meta := &fakeMeta{}
	return New(runner, store, meta, logger.Nop()), runner, store, meta
}

const conn = `"dbType":"MySQL","host":"db.internal","username":"app","password":"pw","database":"shop"`

func invoke(t *testing.T, ts *Toolset, name, args string) Result {
	t.Helper()
	res, err := ts.Call(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	return res
}

func TestExecuteQuery(t *testing.T) {
	ts, runner, _, _ := newToolset()
	row := executor.Outcome{Success: true, Rows: []executor.Row{}, Elapsed: 3 * time.Millisecond, Message: "query succeeded", FriendlyMessage: "fetched 0 rows"}
	runner.outcome = &row

	res := invoke(t, ts, ToolExecuteQuery, `{`+conn+`,"sql":"SELECT * FROM t WHERE id = ?","params":[7, 2.5, "x", null],"limit":10,"timeout":5,"useSsl":true}`)

	assert.Equal(t, true, res["success"])
	assert.Equal(t, 0, res["rowCount"])
	assert.EqualValues(t, 3, res["executionTime"])
	assert.NotContains(t, res, "affectedRows")

	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	assert.Equal(t, "query", c.op)
	assert.Equal(t, types.Target{Kind: types.MySQL, Host: "db.internal", Port: 3306, Username: "app", Password: "pw", Database: "shop", TLS: true}, c.target)
	assert.Equal(t, []any{int64(7), 2.5, "x", nil}, c.stmt.Params)
	assert.Equal(t, 10, c.stmt.Limit)
	assert.Equal(t, 5*time.Second, c.stmt.Timeout)
}

func TestArgumentValidation(t *testing.T) {
	ts, runner, _, _ := newToolset()

	tests := []struct {
		name  string
		tool  string
		args  string
		field string
	}{
		{"missing sql", ToolExecuteQuery, `{` + conn + `}`, "sql"},
		{"unknown kind", ToolExecuteQuery, `{"dbType":"db2","host":"h","database":"d","sql":"SELECT 1"}`, "dbType"},
		{"bad port", ToolExecuteQuery, `{` + conn + `,"port":70000,"sql":"SELECT 1"}`, "port"},
		{"negative limit", ToolExecuteQuery, `{` + conn + `,"sql":"SELECT 1","limit":-1}`, "limit"},
		{"empty batch", ToolExecuteBatch, `{` + conn + `,"sqlList":[]}`, "sqlList"},
		{"blank batch item", ToolExecuteBatch, `{` + conn + `,"sqlList":["INSERT INTO t VALUES (1)",""]}`, "sqlList[1]"},
		{"missing confirm id", ToolConfirmWrite, `{}`, "confirmId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Call(context.Background(), tt.tool, json.RawMessage(tt.args))
			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			require.NotEmpty(t, argErr.Fields)
			assert.Equal(t, tt.field, argErr.Fields[0].Field)
		})
	}
	assert.Empty(t, runner.calls)
}

func TestMalformedJSON(t *testing.T) {
	ts, _, _, _ := newToolset()
	_, err := ts.Call(context.Background(), ToolExecuteQuery, json.RawMessage(`{"sql":`))
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Empty(t, argErr.Fields)
}

func TestUnknownTool(t *testing.T) {
	ts, _, _, _ := newToolset()
	_, err := ts.Call(context.Background(), "dropEverything", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestExecuteWriteCreatesPreview(t *testing.T) {
	ts, runner, store, _ := newToolset()

	res := invoke(t, ts, ToolExecuteWrite, `{`+conn+`,"sql":"  update orders SET status = ? WHERE id = ?","params":["paid", 3]}`)

	assert.Equal(t, true, res["success"])
	assert.Equal(t, "UPDATE", res["operationType"])
	assert.Equal(t, 30, res["expireMinutes"])
	assert.NotEmpty(t, res["confirmId"])
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, runner.calls)

	res = invoke(t, ts, ToolConfirmWrite, `{"confirmId":"`+res["confirmId"].(string)+`","timeout":9}`)
	assert.Equal(t, true, res["success"])
	assert.EqualValues(t, 1, res["affectedRows"])
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []any{"paid", int64(3)}, runner.calls[0].stmt.Params)
	assert.Equal(t, 9*time.Second, runner.calls[0].stmt.Timeout)
}

func TestExecuteWriteBlocked(t *testing.T) {
	ts, _, store, _ := newToolset()

	res := invoke(t, ts, ToolExecuteWrite, `{`+conn+`,"sql":"DELETE FROM orders"}`)

	assert.Equal(t, false, res["success"])
	assert.Equal(t, safety.ReasonDeleteWithoutWhere, res["message"])
	assert.Equal(t, "safety check failed: DELETE requires WHERE", res["friendlyMessage"])
	assert.Equal(t, 0, store.Len())
}

func TestConfirmWriteUnknownID(t *testing.T) {
	ts, runner, _, _ := newToolset()

	res := invoke(t, ts, ToolConfirmWrite, `{"confirmId":"nope"}`)

	assert.Equal(t, false, res["success"])
	assert.Equal(t, "confirmation id missing or already used", res["message"])
	assert.Empty(t, runner.calls)
}

func TestConfirmWriteTwice(t *testing.T) {
	ts, runner, _, _ := newToolset()
	res := invoke(t, ts, ToolExecuteWrite, `{`+conn+`,"sql":"INSERT INTO t VALUES (1)"}`)
	id := res["confirmId"].(string)

	first := invoke(t, ts, ToolConfirmWrite, `{"confirmId":"`+id+`"}`)
	second := invoke(t, ts, ToolConfirmWrite, `{"confirmId":"`+id+`"}`)

	assert.Equal(t, true, first["success"])
	assert.Equal(t, false, second["success"])
	assert.Len(t, runner.calls, 1)
}

func TestExecuteBatch(t *testing.T) {
	ts, runner, _, _ := newToolset()

	res := invoke(t, ts, ToolExecuteBatch, `{`+conn+`,"sqlList":["INSERT INTO t VALUES (1)","UPDATE t SET v = 1 WHERE id = 1"],"timeout":4}`)

	assert.Equal(t, true, res["success"])
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"INSERT INTO t VALUES (1)", "UPDATE t SET v = 1 WHERE id = 1"}, runner.calls[0].statements)
	assert.Equal(t, 4*time.Second, runner.calls[0].timeout)
}

func TestExecuteBatchRejectsUnsafeItems(t *testing.T) {
	ts, runner, _, _ := newToolset()

	res := invoke(t, ts, ToolExecuteBatch, `{`+conn+`,"sqlList":["INSERT INTO t VALUES (1)","UPDATE t SET v = 1"]}`)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "UPDATE t SET v = 1", res["failedSql"])
	assert.Equal(t, safety.ReasonUpdateWithoutWhere, res["message"])

	res = invoke(t, ts, ToolExecuteBatch, `{`+conn+`,"sqlList":["TRUNCATE TABLE t"]}`)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, true, res["needsConfirmation"])
	assert.Equal(t, "TRUNCATE", res["confirmationType"])
	assert.Equal(t, "TRUNCATE TABLE t", res["failedSql"])

	assert.Empty(t, runner.calls)
}

func TestExecuteDDL(t *testing.T) {
	ts, runner, _, _ := newToolset()

	res := invoke(t, ts, ToolExecuteDDL, `{`+conn+`,"sql":"DROP TABLE t"}`)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, true, res["needsConfirmation"])
	assert.Equal(t, "DROP_TABLE", res["confirmationType"])
	assert.Empty(t, runner.calls)

	res = invoke(t, ts, ToolExecuteDDL, `{`+conn+`,"sql":"DROP TABLE t","confirmed":true}`)
	assert.Equal(t, true, res["success"])
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "update", runner.calls[0].op)
	assert.Nil(t, runner.calls[0].stmt.Params)

	res = invoke(t, ts, ToolExecuteDDL, `{`+conn+`,"sql":"CREATE TABLE t (id INT)"}`)
	assert.Equal(t, true, res["success"])
	assert.Len(t, runner.calls, 2)
}

func TestExecuteDDLBlocked(t *testing.T) {
	ts, runner, _, _ := newToolset()
	res := invoke(t, ts, ToolExecuteDDL, `{`+conn+`,"sql":"DELETE FROM t","confirmed":true}`)
	assert.Equal(t, false, res["success"])
	assert.Empty(t, runner.calls)
}

func TestGetMetadata(t *testing.T) {
	ts, _, _, meta := newToolset()
	meta.tables = []string{"orders"}
	meta.table = &metadata.Table{Name: "orders"}

	res := invoke(t, ts, ToolGetMetadata, `{`+conn+`}`)
	assert.Equal(t, Result{"success": true, "tables": []string{"orders"}}, res)

	res = invoke(t, ts, ToolGetMetadata, `{`+conn+`,"tableName":"orders"}`)
	assert.Equal(t, Result{"success": true, "metadata": meta.table}, res)

	meta.err = errors.New("Access denied for user 'app'")
	res = invoke(t, ts, ToolGetMetadata, `{`+conn+`}`)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "failed to read metadata: Access denied for user 'app'", res["friendlyMessage"])
}

func TestFailureOutcomeShape(t *testing.T) {
	ts, runner, _, _ := newToolset()
	runner.outcome = &executor.Outcome{Success: false, Elapsed: 40 * time.Millisecond, Message: "Duplicate entry '1'", FriendlyMessage: executor.MsgDuplicateEntry}

	res := invoke(t, ts, ToolExecuteDDL, `{`+conn+`,"sql":"CREATE TABLE t (id INT)"}`)
	assert.Equal(t, Result{
		"success":         false,
		"message":         "Duplicate entry '1'",
		"friendlyMessage": executor.MsgDuplicateEntry,
		"executionTime":   int64(40),
	}, res)
}

func TestDescribe(t *testing.T) {
	names := make([]string, 0)
	for _, d := range Describe() {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description)
	}
	assert.Equal(t, []string{"confirmWrite", "executeBatch", "executeDDL", "executeQuery", "executeWrite", "getMetadata"}, names)
}
