// Package toolset is the tool boundary: it decodes flat named arguments,
// runs the safety gate, and shapes outcomes into flat result maps.
package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sqlgate/sqlgate/confirm"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/executor"
	"github.com/sqlgate/sqlgate/logger"
	"github.com/sqlgate/sqlgate/metadata"
	"github.com/sqlgate/sqlgate/safety"
)

const (
	ToolExecuteQuery = "executeQuery"
	ToolExecuteWrite = "executeWrite"
	ToolConfirmWrite = "confirmWrite"
	ToolExecuteBatch = "executeBatch"
	ToolGetMetadata  = "getMetadata"
	ToolExecuteDDL   = "executeDDL"
)

var ErrUnknownTool = errors.New("unknown tool")

// Result is the flat key/value reply of a tool.
type Result map[string]any

// Runner executes statements. *executor.Executor implements it.
type Runner interface {
	Query(ctx context.Context, target types.Target, stmt executor.Statement) *executor.Outcome
	Update(ctx context.Context, target types.Target, stmt executor.Statement) *executor.Outcome
	Batch(ctx context.Context, target types.Target, statements []string, timeout time.Duration) *executor.Outcome
}

// Confirmer holds write previews. *confirm.Store implements it.
type Confirmer interface {
	Preview(target types.Target, sql string, params []any, op safety.Operation) *confirm.Preview
	ConfirmAndExecute(ctx context.Context, token string, timeout time.Duration) (*executor.Outcome, error)
	TTL() time.Duration
}

// MetadataReader reads catalog information. *metadata.Reader implements it.
type MetadataReader interface {
	ListTables(ctx context.Context, target types.Target) ([]string, error)
	DescribeTable(ctx context.Context, target types.Target, table string) (*metadata.Table, error)
}

// Descriptor names and describes one tool.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type tool struct {
	desc   Descriptor
	invoke func(ctx context.Context, ts *Toolset, raw json.RawMessage) (Result, error)
}

// bind decodes and validates arguments of type A before calling fn.
func bind[A any](name string, fn func(ts *Toolset, ctx context.Context, args *A) Result) func(context.Context, *Toolset, json.RawMessage) (Result, error) {
	return func(ctx context.Context, ts *Toolset, raw json.RawMessage) (Result, error) {
		args := new(A)
		if err := decode(ts.validate, name, raw, args); err != nil {
			return nil, err
		}
		return fn(ts, ctx, args), nil
	}
}

var tools = map[string]tool{
	ToolExecuteQuery: {
		desc:   Descriptor{ToolExecuteQuery, "Run a query and return its rows (limit defaults to 1000, timeout in seconds defaults to 30)"},
		invoke: bind(ToolExecuteQuery, (*Toolset).ExecuteQuery),
	},
	ToolExecuteWrite: {
		desc:   Descriptor{ToolExecuteWrite, "Preview an INSERT, UPDATE or DELETE and return a confirmation id"},
		invoke: bind(ToolExecuteWrite, (*Toolset).ExecuteWrite),
	},
	ToolConfirmWrite: {
		desc:   Descriptor{ToolConfirmWrite, "Execute a previewed write by its confirmation id"},
		invoke: bind(ToolConfirmWrite, (*Toolset).ConfirmWrite),
	},
	ToolExecuteBatch: {
		desc:   Descriptor{ToolExecuteBatch, "Run several statements in one transaction, rolling all back on failure"},
		invoke: bind(ToolExecuteBatch, (*Toolset).ExecuteBatch),
	},
	ToolGetMetadata: {
		desc:   Descriptor{ToolGetMetadata, "List tables, or describe one table when tableName is given"},
		invoke: bind(ToolGetMetadata, (*Toolset).GetMetadata),
	},
	ToolExecuteDDL: {
		desc:   Descriptor{ToolExecuteDDL, "Run a DDL statement; DROP TABLE, TRUNCATE and ALTER TABLE need confirmed=true"},
		invoke: bind(ToolExecuteDDL, (*Toolset).ExecuteDDL),
	},
}

// Toolset implements the six database tools.
type Toolset struct {
	runner    Runner
	confirmer Confirmer
	meta      MetadataReader
	validate  *validator.Validate
	logger    logger.Logger
}

// New creates a Toolset over its collaborators.
func New(runner Runner, confirmer Confirmer, meta MetadataReader, log logger.Logger) *Toolset {
	return &Toolset{
		runner:    runner,
		confirmer: confirmer,
		meta:      meta,
		validate:  newValidator(),
		logger:    log,
	}
}

// Describe lists the tools sorted by name.
func Describe() []Descriptor {
	out := make([]Descriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call decodes raw JSON arguments for the named tool and runs it. The error
// is ErrUnknownTool or an *ArgumentError; database and safety failures are
// reported inside the Result.
func (ts *Toolset) Call(ctx context.Context, name string, raw json.RawMessage) (Result, error) {
	t, ok := tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	res, err := t.invoke(ctx, ts, raw)
	if err != nil {
		ts.logger.Debug().Err(err).Str("tool", name).Msg("Rejected tool arguments")
		return nil, err
	}
	ts.logger.Debug().
		Str("tool", name).
		Bool("success", res["success"] == true).
		Dur("elapsed", time.Since(start)).
		Msg("Tool call completed")
	return res, nil
}

// ExecuteQuery runs a row-returning statement.
func (ts *Toolset) ExecuteQuery(ctx context.Context, args *QueryArgs) Result {
	target, err := args.Target()
	if err != nil {
		return invalidTarget(err)
	}
	out := ts.runner.Query(ctx, target, executor.Statement{
		Text:    args.SQL,
		Params:  normalizeParams(args.Params),
		Limit:   args.Limit,
		Timeout: seconds(args.Timeout),
	})
	return fromOutcome(out)
}

// ExecuteWrite checks a write and stores it as a preview awaiting confirmWrite.
func (ts *Toolset) ExecuteWrite(_ context.Context, args *WriteArgs) Result {
	if v := safety.Classify(args.SQL); v.Decision == safety.Blocked {
		return blocked(v)
	}
	target, err := args.Target()
	if err != nil {
		return invalidTarget(err)
	}

	p := ts.confirmer.Preview(target, args.SQL, normalizeParams(args.Params), safety.DetectOperation(args.SQL))
	return Result{
		"success":       true,
		"confirmId":     p.Token,
		"sql":           p.SQL,
		"operationType": string(p.Operation),
		"message":       "preview created, call confirmWrite with confirmId to execute it",
		"expireMinutes": int(ts.confirmer.TTL().Minutes()),
	}
}

// ConfirmWrite executes a previewed write once.
func (ts *Toolset) ConfirmWrite(ctx context.Context, args *ConfirmArgs) Result {
	out, err := ts.confirmer.ConfirmAndExecute(ctx, args.ConfirmID, seconds(args.Timeout))
	switch {
	case errors.Is(err, confirm.ErrNotFound):
		return failure(err.Error(), "no pending preview for this id, it may have expired or been used, run the preview again")
	case errors.Is(err, confirm.ErrExpired):
		return failure(err.Error(), fmt.Sprintf("preview is older than %d minutes, run the preview again", int(ts.confirmer.TTL().Minutes())))
	case err != nil:
		return failure(err.Error(), executor.Translate(err))
	}
	return fromOutcome(out)
}

// ExecuteBatch checks every statement, then runs them in one transaction.
// Statements that need confirmation are rejected; they belong to executeDDL.
func (ts *Toolset) ExecuteBatch(ctx context.Context, args *BatchArgs) Result {
	for _, stmt := range args.SQLList {
		switch v := safety.Classify(stmt); v.Decision {
		case safety.Blocked:
			res := blocked(v)
			res["failedSql"] = stmt
			return res
		case safety.NeedsConfirmation:
			res := needsConfirmation(v, "batches cannot carry statements that need confirmation, run it through executeDDL with confirmed=true")
			res["failedSql"] = stmt
			return res
		}
	}

	target, err := args.Target()
	if err != nil {
		return invalidTarget(err)
	}
	return fromOutcome(ts.runner.Batch(ctx, target, args.SQLList, seconds(args.Timeout)))
}

// GetMetadata lists tables, or describes one when TableName is set.
func (ts *Toolset) GetMetadata(ctx context.Context, args *MetadataArgs) Result {
	target, err := args.Target()
	if err != nil {
		return invalidTarget(err)
	}

	if args.TableName == "" {
		tables, err := ts.meta.ListTables(ctx, target)
		if err != nil {
			return metadataFailure(err)
		}
		return Result{"success": true, "tables": tables}
	}

	table, err := ts.meta.DescribeTable(ctx, target, args.TableName)
	if err != nil {
		return metadataFailure(err)
	}
	return Result{"success": true, "metadata": table}
}

// ExecuteDDL runs a DDL statement. Destructive statements run only with
// Confirmed set.
func (ts *Toolset) ExecuteDDL(ctx context.Context, args *DDLArgs) Result {
	switch v := safety.Classify(args.SQL); v.Decision {
	case safety.Blocked:
		return blocked(v)
	case safety.NeedsConfirmation:
		if !args.Confirmed {
			return needsConfirmation(v, "this operation needs confirmation, set confirmed to true and call again")
		}
		ts.logger.Info().
			Str("confirmation_type", string(v.Kind)).
			Msg("Running confirmed DDL statement")
	}

	target, err := args.Target()
	if err != nil {
		return invalidTarget(err)
	}
	return fromOutcome(ts.runner.Update(ctx, target, executor.Statement{
		Text:    args.SQL,
		Timeout: seconds(args.Timeout),
	}))
}
