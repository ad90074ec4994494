// Package executor runs statements against connections leased from the
// provider and shapes every result, success or failure, into an Outcome.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sqlgate/sqlgate/audit"
	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/internal/tracking"
	"github.com/sqlgate/sqlgate/logger"
)

const (
	DefaultLimit   = 1000
	DefaultTimeout = 30 * time.Second
)

// Acquirer leases connections. *database.Provider implements it.
type Acquirer interface {
	Acquire(ctx context.Context, target types.Target) (*sql.Conn, error)
}

// Statement is one statement with positional parameters. Zero Limit or
// Timeout selects the executor default.
type Statement struct {
	Text    string
	Params  []any
	Limit   int
	Timeout time.Duration
}

// Outcome is the structured result of an operation. Rows is non-nil for a
// successful query; Affected is non-nil for a successful update or batch.
type Outcome struct {
	Success         bool
	Rows            []Row
	Affected        *int64
	Elapsed         time.Duration
	Message         string
	FriendlyMessage string
	// Err holds the typed failure for in-process callers.
	Err error
}

// Options holds defaults applied when a statement omits them.
type Options struct {
	DefaultLimit   int
	DefaultTimeout time.Duration
}

// Executor runs statements. It is safe for concurrent use.
type Executor struct {
	provider Acquirer
	recorder audit.Recorder
	tracking *tracking.Instruments
	logger   logger.Logger
	opts     Options
}

// New creates an Executor. Nil recorder or instruments disable auditing or telemetry.
func New(provider Acquirer, recorder audit.Recorder, in *tracking.Instruments, log logger.Logger, opts Options) *Executor {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if in == nil {
		in = tracking.Nop()
	}
	return &Executor{provider: provider, recorder: recorder, tracking: in, logger: log, opts: opts}
}

func (e *Executor) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return e.opts.DefaultTimeout
	}
	return d
}

// Query runs a row-returning statement and materializes at most the limit.
// Rows past the limit are never fetched.
func (e *Executor) Query(ctx context.Context, target types.Target, stmt Statement) *Outcome {
	start := time.Now()
	limit := stmt.Limit
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}

	ctx, op := e.tracking.Start(ctx, string(target.Kind), "query")
	rows, err := e.query(ctx, target, stmt, limit)
	op.End(ctx, 0, err)

	var out *Outcome
	if err != nil {
		out = e.failure(target, "query", err, time.Since(start))
	} else {
		out = &Outcome{
			Success:         true,
			Rows:            rows,
			Elapsed:         time.Since(start),
			Message:         "query succeeded",
			FriendlyMessage: fmt.Sprintf("fetched %d rows", len(rows)),
		}
	}
	e.audit(ctx, target, stmt.Text, out)
	return out
}

func (e *Executor) query(ctx context.Context, target types.Target, stmt Statement, limit int) (_ []Row, err error) {
	conn, err := e.provider.Acquire(ctx, target)
	if err != nil {
		return nil, err
	}
	defer closeConn(conn, &err)

	ctx, cancel := context.WithTimeout(ctx, e.timeout(stmt.Timeout))
	defer cancel()

	rs, err := conn.QueryContext(ctx, stmt.Text, stmt.Params...)
	if err != nil {
		return nil, &ExecutionError{Op: "query", Err: err}
	}
	defer rs.Close()

	labels, err := rs.Columns()
	if err != nil {
		return nil, &ExecutionError{Op: "query", Err: err}
	}

	out := make([]Row, 0, min(limit, 64))
	for len(out) < limit && rs.Next() {
		values := make([]any, len(labels))
		ptrs := make([]any, len(labels))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{Op: "query", Err: err}
		}
		out = append(out, newRow(labels, values))
	}
	if err := rs.Err(); err != nil {
		return nil, &ExecutionError{Op: "query", Err: err}
	}
	return out, nil
}

// Update runs a statement and reports the affected row count.
func (e *Executor) Update(ctx context.Context, target types.Target, stmt Statement) *Outcome {
	start := time.Now()

	ctx, op := e.tracking.Start(ctx, string(target.Kind), "update")
	affected, err := e.update(ctx, target, stmt)
	op.End(ctx, affected, err)

	var out *Outcome
	if err != nil {
		out = e.failure(target, "update", err, time.Since(start))
	} else {
		out = &Outcome{
			Success:         true,
			Affected:        &affected,
			Elapsed:         time.Since(start),
			Message:         "execution succeeded",
			FriendlyMessage: fmt.Sprintf("%d rows affected", affected),
		}
	}
	e.audit(ctx, target, stmt.Text, out)
	return out
}

func (e *Executor) update(ctx context.Context, target types.Target, stmt Statement) (_ int64, err error) {
	conn, err := e.provider.Acquire(ctx, target)
	if err != nil {
		return 0, err
	}
	defer closeConn(conn, &err)

	ctx, cancel := context.WithTimeout(ctx, e.timeout(stmt.Timeout))
	defer cancel()

	res, err := conn.ExecContext(ctx, stmt.Text, stmt.Params...)
	if err != nil {
		return 0, &ExecutionError{Op: "update", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &ExecutionError{Op: "update", Err: err}
	}
	return affected, nil
}

// Batch runs statements in order inside one transaction on one connection.
// Any failure rolls the whole batch back. Each statement gets its own timeout.
func (e *Executor) Batch(ctx context.Context, target types.Target, statements []string, timeout time.Duration) *Outcome {
	start := time.Now()

	ctx, op := e.tracking.Start(ctx, string(target.Kind), "batch")
	total, err := e.batch(ctx, target, statements, e.timeout(timeout))
	op.End(ctx, total, err)

	var out *Outcome
	if err != nil {
		out = e.failure(target, "batch", err, time.Since(start))
	} else {
		out = &Outcome{
			Success:         true,
			Affected:        &total,
			Elapsed:         time.Since(start),
			Message:         "batch succeeded",
			FriendlyMessage: fmt.Sprintf("executed %d statements, %d rows affected", len(statements), total),
		}
	}
	e.audit(ctx, target, strings.Join(statements, "; "), out)
	return out
}

func (e *Executor) batch(ctx context.Context, target types.Target, statements []string, timeout time.Duration) (_ int64, err error) {
	conn, err := e.provider.Acquire(ctx, target)
	if err != nil {
		return 0, err
	}
	defer closeConn(conn, &err)

	// The transaction context bounds commit and rollback as well as the
	// statements; database/sql rolls back by itself once it expires.
	txCtx, cancel := context.WithTimeout(ctx, batchBudget(timeout, len(statements)))
	defer cancel()

	tx, err := conn.BeginTx(txCtx, nil)
	if err != nil {
		return 0, &ExecutionError{Op: "begin", Err: err}
	}

	var total int64
	for i, text := range statements {
		n, execErr := execWithTimeout(txCtx, tx, text, timeout)
		if execErr != nil {
			cause := &ExecutionError{Op: fmt.Sprintf("batch statement %d", i+1), Err: execErr}
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				e.logger.Error().
					Err(rbErr).
					Str("pool", target.String()).
					Str("cause", execErr.Error()).
					Msg("Batch rollback failed, data state indeterminate")
				return 0, &RollbackError{Cause: cause, Rollback: rbErr}
			}
			return 0, cause
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, &ExecutionError{Op: "commit", Err: err}
	}
	return total, nil
}

// batchBudget gives every statement its timeout plus one more slot shared by
// begin and commit or rollback.
func batchBudget(timeout time.Duration, statements int) time.Duration {
	return timeout * time.Duration(statements+1)
}

func execWithTimeout(ctx context.Context, tx *sql.Tx, text string, timeout time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := tx.ExecContext(ctx, text)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// closeConn returns conn to its pool and reports a close failure only when
// nothing else failed.
func closeConn(conn *sql.Conn, err *error) {
	if cerr := conn.Close(); cerr != nil && *err == nil && !errors.Is(cerr, sql.ErrConnDone) {
		*err = &ExecutionError{Op: "release", Err: cerr}
	}
}

func (e *Executor) failure(target types.Target, op string, err error, elapsed time.Duration) *Outcome {
	e.logger.Warn().
		Err(err).
		Str("pool", target.String()).
		Str("op", op).
		Dur("elapsed", elapsed).
		Msg("Statement failed")

	return &Outcome{
		Success:         false,
		Elapsed:         elapsed,
		Message:         err.Error(),
		FriendlyMessage: Translate(err),
		Err:             err,
	}
}

func (e *Executor) audit(ctx context.Context, target types.Target, statement string, out *Outcome) {
	msg := ""
	if !out.Success {
		msg = out.Message
	}
	e.recorder.Record(context.WithoutCancel(ctx), audit.Entry{
		Time:      time.Now(),
		Target:    target,
		Statement: statement,
		Success:   out.Success,
		Elapsed:   out.Elapsed,
		Message:   msg,
	})
}
