// Package audit records every statement attempt. Recording is fire-and-forget:
// a sink that fails logs the problem and never fails the database operation.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sqlgate/sqlgate/database/types"
	"github.com/sqlgate/sqlgate/logger"
)

// Entry is one statement attempt.
type Entry struct {
	Time      time.Time
	Target    types.Target
	Statement string
	Success   bool
	Elapsed   time.Duration
	Message   string
}

// Record is the wire form of an Entry. It never carries the password.
type Record struct {
	Time      time.Time `json:"time"`
	DBType    string    `json:"dbType"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	Username  string    `json:"username"`
	Statement string    `json:"sql"`
	Success   bool      `json:"success"`
	ElapsedMS int64     `json:"executionTime"`
	Message   string    `json:"message,omitempty"`
}

// ToRecord flattens e, collapsing line breaks in the statement.
func (e Entry) ToRecord() Record {
	return Record{
		Time:      e.Time.UTC(),
		DBType:    string(e.Target.Kind),
		Host:      e.Target.Host,
		Port:      e.Target.Port,
		Database:  e.Target.Database,
		Username:  e.Target.Username,
		Statement: flatten(e.Statement),
		Success:   e.Success,
		ElapsedMS: e.Elapsed.Milliseconds(),
		Message:   e.Message,
	}
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Recorder receives entries. Implementations must not block for long.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

// Multi fans an entry out to every recorder.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Entry) {
	for _, r := range m {
		r.Record(ctx, e)
	}
}

// Close closes every member that has a Close method.
func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if c, ok := r.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// LogRecorder writes entries to the service log.
type LogRecorder struct {
	logger logger.Logger
}

func NewLogRecorder(log logger.Logger) *LogRecorder {
	return &LogRecorder{logger: log}
}

func (r *LogRecorder) Record(_ context.Context, e Entry) {
	ev := r.logger.Info()
	if !e.Success {
		ev = r.logger.Warn()
	}
	ev.Str("pool", e.Target.String()).
		Str("sql", flatten(e.Statement)).
		Bool("success", e.Success).
		Int64("elapsed_ms", e.Elapsed.Milliseconds()).
		Str("result", e.Message).
		Msg("SQL audit")
}
