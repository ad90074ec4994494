package executor

import (
	"context"
	"errors"
	"strings"
	"syscall"
)

// Human-readable failure categories.
const (
	MsgAccessDenied      = "database access denied, check the username and password"
	MsgUnknownDatabase   = "database does not exist, check the database name"
	MsgMissingTable      = "table does not exist, check the table name"
	MsgDuplicateEntry    = "duplicate data violates a unique constraint"
	MsgConnectionRefused = "cannot reach the database server, check the host and port"
	MsgTimeout           = "statement timed out, optimize the statement or raise the timeout"
	genericPrefix        = "database error: "
)

// Translate maps err to one human-readable category. Rules are checked in
// order and the first match wins, since one message can hold several keywords.
func Translate(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Access denied"):
		return MsgAccessDenied
	case strings.Contains(msg, "Unknown database"):
		return MsgUnknownDatabase
	case strings.Contains(msg, "Table") && strings.Contains(msg, "doesn't exist"):
		return MsgMissingTable
	case strings.Contains(msg, "Duplicate entry"):
		return MsgDuplicateEntry
	case errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(strings.ToLower(msg), "connection refused"):
		return MsgConnectionRefused
	case strings.Contains(msg, "timeout") || errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	default:
		return genericPrefix + msg
	}
}
