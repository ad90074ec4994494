package executor

import (
	"fmt"
)

// ExecutionError is a statement the database rejected or failed at runtime.
// Its message is the driver's message unchanged.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// RollbackError reports a batch whose rollback failed after a statement error.
// The database state is indeterminate.
type RollbackError struct {
	Cause    error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed, data state indeterminate: %v (batch error: %v)", e.Rollback, e.Cause)
}

func (e *RollbackError) Unwrap() []error {
	return []error{e.Cause, e.Rollback}
}
