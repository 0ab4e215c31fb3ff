// Package db defines the database collaborator boundary: a connection that
// can run statements inside a transaction which is always rolled back.
// Analysis queries must never commit side effects on the target database.
package db

import (
	"context"
	"errors"
	"fmt"
)

// Executor runs statements inside an open transaction scope.
type Executor interface {
	// Exec runs a statement and discards any result rows.
	Exec(ctx context.Context, sql string) error
	// QueryValue runs a query expected to return a single row with a single
	// text column and returns that value.
	QueryValue(ctx context.Context, sql string) (string, error)
}

// Conn is one connection scope against the target database.
type Conn interface {
	// WithRollback runs fn inside a transaction that is rolled back when fn
	// returns, regardless of outcome.
	WithRollback(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error
	Close(ctx context.Context) error
}

// ConnFactory opens a fresh connection scope. Each concurrent validation
// acquires its own scope; scopes are never shared.
type ConnFactory func(ctx context.Context) (Conn, error)

// ExecutionError reports a statement that could not run: syntax error,
// permission denied, connection failure.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError reports a deadline exceeded on a specific step.
type TimeoutError struct {
	Step string
	Err  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deadline exceeded during %s: %v", e.Step, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a TimeoutError or a context deadline.
func IsTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
