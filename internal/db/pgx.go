package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PgxConn adapts a pgx connection to the Conn interface.
type PgxConn struct {
	conn *pgx.Conn
}

// Connect opens a single pgx connection to the target database.
func Connect(ctx context.Context, connStr string) (*PgxConn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, &ExecutionError{Err: fmt.Errorf("connecting to database: %w", err)}
	}
	return &PgxConn{conn: conn}, nil
}

// Factory returns a ConnFactory that opens a fresh connection per call.
func Factory(connStr string) ConnFactory {
	return func(ctx context.Context) (Conn, error) {
		return Connect(ctx, connStr)
	}
}

func (c *PgxConn) WithRollback(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return &ExecutionError{Err: fmt.Errorf("beginning transaction: %w", err)}
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	return fn(ctx, pgxExecutor{tx: tx})
}

func (c *PgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

type pgxExecutor struct {
	tx pgx.Tx
}

func (e pgxExecutor) Exec(ctx context.Context, sql string) error {
	if _, err := e.tx.Exec(ctx, sql); err != nil {
		return classify(ctx, "exec", err)
	}
	return nil
}

func (e pgxExecutor) QueryValue(ctx context.Context, sql string) (string, error) {
	var value string
	if err := e.tx.QueryRow(ctx, sql).Scan(&value); err != nil {
		return "", classify(ctx, "query", err)
	}
	return value, nil
}

// classify wraps a statement failure. Only an expired deadline becomes a
// TimeoutError; a user cancellation is not a timeout and must not trigger
// the plan-only fallback.
func classify(ctx context.Context, step string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Step: step, Err: err}
	}
	return &ExecutionError{Err: err}
}
