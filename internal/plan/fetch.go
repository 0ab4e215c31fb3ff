package plan

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jakekaplan/elaiphant/internal/db"
)

const (
	explainAnalyze = "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) "
	explainPlain   = "EXPLAIN (FORMAT JSON) "
)

// Fetcher captures query plans from a live connection. The analyzed query
// runs inside a transaction that is always rolled back, so it never commits
// side effects on the target database.
type Fetcher struct {
	// AnalyzeTimeout bounds the EXPLAIN ANALYZE round-trip. On expiry the
	// fetcher falls back to a plain EXPLAIN so estimates are still available.
	// Zero means no separate bound beyond the caller's context.
	AnalyzeTimeout time.Duration

	Log logrus.FieldLogger
}

// Fetch runs EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) for the query and
// returns the parsed tree. If the ANALYZE run exceeds AnalyzeTimeout, it
// retries with a plain EXPLAIN under the caller's remaining deadline.
func (f *Fetcher) Fetch(ctx context.Context, conn db.Conn, query string) (*Tree, error) {
	analyzeCtx := ctx
	cancel := context.CancelFunc(func() {})
	if f.AnalyzeTimeout > 0 {
		analyzeCtx, cancel = context.WithTimeout(ctx, f.AnalyzeTimeout)
	}

	tree, err := explain(analyzeCtx, conn, query, true)
	cancel()
	if err == nil {
		tree.CapturedAt = time.Now()
		return tree, nil
	}

	if !db.IsTimeout(err) || ctx.Err() != nil {
		return nil, err
	}

	if f.Log != nil {
		f.Log.WithField("query", query).Warn("EXPLAIN ANALYZE timed out, falling back to plan-only EXPLAIN")
	}

	tree, err = explain(ctx, conn, query, false)
	if err != nil {
		return nil, err
	}
	tree.CapturedAt = time.Now()
	return tree, nil
}

// FetchPlain captures estimates only, without executing the query.
func (f *Fetcher) FetchPlain(ctx context.Context, conn db.Conn, query string) (*Tree, error) {
	tree, err := explain(ctx, conn, query, false)
	if err != nil {
		return nil, err
	}
	tree.CapturedAt = time.Now()
	return tree, nil
}

func explain(ctx context.Context, conn db.Conn, query string, analyze bool) (*Tree, error) {
	var tree *Tree
	err := conn.WithRollback(ctx, func(ctx context.Context, tx db.Executor) error {
		var err error
		tree, err = ExplainWithin(ctx, tx, query, analyze)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// ExplainWithin runs EXPLAIN inside an already-open transaction scope. The
// validator uses this to re-plan a query after staging a hypothetical change
// in the same transaction.
func ExplainWithin(ctx context.Context, tx db.Executor, query string, analyze bool) (*Tree, error) {
	prefix := explainPlain
	if analyze {
		prefix = explainAnalyze
	}

	payload, err := tx.QueryValue(ctx, prefix+query)
	if err != nil {
		return nil, err
	}

	return Parse([]byte(payload), query)
}
