package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jakekaplan/elaiphant/internal/db"
	"github.com/jakekaplan/elaiphant/internal/plan"
)

// TxSimulator stages a change inside a transaction that is rolled back:
// CREATE INDEX for index candidates, SET LOCAL for config candidates. The
// index is physically built on the transaction's snapshot, which can be slow
// on large tables but needs no extension. Rewrite hints are not simulated,
// since the engine cannot prove the rewritten query is equivalent.
type TxSimulator struct {
	Connect db.ConnFactory

	// Analyze also executes the query under the simulated change so actual
	// runtimes can be compared, not just estimates.
	Analyze bool
}

func (s *TxSimulator) Simulate(ctx context.Context, change CandidateChange, query string) (*plan.Tree, error) {
	setup, err := stagingSQL(change)
	if err != nil {
		return nil, err
	}
	return explainStaged(ctx, s.Connect, setup, query, s.Analyze)
}

// HypoPGSimulator uses the hypopg extension to register a hypothetical
// index: the planner sees it, but nothing is built. Only index candidates
// are supported, and the plan is estimate-only because a hypothetical index
// cannot serve real reads.
type HypoPGSimulator struct {
	Connect db.ConnFactory
}

func (s *HypoPGSimulator) Simulate(ctx context.Context, change CandidateChange, query string) (*plan.Tree, error) {
	if change.Kind != ChangeIndex || change.Index == nil {
		return nil, fmt.Errorf("hypopg cannot stage %s: %w", change.Kind, ErrSimulationUnsupported)
	}
	setup := []string{
		fmt.Sprintf("SELECT hypopg_create_index(%s)", quoteLiteral(change.Index.SQL())),
	}
	return explainStaged(ctx, s.Connect, setup, query, false)
}

func explainStaged(ctx context.Context, connect db.ConnFactory, setup []string, query string, analyze bool) (*plan.Tree, error) {
	conn, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	var tree *plan.Tree
	err = conn.WithRollback(ctx, func(ctx context.Context, tx db.Executor) error {
		for _, stmt := range setup {
			if err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("staging change: %w", err)
			}
		}
		var err error
		tree, err = plan.ExplainWithin(ctx, tx, query, analyze)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

var configNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

func stagingSQL(change CandidateChange) ([]string, error) {
	switch change.Kind {
	case ChangeIndex:
		if change.Index == nil || change.Index.Table == "" || len(change.Index.Columns) == 0 {
			return nil, fmt.Errorf("index candidate missing definition: %w", ErrSimulationUnsupported)
		}
		return []string{change.Index.SQL()}, nil

	case ChangeConfigParam:
		if change.Config == nil || !configNameRe.MatchString(change.Config.Name) {
			return nil, fmt.Errorf("config candidate missing or invalid parameter name: %w", ErrSimulationUnsupported)
		}
		return []string{
			fmt.Sprintf("SET LOCAL %s = %s", change.Config.Name, quoteLiteral(change.Config.Value)),
		}, nil

	default:
		return nil, fmt.Errorf("cannot stage %s: %w", change.Kind, ErrSimulationUnsupported)
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
