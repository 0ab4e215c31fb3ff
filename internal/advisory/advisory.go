// Package advisory is the boundary to the external advisory service. The
// engine hands it a bounded problem statement and gets back zero or more
// candidate changes. Advisory output is untrusted input: it is parsed
// defensively here and validated against the real planner elsewhere.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jakekaplan/elaiphant/internal/detect"
	"github.com/jakekaplan/elaiphant/internal/plan"
	"github.com/jakekaplan/elaiphant/internal/validate"
)

// Advisor proposes candidate changes for a problem statement. A failed or
// unusable response is non-fatal to the caller, which treats it as zero
// candidates.
type Advisor interface {
	Propose(ctx context.Context, stmt ProblemStatement) ([]validate.CandidateChange, error)
}

// AdvisoryError reports that the advisory call failed or returned data that
// could not be used.
type AdvisoryError struct {
	Err error
}

func (e *AdvisoryError) Error() string {
	return fmt.Sprintf("advisory call failed: %v", e.Err)
}

func (e *AdvisoryError) Unwrap() error { return e.Err }

// FindingSummary is a finding serialized for the advisory service. The node
// reference is a tree path, so it stays resolvable after a round trip.
type FindingSummary struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Node     string `json:"node"`
	Relation string `json:"relation,omitempty"`
	Detail   string `json:"detail"`
}

// ProblemStatement is the bounded description handed to the advisory
// service: query text, a per-node plan digest, and the findings summary.
type ProblemStatement struct {
	Query           string           `json:"query"`
	TotalCost       float64          `json:"total_cost"`
	ExecutionTimeMs float64          `json:"execution_time_ms,omitempty"`
	PlanDigest      []string         `json:"plan_digest"`
	Findings        []FindingSummary `json:"findings"`
	Truncated       bool             `json:"truncated,omitempty"`
}

// DefaultStatementBudget caps the serialized problem statement size.
const DefaultStatementBudget = 8 * 1024

// BuildStatement serializes the tree and findings into a problem statement
// no larger than budget bytes. Findings arrive most severe first; when over
// budget the lowest-severity findings are dropped first, then digest lines.
func BuildStatement(tree *plan.Tree, findings []detect.Finding, budget int) ProblemStatement {
	if budget <= 0 {
		budget = DefaultStatementBudget
	}

	stmt := ProblemStatement{
		Query:           tree.Query,
		TotalCost:       tree.TotalCost(),
		ExecutionTimeMs: tree.ExecutionTime,
		PlanDigest:      digest(tree),
	}
	for _, f := range findings {
		stmt.Findings = append(stmt.Findings, FindingSummary{
			Severity: f.Severity.String(),
			Category: f.Category.String(),
			Node:     string(f.Node),
			Relation: f.Relation,
			Detail:   f.Description,
		})
	}

	for size(stmt) > budget {
		switch {
		case len(stmt.Findings) > 1:
			stmt.Findings = stmt.Findings[:len(stmt.Findings)-1]
		case len(stmt.PlanDigest) > 1:
			stmt.PlanDigest = stmt.PlanDigest[:len(stmt.PlanDigest)-1]
		default:
			return stmt
		}
		stmt.Truncated = true
	}
	return stmt
}

func size(stmt ProblemStatement) int {
	data, err := json.Marshal(stmt)
	if err != nil {
		return 0
	}
	return len(data)
}

func digest(tree *plan.Tree) []string {
	var lines []string
	tree.Walk(func(n, parent *plan.Node, path plan.Path) {
		line := fmt.Sprintf("[%s] %s cost=%.2f rows=%d", path, n.Label(), n.TotalCost, n.PlanRows)
		if n.Actuals != nil {
			line += fmt.Sprintf(" actual_rows=%d actual_ms=%.2f", n.Actuals.Rows, n.Actuals.TotalTime)
		}
		if n.Filter != "" {
			line += " filter=" + n.Filter
		}
		lines = append(lines, line)
	})
	return lines
}

// wireSuggestion is the structured response shape expected from the
// advisory service. Unknown fields and unknown types are ignored.
type wireSuggestion struct {
	Type      string   `json:"type"`
	Table     string   `json:"table,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Method    string   `json:"method,omitempty"`
	Name      string   `json:"name,omitempty"`
	Value     string   `json:"value,omitempty"`
	Sql       string   `json:"sql,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

type wireResponse struct {
	Suggestions []wireSuggestion `json:"suggestions"`
}

// DecodeCandidates parses an advisory response into candidate changes.
// Suggestions that are malformed or of unknown type are skipped rather than
// failing the batch; only unparseable JSON is an error.
func DecodeCandidates(data []byte) ([]validate.CandidateChange, error) {
	var resp wireResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &AdvisoryError{Err: fmt.Errorf("invalid response JSON: %w", err)}
	}

	var out []validate.CandidateChange
	for _, s := range resp.Suggestions {
		switch s.Type {
		case "index":
			if s.Table == "" || len(s.Columns) == 0 {
				continue
			}
			out = append(out, validate.CandidateChange{
				Kind:      validate.ChangeIndex,
				Source:    validate.SourceAdvisory,
				Index:     &validate.IndexDef{Table: s.Table, Columns: s.Columns, Method: s.Method},
				Rationale: s.Rationale,
			})
		case "config":
			if s.Name == "" {
				continue
			}
			out = append(out, validate.CandidateChange{
				Kind:      validate.ChangeConfigParam,
				Source:    validate.SourceAdvisory,
				Config:    &validate.ConfigDef{Name: s.Name, Value: s.Value},
				Rationale: s.Rationale,
			})
		case "rewrite":
			if s.Sql == "" {
				continue
			}
			out = append(out, validate.CandidateChange{
				Kind:      validate.ChangeRewriteHint,
				Source:    validate.SourceAdvisory,
				Sql:       s.Sql,
				Rationale: s.Rationale,
			})
		}
	}
	return out, nil
}
