package validate

import (
	"fmt"
	"strings"

	"github.com/jakekaplan/elaiphant/internal/plan"
)

// ChangeKind is the kind of schema or configuration change being proposed.
type ChangeKind int

const (
	ChangeIndex ChangeKind = iota
	ChangeRewriteHint
	ChangeConfigParam
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeIndex:
		return "index"
	case ChangeRewriteHint:
		return "rewrite"
	case ChangeConfigParam:
		return "config"
	default:
		return "unknown"
	}
}

// Source records where a candidate came from. Advisory candidates are
// untrusted and carry no more weight than heuristic ones; both must pass
// validation before surfacing.
type Source int

const (
	SourceHeuristic Source = iota
	SourceAdvisory
)

func (s Source) String() string {
	if s == SourceAdvisory {
		return "advisory"
	}
	return "heuristic"
}

// IndexDef is a structured index definition.
type IndexDef struct {
	Table   string
	Columns []string
	Method  string // btree when empty
	Unique  bool
}

// SQL renders the CREATE INDEX statement for the definition.
func (d IndexDef) SQL() string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if d.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ON ")
	b.WriteString(quoteIdent(d.Table))
	if d.Method != "" && !strings.EqualFold(d.Method, "btree") {
		b.WriteString(" USING " + d.Method)
	}
	b.WriteString(" (")
	for i, col := range d.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
	}
	b.WriteString(")")
	return b.String()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ConfigDef is a configuration parameter change, applied with SET LOCAL
// during simulation so it never outlives the transaction.
type ConfigDef struct {
	Name  string
	Value string
}

// CandidateChange is a proposed modification to test against the planner.
type CandidateChange struct {
	Kind   ChangeKind
	Source Source

	Index  *IndexDef  // set when Kind == ChangeIndex
	Config *ConfigDef // set when Kind == ChangeConfigParam
	Sql    string     // rewritten query text when Kind == ChangeRewriteHint

	// Rationale is free text from the proposer. Advisory rationale is
	// untrusted and only displayed, never acted on.
	Rationale string
}

// Label returns a stable human-readable identity for the change, also used
// to deduplicate candidates proposed by multiple sources.
func (c CandidateChange) Label() string {
	switch c.Kind {
	case ChangeIndex:
		if c.Index != nil {
			return fmt.Sprintf("index on %s(%s)", c.Index.Table, strings.Join(c.Index.Columns, ", "))
		}
	case ChangeConfigParam:
		if c.Config != nil {
			return fmt.Sprintf("set %s = %s", c.Config.Name, c.Config.Value)
		}
	case ChangeRewriteHint:
		return "rewrite: " + c.Sql
	}
	return "invalid change"
}

// Verdict is the outcome of validating a candidate against the planner.
type Verdict int

const (
	Inconclusive Verdict = iota
	Improved
	NoChange
	Regressed
)

func (v Verdict) String() string {
	switch v {
	case Improved:
		return "improved"
	case NoChange:
		return "no_change"
	case Regressed:
		return "regressed"
	default:
		return "inconclusive"
	}
}

// ValidationResult is the measured outcome of testing one candidate.
type ValidationResult struct {
	Baseline  *plan.Tree
	Candidate *plan.Tree // nil when simulation was not possible

	// Estimated-cost delta, always available when Candidate is set.
	EstCostDelta float64 // candidate - baseline
	EstCostPct   float64

	// Actual-runtime delta, only meaningful when both plans ran with ANALYZE.
	ActualDelta float64
	ActualPct   float64
	HasActual   bool

	Verdict Verdict

	// Changes summarizes node-level differences between the two plans.
	Changes []NodeChange

	// Err records why validation could not complete. A per-candidate error
	// never aborts the validation of other candidates.
	Err error
}

// Recommendation pairs a candidate with its validation outcome.
type Recommendation struct {
	Change CandidateChange
	Result ValidationResult
}
