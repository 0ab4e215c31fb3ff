package detect

import (
	"github.com/jakekaplan/elaiphant/internal/plan"
)

type Severity int

const (
	Info     Severity = 0
	Warning  Severity = 1
	Critical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Category classifies a detected anti-pattern.
type Category int

const (
	CategoryOther Category = iota
	SeqScanOnLargeTable
	CardinalityMisestimate
	ExpensiveSort
	RepeatedSubplan
	LockWait
)

func (c Category) String() string {
	switch c {
	case SeqScanOnLargeTable:
		return "seq_scan_on_large_table"
	case CardinalityMisestimate:
		return "cardinality_misestimate"
	case ExpensiveSort:
		return "expensive_sort"
	case RepeatedSubplan:
		return "repeated_subplan"
	case LockWait:
		return "lock_wait"
	default:
		return "other"
	}
}

// IndexHint is a remediation hint attached to a finding: an index on these
// columns could plausibly remove the bottleneck. It is a hint, not a full
// recommendation; candidates built from it still go through validation.
type IndexHint struct {
	Table   string
	Columns []string
}

// Finding is one detected anti-pattern. It references the offending node by
// path so findings stay meaningful after serialization.
type Finding struct {
	Severity    Severity
	Category    Category
	Node        plan.Path
	NodeType    string
	Relation    string
	Cost        float64 // estimated total cost of the offending node
	Description string
	Hint        *IndexHint

	// pre-order position, used as the final ordering tie-break
	order int
}

// Thresholds tune the detection rules. Zero values are replaced by defaults.
type Thresholds struct {
	// LargeScanRows is the row count above which a sequential scan with an
	// indexable predicate is flagged; CriticalScanRows escalates to Critical.
	LargeScanRows    int64
	CriticalScanRows int64

	// CardinalityFactor is the estimate-vs-actual error ratio that flags a
	// misestimate.
	CardinalityFactor float64

	// SortTimeFraction flags a sort whose actual time exceeds this fraction
	// of total query time.
	SortTimeFraction float64

	// IOWaitFraction flags a node whose I/O wait time exceeds this fraction
	// of total query time.
	IOWaitFraction float64

	// SubplanLoops flags a subplan executed at least this many times.
	SubplanLoops int64
}

// DefaultThresholds returns the stock rule tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LargeScanRows:     100_000,
		CriticalScanRows:  1_000_000,
		CardinalityFactor: 10.0,
		SortTimeFraction:  0.3,
		IOWaitFraction:    0.25,
		SubplanLoops:      100,
	}
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.LargeScanRows <= 0 {
		t.LargeScanRows = d.LargeScanRows
	}
	if t.CriticalScanRows <= 0 {
		t.CriticalScanRows = d.CriticalScanRows
	}
	if t.CardinalityFactor <= 0 {
		t.CardinalityFactor = d.CardinalityFactor
	}
	if t.SortTimeFraction <= 0 {
		t.SortTimeFraction = d.SortTimeFraction
	}
	if t.IOWaitFraction <= 0 {
		t.IOWaitFraction = d.IOWaitFraction
	}
	if t.SubplanLoops <= 0 {
		t.SubplanLoops = d.SubplanLoops
	}
	return t
}
