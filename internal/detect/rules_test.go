package detect

import (
	"testing"

	"github.com/jakekaplan/elaiphant/internal/plan"
)

func analyzedTree(root *plan.Node, execMs float64) *plan.Tree {
	return &plan.Tree{Root: root, ExecutionTime: execMs, Analyzed: true}
}

func findByCategory(findings []Finding, c Category) *Finding {
	for i := range findings {
		if findings[i].Category == c {
			return &findings[i]
		}
	}
	return nil
}

func TestSeqScanOnLargeTable_SingleColumnFilter(t *testing.T) {
	// A million-row scan with a single-column equality filter must be
	// flagged at Warning or above, with an index hint.
	root := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "orders",
		PlanRows: 1_000_000, TotalCost: 25000,
		Filter: "(status = 'pending'::text)",
	}

	findings := Run(analyzedTree(root, 0), Thresholds{})
	f := findByCategory(findings, SeqScanOnLargeTable)
	if f == nil {
		t.Fatal("expected a SeqScanOnLargeTable finding")
	}
	if f.Severity < Warning {
		t.Errorf("Severity = %v, want at least Warning", f.Severity)
	}
	if f.Hint == nil {
		t.Fatal("expected an index hint")
	}
	if f.Hint.Table != "orders" {
		t.Errorf("Hint.Table = %q, want orders", f.Hint.Table)
	}
	if len(f.Hint.Columns) != 1 || f.Hint.Columns[0] != "status" {
		t.Errorf("Hint.Columns = %v, want [status]", f.Hint.Columns)
	}
	if f.Node != "" {
		t.Errorf("Node path = %q, want root path", f.Node)
	}
}

func TestSeqScanOnLargeTable_BelowThreshold(t *testing.T) {
	root := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "orders",
		PlanRows: 500, TotalCost: 20,
		Filter: "(status = 'pending'::text)",
	}

	findings := Run(analyzedTree(root, 0), Thresholds{})
	if f := findByCategory(findings, SeqScanOnLargeTable); f != nil {
		t.Errorf("unexpected finding for a small scan: %+v", f)
	}
}

func TestSeqScanOnLargeTable_NoIndexablePredicate(t *testing.T) {
	// Multi-column filter: no single-column index hint, no finding.
	root := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "orders",
		PlanRows: 2_000_000, TotalCost: 25000,
		Filter: "((a.x + a.y) > 10)",
	}

	findings := Run(analyzedTree(root, 0), Thresholds{})
	if f := findByCategory(findings, SeqScanOnLargeTable); f != nil {
		t.Errorf("unexpected finding without an indexable predicate: %+v", f)
	}
}

func TestSeqScanOnLargeTable_JoinChild(t *testing.T) {
	scan := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "orders", Alias: "o",
		PlanRows: 1_500_000, TotalCost: 30000,
	}
	root := &plan.Node{
		Kind: plan.HashJoin, TypeName: "Hash Join",
		HashCond: "(o.customer_id = c.id)", TotalCost: 40000,
		Children: []*plan.Node{
			scan,
			{Kind: plan.Hash, TypeName: "Hash", TotalCost: 100},
		},
	}

	findings := Run(analyzedTree(root, 0), Thresholds{})
	f := findByCategory(findings, SeqScanOnLargeTable)
	if f == nil {
		t.Fatal("expected a finding for a large scan under a join")
	}
	if f.Severity != Critical {
		t.Errorf("Severity = %v, want Critical at %d rows", f.Severity, scan.PlanRows)
	}
	if f.Hint == nil || len(f.Hint.Columns) != 1 || f.Hint.Columns[0] != "customer_id" {
		t.Errorf("Hint = %+v, want customer_id", f.Hint)
	}
	if f.Node != "0" {
		t.Errorf("Node path = %q, want 0", f.Node)
	}
}

func TestCardinalityMisestimate(t *testing.T) {
	root := &plan.Node{
		Kind: plan.IndexScan, TypeName: "Index Scan", Relation: "events",
		PlanRows: 5000, TotalCost: 50,
		Actuals: &plan.Actuals{Rows: 10, TotalTime: 1.0, Loops: 1},
	}

	findings := Run(analyzedTree(root, 10), Thresholds{})
	f := findByCategory(findings, CardinalityMisestimate)
	if f == nil {
		t.Fatal("expected a CardinalityMisestimate finding for a 499x overestimate")
	}
	if f.Severity != Critical {
		t.Errorf("Severity = %v, want Critical above ten times the factor", f.Severity)
	}
}

func TestCardinalityMisestimate_RequiresActuals(t *testing.T) {
	root := &plan.Node{
		Kind: plan.IndexScan, TypeName: "Index Scan",
		PlanRows: 10, TotalCost: 50,
	}

	findings := Run(&plan.Tree{Root: root}, Thresholds{})
	if f := findByCategory(findings, CardinalityMisestimate); f != nil {
		t.Errorf("misestimate flagged without actual rows: %+v", f)
	}
}

func TestCardinalityMisestimate_WithinTolerance(t *testing.T) {
	root := &plan.Node{
		Kind: plan.IndexScan, TypeName: "Index Scan",
		PlanRows: 4000, TotalCost: 50,
		Actuals: &plan.Actuals{Rows: 5000, TotalTime: 1.0, Loops: 1},
	}

	findings := Run(analyzedTree(root, 10), Thresholds{})
	if f := findByCategory(findings, CardinalityMisestimate); f != nil {
		t.Errorf("a 1.25x estimate error should not be flagged: %+v", f)
	}
}

func TestExpensiveSort(t *testing.T) {
	root := &plan.Node{
		Kind: plan.Sort, TypeName: "Sort", TotalCost: 500,
		SortKey:       []string{"created_at"},
		SortSpaceType: "Memory",
		Actuals:       &plan.Actuals{TotalTime: 80, Rows: 10000, Loops: 1},
	}

	findings := Run(analyzedTree(root, 100), Thresholds{})
	f := findByCategory(findings, ExpensiveSort)
	if f == nil {
		t.Fatal("expected an ExpensiveSort finding at 80% of query time")
	}
	if f.Severity != Warning {
		t.Errorf("Severity = %v, want Warning for in-memory sort", f.Severity)
	}
}

func TestExpensiveSort_DiskSpillIsCritical(t *testing.T) {
	root := &plan.Node{
		Kind: plan.Sort, TypeName: "Sort", TotalCost: 500,
		SortKey:       []string{"created_at"},
		SortSpaceType: "Disk", SortSpaceUsed: 20480,
		Actuals: &plan.Actuals{TotalTime: 80, Rows: 10000, Loops: 1},
	}

	findings := Run(analyzedTree(root, 100), Thresholds{})
	f := findByCategory(findings, ExpensiveSort)
	if f == nil {
		t.Fatal("expected an ExpensiveSort finding")
	}
	if f.Severity != Critical {
		t.Errorf("Severity = %v, want Critical for a disk spill", f.Severity)
	}
}

func TestExpensiveSort_CheapSortIgnored(t *testing.T) {
	root := &plan.Node{
		Kind: plan.Sort, TypeName: "Sort", TotalCost: 10,
		Actuals: &plan.Actuals{TotalTime: 1, Rows: 10, Loops: 1},
	}

	findings := Run(analyzedTree(root, 100), Thresholds{})
	if f := findByCategory(findings, ExpensiveSort); f != nil {
		t.Errorf("a 1%% sort should not be flagged: %+v", f)
	}
}

func TestRepeatedSubplan(t *testing.T) {
	sub := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "tags",
		TotalCost: 15, SubplanName: "SubPlan 1",
		Actuals: &plan.Actuals{TotalTime: 0.5, Rows: 1, Loops: 5000},
	}
	root := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "posts", TotalCost: 100,
		Actuals:  &plan.Actuals{TotalTime: 50, Rows: 5000, Loops: 1},
		Children: []*plan.Node{sub},
	}

	findings := Run(analyzedTree(root, 60), Thresholds{})
	f := findByCategory(findings, RepeatedSubplan)
	if f == nil {
		t.Fatal("expected a RepeatedSubplan finding at 5000 loops")
	}
	if f.Node != "0" {
		t.Errorf("Node path = %q, want 0", f.Node)
	}
}

func TestLockWait(t *testing.T) {
	root := &plan.Node{
		Kind: plan.SeqScan, TypeName: "Seq Scan", Relation: "big", TotalCost: 1000,
		Actuals: &plan.Actuals{TotalTime: 90, Rows: 100, Loops: 1},
		Buffers: &plan.Buffers{SharedRead: 5000, IOReadTime: 60},
	}

	findings := Run(analyzedTree(root, 100), Thresholds{})
	f := findByCategory(findings, LockWait)
	if f == nil {
		t.Fatal("expected a LockWait finding at 60% I/O wait")
	}
	if f.Severity != Critical {
		t.Errorf("Severity = %v, want Critical above twice the threshold", f.Severity)
	}
}

func TestTempSpillOther(t *testing.T) {
	root := &plan.Node{
		Kind: plan.HashJoin, TypeName: "Hash Join", TotalCost: 1000,
		Actuals: &plan.Actuals{TotalTime: 10, Rows: 100, Loops: 1},
		Buffers: &plan.Buffers{TempRead: 500, TempWritten: 500},
	}

	findings := Run(analyzedTree(root, 20), Thresholds{})
	f := findByCategory(findings, CategoryOther)
	if f == nil {
		t.Fatal("expected an Other finding for temp I/O")
	}
}

func TestConditionColumns(t *testing.T) {
	tests := []struct {
		cond string
		want []string
	}{
		{"(status = 'pending'::text)", []string{"status"}},
		{"(o.customer_id = c.id)", []string{"customer_id", "id"}},
		{"(active = true)", []string{"active"}},
		{"", nil},
		{"(name = 'a.b')", []string{"name"}},
	}

	for _, tt := range tests {
		got := conditionColumns(tt.cond)
		if len(got) != len(tt.want) {
			t.Errorf("conditionColumns(%q) = %v, want %v", tt.cond, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("conditionColumns(%q) = %v, want %v", tt.cond, got, tt.want)
				break
			}
		}
	}
}
