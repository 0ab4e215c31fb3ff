package detect

import (
	"fmt"
	"strings"

	"github.com/jakekaplan/elaiphant/internal/plan"
)

type rule func(rc ruleInput) []Finding

type ruleInput struct {
	node   *plan.Node
	parent *plan.Node
	path   plan.Path
	tree   *plan.Tree
	th     Thresholds
}

var defaultRules = []rule{
	checkSeqScanOnLargeTable,
	checkCardinalityMisestimate,
	checkExpensiveSort,
	checkRepeatedSubplan,
	checkLockWait,
	checkTempSpill,
}

func checkSeqScanOnLargeTable(rc ruleInput) []Finding {
	node := rc.node
	if node.Kind != plan.SeqScan {
		return nil
	}

	rows := node.Rows()
	if rows < rc.th.LargeScanRows {
		return nil
	}

	// Only flag scans with a predicate an index could plausibly serve: a
	// filter on a single column, or a join condition on this relation.
	cols := conditionColumns(node.Filter)
	if len(cols) != 1 {
		cols = nil
		if rc.parent != nil && rc.parent.Kind.IsJoin() {
			cond := rc.parent.HashCond
			if cond == "" {
				cond = rc.parent.MergeCond
			}
			if col := joinColumnFor(cond, node.Relation, node.Alias); col != "" {
				cols = []string{col}
			}
		}
	}
	if len(cols) == 0 {
		return nil
	}

	severity := Warning
	if rows >= rc.th.CriticalScanRows {
		severity = Critical
	}

	return []Finding{{
		Severity: severity,
		Category: SeqScanOnLargeTable,
		Node:     rc.path,
		NodeType: node.TypeName,
		Relation: node.Relation,
		Cost:     node.TotalCost,
		Description: fmt.Sprintf("Seq Scan on %s reads %d rows with a predicate on %s that an index could serve",
			node.Relation, rows, strings.Join(cols, ", ")),
		Hint: &IndexHint{Table: node.Relation, Columns: cols},
	}}
}

func checkCardinalityMisestimate(rc ruleInput) []Finding {
	node := rc.node
	if node.Actuals == nil {
		return nil
	}

	actual := node.Actuals.Rows
	estimated := node.PlanRows

	diff := actual - estimated
	if diff < 0 {
		diff = -diff
	}
	base := actual
	if base < 1 {
		base = 1
	}
	ratio := float64(diff) / float64(base)
	if ratio <= rc.th.CardinalityFactor {
		return nil
	}

	severity := Warning
	if ratio > rc.th.CardinalityFactor*10 {
		severity = Critical
	}

	return []Finding{{
		Severity: severity,
		Category: CardinalityMisestimate,
		Node:     rc.path,
		NodeType: node.TypeName,
		Relation: node.Relation,
		Cost:     node.TotalCost,
		Description: fmt.Sprintf("%s estimated %d rows but produced %d (%.0fx off); statistics may be stale",
			node.Label(), estimated, actual, ratio),
	}}
}

func checkExpensiveSort(rc ruleInput) []Finding {
	node := rc.node
	if node.Kind != plan.Sort && node.Kind != plan.IncrementalSort {
		return nil
	}
	if node.Actuals == nil || rc.tree.ExecutionTime <= 0 {
		return nil
	}

	loops := node.Actuals.Loops
	if loops < 1 {
		loops = 1
	}
	sortTime := node.Actuals.TotalTime * float64(loops)
	if sortTime < rc.th.SortTimeFraction*rc.tree.ExecutionTime {
		return nil
	}

	severity := Warning
	desc := fmt.Sprintf("Sort on (%s) took %.1fms of %.1fms total query time",
		strings.Join(node.SortKey, ", "), sortTime, rc.tree.ExecutionTime)
	if node.SortSpaceType == "Disk" {
		severity = Critical
		desc += fmt.Sprintf(", spilling %dkB to disk", node.SortSpaceUsed)
	}

	return []Finding{{
		Severity:    severity,
		Category:    ExpensiveSort,
		Node:        rc.path,
		NodeType:    node.TypeName,
		Relation:    node.Relation,
		Cost:        node.TotalCost,
		Description: desc,
	}}
}

func checkRepeatedSubplan(rc ruleInput) []Finding {
	node := rc.node
	if node.SubplanName == "" && node.ParentRelationship != "SubPlan" {
		return nil
	}
	if node.Actuals == nil || node.Actuals.Loops < rc.th.SubplanLoops {
		return nil
	}

	severity := Warning
	if node.Actuals.Loops >= rc.th.SubplanLoops*100 {
		severity = Critical
	}

	totalTime := node.Actuals.TotalTime * float64(node.Actuals.Loops)

	return []Finding{{
		Severity: severity,
		Category: RepeatedSubplan,
		Node:     rc.path,
		NodeType: node.TypeName,
		Relation: node.Relation,
		Cost:     node.TotalCost,
		Description: fmt.Sprintf("%s executed %d times (%.1fms total); consider rewriting the subquery as a join",
			node.Label(), node.Actuals.Loops, totalTime),
	}}
}

func checkLockWait(rc ruleInput) []Finding {
	node := rc.node
	if node.Buffers == nil || rc.tree.ExecutionTime <= 0 {
		return nil
	}

	wait := node.Buffers.IOReadTime + node.Buffers.IOWriteTime
	if wait < rc.th.IOWaitFraction*rc.tree.ExecutionTime {
		return nil
	}

	severity := Warning
	if wait >= 2*rc.th.IOWaitFraction*rc.tree.ExecutionTime {
		severity = Critical
	}

	return []Finding{{
		Severity: severity,
		Category: LockWait,
		Node:     rc.path,
		NodeType: node.TypeName,
		Relation: node.Relation,
		Cost:     node.TotalCost,
		Description: fmt.Sprintf("%s spent %.1fms of %.1fms waiting on block I/O",
			node.Label(), wait, rc.tree.ExecutionTime),
	}}
}

func checkTempSpill(rc ruleInput) []Finding {
	node := rc.node
	if node.Buffers == nil {
		return nil
	}
	total := node.Buffers.TempRead + node.Buffers.TempWritten
	if total == 0 {
		return nil
	}
	sizeMB := float64(total*8) / 1024

	return []Finding{{
		Severity: Warning,
		Category: CategoryOther,
		Node:     rc.path,
		NodeType: node.TypeName,
		Relation: node.Relation,
		Cost:     node.TotalCost,
		Description: fmt.Sprintf("Temp I/O: %d blocks (%.1f MB) on %s; work_mem may be too small",
			total, sizeMB, node.Label()),
	}}
}
