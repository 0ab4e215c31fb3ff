package plan

import (
	"encoding/json"
	"fmt"
)

// MalformedPlanError reports a payload that violates the structural contract
// of PostgreSQL's JSON EXPLAIN output: invalid JSON, an empty plan list, or
// a node without a type. Unknown node types and missing optional fields are
// tolerated and do not produce this error.
type MalformedPlanError struct {
	Reason string
	Err    error
}

func (e *MalformedPlanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed plan: %s: %v", e.Reason, e.Err)
	}
	return "malformed plan: " + e.Reason
}

func (e *MalformedPlanError) Unwrap() error { return e.Err }

// Parse converts a raw EXPLAIN (FORMAT JSON) payload into a Tree. Parsing is
// deterministic and side-effect-free: identical input yields a structurally
// equal tree. The caller stamps CapturedAt.
func Parse(payload []byte, query string) (*Tree, error) {
	var outputs []wireExplain
	if err := json.Unmarshal(payload, &outputs); err != nil {
		return nil, &MalformedPlanError{Reason: "invalid EXPLAIN JSON", Err: err}
	}
	if len(outputs) == 0 {
		return nil, &MalformedPlanError{Reason: "empty EXPLAIN output"}
	}

	out := outputs[0]
	if out.Plan == nil {
		return nil, &MalformedPlanError{Reason: "missing root plan node"}
	}

	root, err := buildNode(out.Plan)
	if err != nil {
		return nil, err
	}

	return &Tree{
		Root:          root,
		Query:         query,
		PlanningTime:  out.PlanningTime,
		ExecutionTime: out.ExecutionTime,
		Analyzed:      root.Actuals != nil,
	}, nil
}

func buildNode(w *wireNode) (*Node, error) {
	if w.NodeType == nil || *w.NodeType == "" {
		return nil, &MalformedPlanError{Reason: "plan node without Node Type"}
	}

	n := &Node{
		Kind:     KindOf(*w.NodeType),
		TypeName: *w.NodeType,

		Relation:           w.RelationName,
		Alias:              w.Alias,
		Index:              w.IndexName,
		ParentRelationship: w.ParentRelationship,
		SubplanName:        w.SubplanName,
		CTEName:            w.CTEName,

		StartupCost: w.StartupCost,
		TotalCost:   w.TotalCost,
		PlanRows:    w.PlanRows,
		PlanWidth:   w.PlanWidth,

		Filter:     w.Filter,
		IndexCond:  w.IndexCond,
		HashCond:   w.HashCond,
		MergeCond:  w.MergeCond,
		JoinFilter: w.JoinFilter,

		SortKey:       w.SortKey,
		SortMethod:    w.SortMethod,
		SortSpaceUsed: w.SortSpaceUsed,
		SortSpaceType: w.SortSpaceType,
	}

	// ANALYZE emits the actual block as a unit; require the core pair so a
	// partially absent block never masquerades as measurements.
	if w.ActualTotalTime != nil && w.ActualRows != nil {
		a := &Actuals{
			TotalTime: *w.ActualTotalTime,
			Rows:      *w.ActualRows,
			Loops:     1,
		}
		if w.ActualStartupTime != nil {
			a.StartupTime = *w.ActualStartupTime
		}
		if w.ActualLoops != nil {
			a.Loops = *w.ActualLoops
		}
		if w.RowsRemovedByFilter != nil {
			a.RowsRemovedByFilter = *w.RowsRemovedByFilter
		}
		n.Actuals = a
	}

	if hasBuffers(w) {
		n.Buffers = &Buffers{
			SharedHit:     deref(w.SharedHitBlocks),
			SharedRead:    deref(w.SharedReadBlocks),
			SharedDirtied: deref(w.SharedDirtiedBlocks),
			SharedWritten: deref(w.SharedWrittenBlocks),
			LocalHit:      deref(w.LocalHitBlocks),
			LocalRead:     deref(w.LocalReadBlocks),
			TempRead:      deref(w.TempReadBlocks),
			TempWritten:   deref(w.TempWrittenBlocks),
		}
		if w.IOReadTime != nil {
			n.Buffers.IOReadTime = *w.IOReadTime
		}
		if w.IOWriteTime != nil {
			n.Buffers.IOWriteTime = *w.IOWriteTime
		}
	}

	for i := range w.Plans {
		child, err := buildNode(&w.Plans[i])
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}

	return n, nil
}

func hasBuffers(w *wireNode) bool {
	return w.SharedHitBlocks != nil || w.SharedReadBlocks != nil ||
		w.LocalHitBlocks != nil || w.TempReadBlocks != nil || w.TempWrittenBlocks != nil
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
