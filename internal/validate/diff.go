package validate

import (
	"math"

	"github.com/jakekaplan/elaiphant/internal/plan"
)

// ChangeType classifies a node-level difference between two plans.
type ChangeType int

const (
	NodeUnchanged ChangeType = iota
	NodeModified
	NodeAdded
	NodeRemoved
	NodeTypeChanged
)

func (c ChangeType) String() string {
	switch c {
	case NodeModified:
		return "modified"
	case NodeAdded:
		return "added"
	case NodeRemoved:
		return "removed"
	case NodeTypeChanged:
		return "type_changed"
	default:
		return "unchanged"
	}
}

// NodeChange describes one structural or cost difference between the
// baseline and candidate plans, in pre-order.
type NodeChange struct {
	Path       plan.Path
	ChangeType ChangeType

	OldLabel string
	NewLabel string

	OldCost   float64
	NewCost   float64
	CostDelta float64
	CostPct   float64
}

// significantCostPct is the minimum cost change worth reporting per node.
const significantCostPct = 1.0

// diffTrees compares two plans node by node and returns the differences.
// Children are matched positionally; a plan-shape change shows up as
// added/removed nodes rather than a fuzzy match.
func diffTrees(baseline, candidate *plan.Tree) []NodeChange {
	if baseline == nil || baseline.Root == nil || candidate == nil || candidate.Root == nil {
		return nil
	}
	var changes []NodeChange
	diffNodes(baseline.Root, candidate.Root, "", &changes)
	return changes
}

func diffNodes(old, new *plan.Node, path plan.Path, out *[]NodeChange) {
	change := NodeChange{
		Path:      path,
		OldLabel:  old.Label(),
		NewLabel:  new.Label(),
		OldCost:   old.TotalCost,
		NewCost:   new.TotalCost,
		CostDelta: new.TotalCost - old.TotalCost,
		CostPct:   pctChange(old.TotalCost, new.TotalCost),
	}

	switch {
	case old.TypeName != new.TypeName:
		change.ChangeType = NodeTypeChanged
	case math.Abs(change.CostPct) >= significantCostPct || old.Index != new.Index:
		change.ChangeType = NodeModified
	default:
		change.ChangeType = NodeUnchanged
	}

	if change.ChangeType != NodeUnchanged {
		*out = append(*out, change)
	}

	n := len(old.Children)
	if len(new.Children) > n {
		n = len(new.Children)
	}
	for i := 0; i < n; i++ {
		childPath := path.Child(i)
		switch {
		case i >= len(old.Children):
			added := new.Children[i]
			*out = append(*out, NodeChange{
				Path:       childPath,
				ChangeType: NodeAdded,
				NewLabel:   added.Label(),
				NewCost:    added.TotalCost,
			})
		case i >= len(new.Children):
			removed := old.Children[i]
			*out = append(*out, NodeChange{
				Path:       childPath,
				ChangeType: NodeRemoved,
				OldLabel:   removed.Label(),
				OldCost:    removed.TotalCost,
			})
		default:
			diffNodes(old.Children[i], new.Children[i], childPath, out)
		}
	}
}

func pctChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 100
	}
	return (new - old) / old * 100
}
