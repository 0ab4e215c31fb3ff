package plan

import (
	"strconv"
	"strings"
	"time"
)

// Kind discriminates plan node types so detection logic can switch
// exhaustively instead of matching raw strings.
type Kind int

const (
	Other Kind = iota
	SeqScan
	IndexScan
	IndexOnlyScan
	BitmapIndexScan
	BitmapHeapScan
	CTEScan
	SubqueryScan
	NestedLoop
	HashJoin
	MergeJoin
	Hash
	Sort
	IncrementalSort
	Aggregate
	Materialize
	Gather
	GatherMerge
	Limit
	Result
)

var kindByName = map[string]Kind{
	"Seq Scan":          SeqScan,
	"Index Scan":        IndexScan,
	"Index Only Scan":   IndexOnlyScan,
	"Bitmap Index Scan": BitmapIndexScan,
	"Bitmap Heap Scan":  BitmapHeapScan,
	"CTE Scan":          CTEScan,
	"Subquery Scan":     SubqueryScan,
	"Nested Loop":       NestedLoop,
	"Hash Join":         HashJoin,
	"Merge Join":        MergeJoin,
	"Hash":              Hash,
	"Sort":              Sort,
	"Incremental Sort":  IncrementalSort,
	"Aggregate":         Aggregate,
	"Materialize":       Materialize,
	"Gather":            Gather,
	"Gather Merge":      GatherMerge,
	"Limit":             Limit,
	"Result":            Result,
}

var nameByKind = func() map[Kind]string {
	m := make(map[Kind]string, len(kindByName))
	for name, kind := range kindByName {
		m[kind] = name
	}
	return m
}()

// KindOf maps a raw "Node Type" value to a Kind. Unknown types map to Other.
func KindOf(nodeType string) Kind {
	if k, ok := kindByName[nodeType]; ok {
		return k
	}
	return Other
}

func (k Kind) String() string {
	if name, ok := nameByKind[k]; ok {
		return name
	}
	return "Other"
}

// IsJoin reports whether the kind is a join operator.
func (k Kind) IsJoin() bool {
	switch k {
	case NestedLoop, HashJoin, MergeJoin:
		return true
	}
	return false
}

// Actuals holds the execution-side measurements of a node. The block is
// present only when the plan was captured with ANALYZE; a nil Actuals means
// "not measured", never "zero rows".
type Actuals struct {
	StartupTime         float64
	TotalTime           float64
	Rows                int64
	Loops               int64
	RowsRemovedByFilter int64
}

// Buffers holds buffer and I/O statistics for a node. Nil when BUFFERS was
// not requested or the server emitted none.
type Buffers struct {
	SharedHit     int64
	SharedRead    int64
	SharedDirtied int64
	SharedWritten int64
	LocalHit      int64
	LocalRead     int64
	TempRead      int64
	TempWritten   int64
	IOReadTime    float64
	IOWriteTime   float64
}

// Node is one operator in a query execution plan. The parent exclusively
// owns its children; nodes are not shared between trees.
type Node struct {
	Kind     Kind
	TypeName string // raw "Node Type" value, kept for Other kinds and display

	Relation           string
	Alias              string
	Index              string
	ParentRelationship string
	SubplanName        string
	CTEName            string

	StartupCost float64
	TotalCost   float64
	PlanRows    int64
	PlanWidth   int

	Filter     string
	IndexCond  string
	HashCond   string
	MergeCond  string
	JoinFilter string

	SortKey       []string
	SortMethod    string
	SortSpaceUsed int64
	SortSpaceType string

	Actuals *Actuals
	Buffers *Buffers

	Children []*Node
}

// Rows returns the best available row count: actual when measured,
// otherwise the planner estimate.
func (n *Node) Rows() int64 {
	if n.Actuals != nil {
		return n.Actuals.Rows
	}
	return n.PlanRows
}

// Label describes the node for human-readable output.
func (n *Node) Label() string {
	label := n.TypeName
	if n.Relation != "" {
		label += " on " + n.Relation
		if n.Alias != "" && n.Alias != n.Relation {
			label += " (" + n.Alias + ")"
		}
	}
	if n.Index != "" {
		label += " using " + n.Index
	}
	return label
}

// Tree is a parsed plan plus its capture metadata, immutable once built.
// One Tree is created per analysis run and discarded afterwards.
type Tree struct {
	Root  *Node
	Query string

	CapturedAt    time.Time
	PlanningTime  float64 // ms
	ExecutionTime float64 // ms

	// Analyzed reports whether the plan was captured with ANALYZE, i.e.
	// whether Actuals blocks are meaningful.
	Analyzed bool
}

// TotalCost returns the planner's estimated total cost of the whole plan.
func (t *Tree) TotalCost() float64 {
	if t.Root == nil {
		return 0
	}
	return t.Root.TotalCost
}

// Path identifies a node by its child indices from the root, e.g. "0.1".
// The empty path is the root. Paths survive serialization, which lets
// findings reference nodes without holding pointers into the tree.
type Path string

// Child extends the path by one child index.
func (p Path) Child(i int) Path {
	if p == "" {
		return Path(strconv.Itoa(i))
	}
	return p + Path("."+strconv.Itoa(i))
}

// NodeAt resolves a path against the tree. The second result is false when
// the path does not name a node.
func (t *Tree) NodeAt(p Path) (*Node, bool) {
	node := t.Root
	if node == nil {
		return nil, false
	}
	if p == "" {
		return node, true
	}
	for _, part := range strings.Split(string(p), ".") {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 || i >= len(node.Children) {
			return nil, false
		}
		node = node.Children[i]
	}
	return node, true
}

// Walk visits every node pre-order, passing the node, its parent (nil for
// the root) and its path.
func (t *Tree) Walk(visit func(n, parent *Node, path Path)) {
	if t.Root == nil {
		return
	}
	walkNode(t.Root, nil, "", visit)
}

func walkNode(n, parent *Node, path Path, visit func(n, parent *Node, path Path)) {
	visit(n, parent, path)
	for i, child := range n.Children {
		walkNode(child, n, path.Child(i), visit)
	}
}
