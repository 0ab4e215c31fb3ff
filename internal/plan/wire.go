package plan

// Wire structs matching PostgreSQL's JSON EXPLAIN output. Field-name casing
// is part of the server's format and must not change. Actual-side fields are
// pointers so a missing value is distinguishable from a real zero.

type wireExplain struct {
	Plan          *wireNode `json:"Plan"`
	PlanningTime  float64   `json:"Planning Time"`
	ExecutionTime float64   `json:"Execution Time"`
}

type wireNode struct {
	NodeType           *string `json:"Node Type"`
	ParentRelationship string  `json:"Parent Relationship"`
	SubplanName        string  `json:"Subplan Name"`
	CTEName            string  `json:"CTE Name"`

	Schema       string `json:"Schema"`
	RelationName string `json:"Relation Name"`
	Alias        string `json:"Alias"`
	IndexName    string `json:"Index Name"`

	StartupCost float64 `json:"Startup Cost"`
	TotalCost   float64 `json:"Total Cost"`
	PlanRows    int64   `json:"Plan Rows"`
	PlanWidth   int     `json:"Plan Width"`

	ActualStartupTime   *float64 `json:"Actual Startup Time"`
	ActualTotalTime     *float64 `json:"Actual Total Time"`
	ActualRows          *int64   `json:"Actual Rows"`
	ActualLoops         *int64   `json:"Actual Loops"`
	RowsRemovedByFilter *int64   `json:"Rows Removed by Filter"`

	Filter     string `json:"Filter"`
	IndexCond  string `json:"Index Cond"`
	HashCond   string `json:"Hash Cond"`
	MergeCond  string `json:"Merge Cond"`
	JoinFilter string `json:"Join Filter"`

	SortKey       []string `json:"Sort Key"`
	SortMethod    string   `json:"Sort Method"`
	SortSpaceUsed int64    `json:"Sort Space Used"`
	SortSpaceType string   `json:"Sort Space Type"`

	SharedHitBlocks     *int64   `json:"Shared Hit Blocks"`
	SharedReadBlocks    *int64   `json:"Shared Read Blocks"`
	SharedDirtiedBlocks *int64   `json:"Shared Dirtied Blocks"`
	SharedWrittenBlocks *int64   `json:"Shared Written Blocks"`
	LocalHitBlocks      *int64   `json:"Local Hit Blocks"`
	LocalReadBlocks     *int64   `json:"Local Read Blocks"`
	TempReadBlocks      *int64   `json:"Temp Read Blocks"`
	TempWrittenBlocks   *int64   `json:"Temp Written Blocks"`
	IOReadTime          *float64 `json:"I/O Read Time"`
	IOWriteTime         *float64 `json:"I/O Write Time"`

	Plans []wireNode `json:"Plans"`
}
