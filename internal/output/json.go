package output

import (
	"encoding/json"
	"io"

	"github.com/jakekaplan/elaiphant/internal/orchestrate"
	"github.com/jakekaplan/elaiphant/internal/validate"
)

// jsonReport is the machine-readable view of a run. Enums render as their
// string forms and errors as plain text, so the output is stable for
// downstream tooling regardless of internal representation.
type jsonReport struct {
	RunID           string               `json:"run_id"`
	State           string               `json:"state"`
	Query           string               `json:"query,omitempty"`
	TotalCost       float64              `json:"total_cost,omitempty"`
	PlanningTimeMs  float64              `json:"planning_time_ms,omitempty"`
	ExecutionTimeMs float64              `json:"execution_time_ms,omitempty"`
	Analyzed        bool                 `json:"analyzed"`
	Findings        []jsonFinding        `json:"findings"`
	Recommendations []jsonRecommendation `json:"recommendations,omitempty"`
	Error           string               `json:"error,omitempty"`
}

type jsonFinding struct {
	Severity    string   `json:"severity"`
	Category    string   `json:"category"`
	Node        string   `json:"node"`
	NodeType    string   `json:"node_type"`
	Relation    string   `json:"relation,omitempty"`
	Cost        float64  `json:"cost"`
	Description string   `json:"description"`
	IndexTable  string   `json:"index_table,omitempty"`
	IndexCols   []string `json:"index_columns,omitempty"`
}

type jsonRecommendation struct {
	Change       string  `json:"change"`
	Kind         string  `json:"kind"`
	Source       string  `json:"source"`
	Rationale    string  `json:"rationale,omitempty"`
	Verdict      string  `json:"verdict"`
	EstCostDelta float64 `json:"est_cost_delta"`
	EstCostPct   float64 `json:"est_cost_pct"`
	ActualDelta  float64 `json:"actual_delta_ms,omitempty"`
	ActualPct    float64 `json:"actual_pct,omitempty"`
	HasActual    bool    `json:"has_actual"`
	Error        string  `json:"error,omitempty"`
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, rep *orchestrate.Report) error {
	out := jsonReport{
		RunID:    rep.RunID,
		State:    rep.State.String(),
		Query:    rep.Query,
		Findings: []jsonFinding{},
	}
	if rep.Tree != nil {
		out.TotalCost = rep.Tree.TotalCost()
		out.PlanningTimeMs = rep.Tree.PlanningTime
		out.ExecutionTimeMs = rep.Tree.ExecutionTime
		out.Analyzed = rep.Tree.Analyzed
	}
	if rep.Err != nil {
		out.Error = rep.Err.Error()
	}

	for _, f := range rep.Findings {
		jf := jsonFinding{
			Severity:    f.Severity.String(),
			Category:    f.Category.String(),
			Node:        string(f.Node),
			NodeType:    f.NodeType,
			Relation:    f.Relation,
			Cost:        f.Cost,
			Description: f.Description,
		}
		if f.Hint != nil {
			jf.IndexTable = f.Hint.Table
			jf.IndexCols = f.Hint.Columns
		}
		out.Findings = append(out.Findings, jf)
	}

	for _, rec := range rep.Recommendations {
		out.Recommendations = append(out.Recommendations, jsonRecommendationOf(rec))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func jsonRecommendationOf(rec validate.Recommendation) jsonRecommendation {
	res := rec.Result
	jr := jsonRecommendation{
		Change:       rec.Change.Label(),
		Kind:         rec.Change.Kind.String(),
		Source:       rec.Change.Source.String(),
		Rationale:    rec.Change.Rationale,
		Verdict:      res.Verdict.String(),
		EstCostDelta: res.EstCostDelta,
		EstCostPct:   res.EstCostPct,
		HasActual:    res.HasActual,
	}
	if res.HasActual {
		jr.ActualDelta = res.ActualDelta
		jr.ActualPct = res.ActualPct
	}
	if res.Err != nil {
		jr.Error = res.Err.Error()
	}
	return jr
}
