package output

import (
	"fmt"
	"io"

	"github.com/jakekaplan/elaiphant/internal/detect"
	"github.com/jakekaplan/elaiphant/internal/orchestrate"
	"github.com/jakekaplan/elaiphant/internal/validate"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

// RenderFindingsText renders the detector output of a run: plan summary plus
// ordered findings.
func RenderFindingsText(w io.Writer, rep *orchestrate.Report) error {
	tw := &textWriter{w: w}
	tw.renderSummary(rep)
	tw.renderFindings(rep.Findings)
	return tw.err
}

// RenderReportText renders a complete run: summary, findings and validated
// recommendations.
func RenderReportText(w io.Writer, rep *orchestrate.Report) error {
	tw := &textWriter{w: w}
	tw.renderSummary(rep)
	tw.renderFindings(rep.Findings)

	if len(rep.Findings) == 0 {
		return tw.err
	}

	tw.printf("\n%s%sRecommendations (%d)%s\n\n", colorBold, colorCyan, len(rep.Recommendations), colorReset)

	if len(rep.Recommendations) == 0 {
		tw.printf("  %sNo validated improvements found.%s\n", colorDim, colorReset)
		return tw.err
	}

	for _, rec := range rep.Recommendations {
		tw.renderRecommendation(rec)
	}
	return tw.err
}

func (tw *textWriter) renderSummary(rep *orchestrate.Report) {
	tw.printf("%s%sPlan Summary%s\n\n", colorBold, colorCyan, colorReset)
	if rep.Tree != nil {
		tw.printf("  Total Cost:     %.2f\n", rep.Tree.TotalCost())
		if rep.Tree.ExecutionTime > 0 {
			tw.printf("  Execution Time: %.3f ms\n", rep.Tree.ExecutionTime)
		}
		if rep.Tree.PlanningTime > 0 {
			tw.printf("  Planning Time:  %.3f ms\n", rep.Tree.PlanningTime)
		}
		if !rep.Tree.Analyzed {
			tw.printf("  %s(estimates only, query was not executed)%s\n", colorDim, colorReset)
		}
	}
	tw.printf("\n")
}

func (tw *textWriter) renderFindings(findings []detect.Finding) {
	if len(findings) == 0 {
		tw.printf("%s%sNo issues found.%s\n", colorBold, colorGreen, colorReset)
		return
	}

	tw.printf("%s%sFindings (%d)%s\n\n", colorBold, colorCyan, len(findings), colorReset)

	for i, f := range findings {
		label, color := severityFormat(f.Severity)
		tw.printf("  %s%-8s%s %s\n", color, label, colorReset, f.Description)
		tw.printf("  %snode %s [%s]%s\n", colorDim, f.NodeType, f.Node, colorReset)
		if i < len(findings)-1 {
			tw.printf("\n")
		}
	}
}

func (tw *textWriter) renderRecommendation(rec validate.Recommendation) {
	res := rec.Result
	label, color := verdictFormat(res.Verdict)

	tw.printf("  %s%-12s%s %s %s(%s)%s\n", color, label, colorReset, rec.Change.Label(), colorDim, rec.Change.Source, colorReset)

	if res.Candidate != nil {
		tw.printf("    cost: %.2f → %.2f (%+.1f%%)\n", res.Baseline.TotalCost(), res.Candidate.TotalCost(), res.EstCostPct)
		if res.HasActual {
			tw.printf("    time: %.3f ms → %.3f ms (%+.1f%%)\n",
				res.Baseline.ExecutionTime, res.Candidate.ExecutionTime, res.ActualPct)
		}
	}
	if res.Err != nil {
		tw.printf("    %s%v%s\n", colorDim, res.Err, colorReset)
	}
	if rec.Change.Rationale != "" {
		tw.printf("    %s%s%s\n", colorDim, rec.Change.Rationale, colorReset)
	}
	tw.printf("\n")
}

func severityFormat(s detect.Severity) (string, string) {
	switch s {
	case detect.Critical:
		return "CRITICAL", colorRed
	case detect.Warning:
		return "WARNING", colorYellow
	default:
		return "INFO", colorCyan
	}
}

func verdictFormat(v validate.Verdict) (string, string) {
	switch v {
	case validate.Improved:
		return "IMPROVED", colorGreen
	case validate.Regressed:
		return "REGRESSED", colorRed
	case validate.NoChange:
		return "NO CHANGE", colorYellow
	default:
		return "INCONCLUSIVE", colorDim
	}
}
