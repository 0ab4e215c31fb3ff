// Package orchestrate sequences a full analysis run: fetch the plan, detect
// anti-patterns, ask the advisory service for candidates, validate every
// candidate against the planner, and assemble ranked recommendations.
package orchestrate

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jakekaplan/elaiphant/internal/advisory"
	"github.com/jakekaplan/elaiphant/internal/db"
	"github.com/jakekaplan/elaiphant/internal/detect"
	"github.com/jakekaplan/elaiphant/internal/plan"
	"github.com/jakekaplan/elaiphant/internal/validate"
)

// State tracks a run through its lifecycle. Complete and Failed are
// terminal; Failed is reachable from any state.
type State int

const (
	StateFetching State = iota
	StateParsed
	StateDetected
	StateAwaitingAdvisory
	StateValidating
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateParsed:
		return "parsed"
	case StateDetected:
		return "detected"
	case StateAwaitingAdvisory:
		return "awaiting_advisory"
	case StateValidating:
		return "validating"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config tunes one orchestrator.
type Config struct {
	Thresholds      detect.Thresholds
	Workers         int           // concurrent validations, DefaultWorkers when zero
	StatementBudget int           // advisory problem statement byte cap
	AnalyzeTimeout  time.Duration // EXPLAIN ANALYZE bound before plan-only fallback

	// FullDetail keeps NoChange, Regressed and Inconclusive recommendations
	// in the report instead of filtering them out.
	FullDetail bool
}

// Orchestrator runs analyses. Collaborators are injected; the orchestrator
// holds no global state and independent runs may proceed concurrently.
type Orchestrator struct {
	Connect   db.ConnFactory
	Advisor   advisory.Advisor // nil disables the advisory step
	Simulator validate.Simulator
	Log       logrus.FieldLogger
	Config    Config
}

// Report is the outcome of one run. A Complete report with zero
// recommendations is a valid result, distinct from a Failed one.
type Report struct {
	RunID string
	Query string
	State State

	Tree            *plan.Tree
	Findings        []detect.Finding
	Recommendations []validate.Recommendation

	// Err is set when State is Failed and names the originating error.
	Err error
}

// Run analyzes one query end to end. The returned report is always non-nil;
// when the run fails the report records the state it failed in and the error
// is also returned.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Report, error) {
	rep := &Report{
		RunID: uuid.NewString(),
		Query: query,
		State: StateFetching,
	}
	log := o.logger().WithFields(logrus.Fields{"run_id": rep.RunID})

	conn, err := o.Connect(ctx)
	if err != nil {
		return o.fail(rep, log, err)
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	fetcher := &plan.Fetcher{AnalyzeTimeout: o.Config.AnalyzeTimeout, Log: log}
	tree, err := fetcher.Fetch(ctx, conn, query)
	if err != nil {
		return o.fail(rep, log, err)
	}
	rep.Tree = tree
	rep.State = StateParsed

	rep.Findings = detect.Run(tree, o.Config.Thresholds)
	rep.State = StateDetected
	log.WithFields(logrus.Fields{"findings": len(rep.Findings), "analyzed": tree.Analyzed}).
		Info("plan analyzed")

	// No findings means nothing to fix: complete without the advisory
	// round-trip.
	if len(rep.Findings) == 0 {
		rep.State = StateComplete
		return rep, nil
	}

	candidates := heuristicCandidates(rep.Findings)

	if o.Advisor != nil {
		rep.State = StateAwaitingAdvisory
		stmt := advisory.BuildStatement(tree, rep.Findings, o.Config.StatementBudget)
		proposed, err := o.Advisor.Propose(ctx, stmt)
		if err != nil {
			// Advisory failures yield zero candidates, never a failed run.
			log.WithError(err).Warn("advisory call failed, continuing with heuristic candidates")
		}
		candidates = append(candidates, proposed...)
	}

	candidates = dedupCandidates(candidates)
	if len(candidates) == 0 || o.Simulator == nil {
		rep.State = StateComplete
		return rep, nil
	}

	rep.State = StateValidating
	log.WithField("candidates", len(candidates)).Info("validating candidates")

	recs := validate.ValidateAll(ctx, o.Simulator, tree, candidates, o.Config.Workers)
	if ctx.Err() != nil {
		return o.fail(rep, log, &db.TimeoutError{Step: "validating", Err: ctx.Err()})
	}

	rep.Recommendations = rank(recs, o.Config.FullDetail)
	rep.State = StateComplete
	log.WithField("recommendations", len(rep.Recommendations)).Info("run complete")
	return rep, nil
}

// RunOffline analyzes a pre-captured EXPLAIN (FORMAT JSON) payload without a
// database connection. Only parsing and detection run: with no live planner
// there is nothing to validate candidates against, so the run completes right
// after detection.
func (o *Orchestrator) RunOffline(payload []byte) (*Report, error) {
	rep := &Report{
		RunID: uuid.NewString(),
		State: StateFetching,
	}
	log := o.logger().WithFields(logrus.Fields{"run_id": rep.RunID})

	tree, err := plan.Parse(payload, "")
	if err != nil {
		return o.fail(rep, log, err)
	}
	tree.CapturedAt = time.Now()
	rep.Tree = tree
	rep.State = StateParsed

	rep.Findings = detect.Run(tree, o.Config.Thresholds)
	rep.State = StateDetected
	log.WithFields(logrus.Fields{"findings": len(rep.Findings), "analyzed": tree.Analyzed}).
		Info("plan analyzed")

	rep.State = StateComplete
	return rep, nil
}

func (o *Orchestrator) fail(rep *Report, log logrus.FieldLogger, err error) (*Report, error) {
	if rep.Query != "" {
		err = fmt.Errorf("analysis of %q failed while %s: %w", rep.Query, rep.State, err)
	} else {
		err = fmt.Errorf("analysis failed while %s: %w", rep.State, err)
	}
	rep.State = StateFailed
	rep.Err = err
	log.WithError(err).Error("run failed")
	return rep, err
}

func (o *Orchestrator) logger() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// heuristicCandidates turns detector index hints into locally derived
// candidates, so an index suggestion gets validated even when the advisory
// service is unavailable.
func heuristicCandidates(findings []detect.Finding) []validate.CandidateChange {
	var out []validate.CandidateChange
	for _, f := range findings {
		if f.Hint == nil || f.Hint.Table == "" || len(f.Hint.Columns) == 0 {
			continue
		}
		out = append(out, validate.CandidateChange{
			Kind:      validate.ChangeIndex,
			Source:    validate.SourceHeuristic,
			Index:     &validate.IndexDef{Table: f.Hint.Table, Columns: f.Hint.Columns},
			Rationale: f.Description,
		})
	}
	return out
}

func dedupCandidates(candidates []validate.CandidateChange) []validate.CandidateChange {
	seen := make(map[string]bool)
	var out []validate.CandidateChange
	for _, c := range candidates {
		key := c.Label()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// rank orders recommendations by estimated cost reduction, largest first.
// Unless full detail was requested, only Improved verdicts survive.
func rank(recs []validate.Recommendation, fullDetail bool) []validate.Recommendation {
	var out []validate.Recommendation
	for _, r := range recs {
		if fullDetail || r.Result.Verdict == validate.Improved {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.EstCostDelta < out[j].Result.EstCostDelta
	})
	return out
}
