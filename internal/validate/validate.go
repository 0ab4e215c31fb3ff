// Package validate tests candidate schema and configuration changes against
// the real planner before they can become recommendations. A candidate is
// never trusted on the proposer's word: it is re-planned under a simulated
// version of the change and judged by the measured cost delta.
package validate

import (
	"context"
	"errors"
	"sync"

	"github.com/jakekaplan/elaiphant/internal/plan"
)

// ErrSimulationUnsupported is returned by a Simulator that cannot safely
// test a given change kind. The resulting verdict is Inconclusive, never
// silently Improved.
var ErrSimulationUnsupported = errors.New("simulation unsupported for this change")

// Simulator is the simulation collaborator: it re-plans the query as if the
// change were applied, without permanently altering the schema. Each call
// acquires and releases its own connection scope, so Simulate is safe to
// call concurrently.
type Simulator interface {
	Simulate(ctx context.Context, change CandidateChange, query string) (*plan.Tree, error)
}

// Verdict thresholds: a candidate must move estimated cost by at least 10%
// in either direction to count as improved or regressed.
const (
	improveThreshold = 0.10
	regressThreshold = 0.10
)

// VerdictFor judges a candidate by estimated total cost against baseline.
func VerdictFor(baselineCost, candidateCost float64) Verdict {
	if baselineCost <= 0 {
		return Inconclusive
	}
	switch {
	case candidateCost <= baselineCost*(1-improveThreshold):
		return Improved
	case candidateCost >= baselineCost*(1+regressThreshold):
		return Regressed
	default:
		return NoChange
	}
}

// Validate tests one candidate and returns its recommendation. Simulation
// failures are captured in the result, not returned: one bad candidate must
// not abort the others.
func Validate(ctx context.Context, sim Simulator, baseline *plan.Tree, change CandidateChange) Recommendation {
	rec := Recommendation{
		Change: change,
		Result: ValidationResult{Baseline: baseline, Verdict: Inconclusive},
	}

	candidate, err := sim.Simulate(ctx, change, baseline.Query)
	if err != nil {
		rec.Result.Err = err
		return rec
	}

	res := &rec.Result
	res.Candidate = candidate
	res.EstCostDelta = candidate.TotalCost() - baseline.TotalCost()
	res.EstCostPct = pctChange(baseline.TotalCost(), candidate.TotalCost())
	res.Verdict = VerdictFor(baseline.TotalCost(), candidate.TotalCost())
	res.Changes = diffTrees(baseline, candidate)

	if baseline.Analyzed && candidate.Analyzed {
		res.HasActual = true
		res.ActualDelta = candidate.ExecutionTime - baseline.ExecutionTime
		res.ActualPct = pctChange(baseline.ExecutionTime, candidate.ExecutionTime)
	}

	return rec
}

// DefaultWorkers bounds concurrent validations when the caller does not.
const DefaultWorkers = 4

// ValidateAll validates every candidate, running up to workers validations
// concurrently. Results are returned in input order. Each validation opens
// its own connection scope via the simulator; no state is shared between
// them. Cancelling ctx propagates to in-flight simulations, whose
// transactions roll back before the call returns.
func ValidateAll(ctx context.Context, sim Simulator, baseline *plan.Tree, changes []CandidateChange, workers int) []Recommendation {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Recommendation, len(changes))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, change := range changes {
		wg.Add(1)
		go func(i int, change CandidateChange) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = Recommendation{
					Change: change,
					Result: ValidationResult{Baseline: baseline, Verdict: Inconclusive, Err: ctx.Err()},
				}
				return
			}
			defer func() { <-sem }()
			results[i] = Validate(ctx, sim, baseline, change)
		}(i, change)
	}

	wg.Wait()
	return results
}
