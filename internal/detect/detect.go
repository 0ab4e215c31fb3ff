// Package detect walks a parsed plan tree and reports performance
// anti-patterns. Detection is a pure function of the tree: no I/O, no
// mutation, and the same tree always yields the same ordered findings.
package detect

import (
	"sort"

	"github.com/jakekaplan/elaiphant/internal/plan"
)

// Run applies all detection rules to the tree and returns findings ordered
// most severe first. Ties break by estimated cost descending, then by
// pre-order position in the tree.
func Run(tree *plan.Tree, th Thresholds) []Finding {
	th = th.withDefaults()

	var findings []Finding
	pos := 0
	tree.Walk(func(n, parent *plan.Node, path plan.Path) {
		rc := ruleInput{node: n, parent: parent, path: path, tree: tree, th: th}
		for _, r := range defaultRules {
			for _, f := range r(rc) {
				f.order = pos
				findings = append(findings, f)
			}
		}
		pos++
	})

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity > findings[j].Severity
		}
		if findings[i].Cost != findings[j].Cost {
			return findings[i].Cost > findings[j].Cost
		}
		return findings[i].order < findings[j].order
	})

	return findings
}
