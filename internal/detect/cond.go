package detect

import (
	"regexp"
	"strings"
)

var (
	stringLiteralRe = regexp.MustCompile(`'[^']*'`)
	columnRefRe     = regexp.MustCompile(`\b(\w+)\.(\w+)\b`)
	castColRe       = regexp.MustCompile(`\(([a-zA-Z_]\w*)\)::`)
	bareColRe       = regexp.MustCompile(`(?:^|\(|\s)([a-zA-Z_]\w*)\s*(?:=|<>|<=|>=|<|>)`)
)

// conditionColumns extracts the column names referenced by a filter or join
// condition as printed in EXPLAIN output. String literals are stripped first
// so their contents cannot be mistaken for identifiers.
func conditionColumns(cond string) []string {
	if cond == "" {
		return nil
	}
	cleaned := stringLiteralRe.ReplaceAllString(cond, "")

	seen := make(map[string]bool)
	var cols []string
	add := func(col string) {
		if col != "" && !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}

	for _, m := range columnRefRe.FindAllStringSubmatch(cleaned, -1) {
		add(m[2])
	}
	for _, m := range castColRe.FindAllStringSubmatch(cleaned, -1) {
		add(m[1])
	}
	for _, m := range bareColRe.FindAllStringSubmatch(cleaned, -1) {
		add(m[1])
	}
	return cols
}

// joinColumnFor returns the column of the given relation (or alias) that a
// join condition compares on, if it can be identified.
func joinColumnFor(cond, relation, alias string) string {
	if cond == "" {
		return ""
	}
	condLower := strings.ToLower(cond)
	for _, prefix := range []string{alias, relation} {
		if prefix == "" {
			continue
		}
		for _, col := range conditionColumns(cond) {
			if strings.Contains(condLower, strings.ToLower(prefix)+"."+strings.ToLower(col)) {
				return col
			}
		}
	}
	return ""
}
