package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// resolveInput reads the analysis input from a file argument (or stdin when
// the argument is "-" or absent) and classifies it: a raw SQL query to plan
// against a live database, or a pre-captured EXPLAIN (FORMAT JSON) payload
// to analyze offline. Exactly one of query and planJSON is set.
func resolveInput(args []string) (query string, planJSON []byte, err error) {
	filename := ""
	if len(args) > 0 {
		filename = args[0]
	}

	var data []byte
	if filename == "" || filename == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(filename)
	}
	if err != nil {
		return "", nil, err
	}

	switch detectInputType(data, filename) {
	case "json":
		if !json.Valid(data) {
			return "", nil, fmt.Errorf("input looks like a JSON plan but is not valid JSON; it may be truncated")
		}
		return "", data, nil

	case "sql":
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(strings.ToUpper(trimmed), "EXPLAIN") {
			return "", nil, fmt.Errorf("input should not include EXPLAIN prefix - provide the raw query only")
		}
		return trimmed, nil, nil

	case "text":
		return "", nil, fmt.Errorf(`text-format plans are not supported - capture the plan with:

EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) <your query>

and provide the complete JSON output`)

	default:
		return "", nil, fmt.Errorf("unable to detect input type: expected a SQL query, an EXPLAIN JSON plan, or a .sql/.json file")
	}
}

func detectInputType(data []byte, filename string) string {
	if strings.HasSuffix(filename, ".json") {
		return "json"
	}
	if strings.HasSuffix(filename, ".sql") {
		return "sql"
	}
	if strings.HasSuffix(filename, ".txt") {
		return "text"
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "unknown"
	}

	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return "json"
	}
	if strings.Contains(trimmed, "(cost=") {
		return "text"
	}

	upper := strings.ToUpper(trimmed)
	for _, kw := range []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "EXPLAIN"} {
		if strings.HasPrefix(upper, kw) {
			return "sql"
		}
	}

	return "unknown"
}
