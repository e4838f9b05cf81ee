// Package parse is the façade the rest of the module calls: it wires
// source cleanup and format detection to the JSON, YAML, or text parser,
// then runs the enrichment pass and assembles the returned Plan.
package parse

import (
	"time"

	"github.com/pgplan-project/pgplan/internal/enrich"
	"github.com/pgplan-project/pgplan/internal/jsonstream"
	"github.com/pgplan-project/pgplan/internal/plan"
	"github.com/pgplan-project/pgplan/internal/source"
	"github.com/pgplan-project/pgplan/internal/textplan"
	"github.com/pgplan-project/pgplan/internal/yamlplan"
)

// Clock is injectable so tests can fix Plan.CreatedOn instead of depending
// on wall-clock time.
var Clock = time.Now

// IDGenerator is injectable so tests can fix Plan.ID.
var IDGenerator = defaultID

func defaultID() string {
	return Clock().Format("20060102T150405.000000000")
}

// CleanupSource strips framings from raw EXPLAIN source so only the plan
// body remains, for callers that need to pre-sanitize text for display
// without running a full parse.
func CleanupSource(src string) string {
	return source.CleanupSource(src)
}

// ParseSource parses a raw EXPLAIN source in text, JSON, or YAML form into
// an enriched Plan. name and query are caller-supplied metadata; query, if
// non-empty, is extended by the leading lines the text parser encounters
// before its first plan node.
func ParseSource(src string, name string, query string) (*plan.Plan, error) {
	cleaned := source.CleanupSource(src)
	format, candidate := source.DetectFormat(cleaned)

	var content plan.Content
	var resolvedQuery string
	var err error

	switch format {
	case source.FormatJSON:
		var obj map[string]any
		obj, err = jsonstream.Parse([]byte(candidate))
		if err == nil {
			content, err = jsonstream.BuildContent(obj)
		}
		resolvedQuery = query
	case source.FormatYAML:
		content, err = yamlplan.Parse(candidate)
		resolvedQuery = query
	default:
		content, resolvedQuery, err = textplan.Parse(cleaned, query)
	}
	if err != nil {
		return nil, err
	}

	ctes, isAnalyze, isVerbose := enrich.Enrich(&content)

	p := &plan.Plan{
		ID:        IDGenerator(),
		Name:      name,
		CreatedOn: Clock(),
		Query:     resolvedQuery,
		Content:   content,
		CTEs:      ctes,
		IsAnalyze: isAnalyze,
		IsVerbose: isVerbose,
	}
	return p, nil
}
