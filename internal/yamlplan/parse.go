// Package yamlplan implements the YAML-form EXPLAIN ingestion:
// PostgreSQL's EXPLAIN (FORMAT YAML) output carries the same attribute set
// as FORMAT JSON, just rendered as a YAML document (a single mapping, or a
// one-element sequence of mappings, each keyed by "Plan" at the top level).
// Rather than re-deriving the field mapping, this package normalizes the
// yaml.v3 decode result into the same map[string]any shape jsonstream.Parse
// produces and hands it to jsonstream.BuildNode, so the two formats share
// one conversion path.
package yamlplan

import (
	"fmt"

	"github.com/pgplan-project/pgplan/internal/jsonstream"
	"github.com/pgplan-project/pgplan/internal/plan"
	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML-form EXPLAIN document and builds its content envelope.
//
// One real divergence from the JSON path: yaml.v3 collapses duplicate
// mapping keys by taking the last one (the JSON path's duplicate-key
// deep-merge has no YAML analogue here), a limitation recorded in
// DESIGN.md rather than worked around.
func Parse(src string) (plan.Content, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return plan.Content{}, plan.NewParseFailure(fmt.Sprintf("invalid YAML: %v", err))
	}

	root, err := firstEntry(doc)
	if err != nil {
		return plan.Content{}, err
	}

	normalized := normalize(root)
	obj, ok := normalized.(map[string]any)
	if !ok {
		return plan.Content{}, plan.NewParseFailure("YAML EXPLAIN document is not a mapping")
	}

	return jsonstream.BuildContent(obj)
}

// firstEntry unwraps a top-level sequence to its first element, mirroring
// jsonstream.Parse's handling of a top-level JSON array.
func firstEntry(doc any) (any, error) {
	switch v := doc.(type) {
	case []any:
		if len(v) == 0 {
			return nil, plan.NewParseFailure("empty YAML EXPLAIN sequence")
		}
		return v[0], nil
	default:
		return doc, nil
	}
}

// normalize walks a yaml.v3-decoded tree and converts every map[any]any
// (which yaml.v3 produces for a mapping with non-string keys; string-keyed
// mappings already decode to map[string]any) into map[string]any, so the
// result matches what jsonstream.BuildNode expects.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
