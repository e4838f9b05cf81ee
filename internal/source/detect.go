package source

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Format is the result of source format detection.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

var bracketedBlockRe = regexp.MustCompile(`(?s)^(\s*)([\[{])\s*\n(.*?)\n(\s*)([\]}])\s*$`)

// yamlPlanRe recognizes a top-level YAML EXPLAIN document: either a bare
// mapping starting with "Plan:" or a sequence whose first mapping has one.
var yamlPlanRe = regexp.MustCompile(`(?m)^-?\s*Plan:\s*$`)

// DetectFormat classifies cleaned EXPLAIN source as text, JSON, or
// YAML, the third branch recognizing a YAML-shaped EXPLAIN document.
// Returns the detected format and the text to parse (for JSON, the trimmed
// source). The bracketed-block pattern is anchored to the start and end of
// the whole source, so it adds no case beyond the first JSON check: a JSON
// block with other text before or after it is not extracted, and such
// source is classified as YAML or text.
func DetectFormat(cleaned string) (Format, string) {
	trimmed := strings.TrimSpace(cleaned)
	if trimmed == "" {
		return FormatText, cleaned
	}

	if looksLikeJSON(trimmed) {
		return FormatJSON, trimmed
	}

	if m := bracketedBlockRe.FindStringSubmatch(cleaned); m != nil {
		prefix := m[1]
		closingPrefix := m[4]
		if prefix == closingPrefix {
			candidate := cleaned[strings.Index(cleaned, m[2]):]
			if looksLikeJSON(strings.TrimSpace(candidate)) {
				return FormatJSON, candidate
			}
		}
	}

	if yamlPlanRe.MatchString(cleaned) {
		return FormatYAML, cleaned
	}

	return FormatText, cleaned
}

func looksLikeJSON(s string) bool {
	if s == "" || (s[0] != '[' && s[0] != '{') {
		return false
	}
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}
