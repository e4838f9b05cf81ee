// Package source implements source cleanup and format
// detection): stripping table framings/borders/quotes/continuations/header
// and footer rows from a raw EXPLAIN capture, then deciding whether the
// cleaned body is JSON, YAML, or the line-oriented text format.
package source

import (
	"regexp"
	"strings"
)

var (
	// Row framings: "| ... |", "│ ... │", "║ ... ║".
	rowFrameRe = regexp.MustCompile(`^(\||│|║)(.*)(\||│|║)$`)

	// Ruler lines: "+---+", "---", box-drawing borders.
	rulerRe = regexp.MustCompile(`^[+\-=│║┌┐└┘├┤┬┴┼═─]+$`)

	// "QUERY PLAN" header, possibly padded with blank space around it.
	queryPlanHeaderRe = regexp.MustCompile(`(?i)^\s*QUERY PLAN\s*$`)

	// Trailing row-count footer: "(8 rows)", "(8 lignes)", locale-agnostic.
	rowCountFooterRe = regexp.MustCompile(`^\(\d+\s+\p{L}+s?\)$`)

	continuationSuffixRe = regexp.MustCompile(`[+↵]\s*$`)
)

// CleanupSource strips framings so only the plan body remains.
// Idempotent: CleanupSource(CleanupSource(s)) == CleanupSource(s).
func CleanupSource(src string) string {
	lines := splitLines(src)
	var out []string

	for _, line := range lines {
		l := line

		if m := rowFrameRe.FindStringSubmatch(l); m != nil {
			l = m[2]
		}
		l = stripSurroundingQuotes(l)

		trimmed := strings.TrimSpace(l)
		if rulerRe.MatchString(trimmed) && trimmed != "" {
			continue
		}
		if queryPlanHeaderRe.MatchString(l) {
			continue
		}
		if rowCountFooterRe.MatchString(trimmed) {
			continue
		}

		l = continuationSuffixRe.ReplaceAllString(l, "")

		out = append(out, l)
	}

	return strings.Join(out, "\n")
}

// stripSurroundingQuotes removes a single pair of matching quotes around a
// line's content, preserving leading indentation (depth inference depends on
// it: output is never trimmed of significant indentation.
func stripSurroundingQuotes(line string) string {
	leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	body := strings.TrimLeft(line, " \t")
	if len(body) >= 2 {
		first, last := body[0], body[len(body)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			body = body[1 : len(body)-1]
		}
	}
	return leading + body
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
