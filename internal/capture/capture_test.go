package capture

import (
	"context"
	"strings"
	"testing"
)

func TestExplainPrefix_Default(t *testing.T) {
	got := explainPrefix(DefaultOptions)
	want := "EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExplainPrefix_AnalyzeOnly(t *testing.T) {
	got := explainPrefix(Options{Analyze: true})
	want := "EXPLAIN (ANALYZE, FORMAT JSON) "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRun_RejectsExplainPrefix(t *testing.T) {
	_, err := Run(context.Background(), "postgres://localhost/db", "EXPLAIN SELECT 1", DefaultOptions)
	if err == nil {
		t.Fatal("expected error for input carrying an EXPLAIN prefix")
	}
	if !strings.Contains(err.Error(), "should not include EXPLAIN prefix") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_RequiresConnStr(t *testing.T) {
	_, err := Run(context.Background(), "", "SELECT 1", DefaultOptions)
	if err == nil {
		t.Fatal("expected error for empty connection string")
	}
	if !strings.Contains(err.Error(), "requires a database connection") {
		t.Errorf("unexpected error: %v", err)
	}
}
