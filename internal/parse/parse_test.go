package parse

import (
	"testing"
	"time"
)

func fixClockAndID(t *testing.T, id string, when time.Time) {
	t.Helper()
	origClock, origID := Clock, IDGenerator
	Clock = func() time.Time { return when }
	IDGenerator = func() string { return id }
	t.Cleanup(func() {
		Clock = origClock
		IDGenerator = origID
	})
}

func TestParseSource_JSON(t *testing.T) {
	fixClockAndID(t, "fixed-id", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	src := `{"Plan": {"Node Type": "Seq Scan", "Total Cost": 20.0, "Plan Rows": 1000, "Plan Width": 8}}`
	p, err := ParseSource(src, "my-plan", "SELECT * FROM users")
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	if p.ID != "fixed-id" || p.Name != "my-plan" {
		t.Errorf("ID/Name = %q/%q", p.ID, p.Name)
	}
	if p.Query != "SELECT * FROM users" {
		t.Errorf("Query = %q", p.Query)
	}
	if p.Content.Plan == nil || p.Content.Plan.NodeType != "Seq Scan" {
		t.Fatalf("expected Seq Scan root, got %+v", p.Content.Plan)
	}
	if p.Content.Plan.NodeID == 0 {
		t.Error("expected enrichment to assign a NodeID")
	}
}

func TestParseSource_YAML(t *testing.T) {
	fixClockAndID(t, "fixed-id", time.Now())

	src := "Plan:\n  Node Type: Result\n"
	p, err := ParseSource(src, "yaml-plan", "")
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	if p.Content.Plan == nil || p.Content.Plan.NodeType != "Result" {
		t.Fatalf("expected Result root, got %+v", p.Content.Plan)
	}
}

func TestParseSource_Text(t *testing.T) {
	fixClockAndID(t, "fixed-id", time.Now())

	src := "Seq Scan on users  (cost=0.00..20.00 rows=1000 width=8) (actual time=0.012..0.345 rows=950 loops=1)"
	p, err := ParseSource(src, "text-plan", "")
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	if p.Content.Plan == nil || p.Content.Plan.NodeType != "Seq Scan on users" {
		t.Fatalf("expected Seq Scan root, got %+v", p.Content.Plan)
	}
	if !p.IsAnalyze {
		t.Error("expected IsAnalyze = true when the node carries actual-time stats")
	}
}

func TestParseSource_TextParseFailurePropagates(t *testing.T) {
	fixClockAndID(t, "fixed-id", time.Now())

	_, err := ParseSource("not a plan at all", "bad-plan", "")
	if err == nil {
		t.Fatal("expected an error when no plan node can be parsed")
	}
}

func TestParseSource_JSONParseFailurePropagates(t *testing.T) {
	fixClockAndID(t, "fixed-id", time.Now())

	_, err := ParseSource(`{"Plan": `, "bad-json", "")
	if err == nil {
		t.Fatal("expected an error for truncated JSON input")
	}
}

func TestParseSource_RunsEnrichment(t *testing.T) {
	fixClockAndID(t, "fixed-id", time.Now())

	src := `{"Plan": {"Node Type": "Hash Join", "Startup Cost": 1.0, "Total Cost": 50.0, "Plan Rows": 100, "Plan Width": 16,
		"Plans": [
			{"Node Type": "Seq Scan on orders", "Startup Cost": 0.0, "Total Cost": 30.0, "Plan Rows": 500, "Plan Width": 8},
			{"Node Type": "Hash", "Startup Cost": 0.5, "Total Cost": 0.5, "Plan Rows": 40, "Plan Width": 8}
		]}}`
	p, err := ParseSource(src, "nested", "")
	if err != nil {
		t.Fatalf("ParseSource failed: %v", err)
	}
	if p.Content.Plan.NodeID != 1 {
		t.Errorf("root NodeID = %d, want 1", p.Content.Plan.NodeID)
	}
	if len(p.Content.Plan.Plans) != 2 {
		t.Fatalf("expected 2 children, got %d", len(p.Content.Plan.Plans))
	}
	if p.Content.Plan.Plans[0].NodeID != 2 || p.Content.Plan.Plans[1].NodeID != 3 {
		t.Errorf("child NodeIDs = %d, %d, want 2, 3", p.Content.Plan.Plans[0].NodeID, p.Content.Plan.Plans[1].NodeID)
	}
}

func TestCleanupSource_DelegatesToSourcePackage(t *testing.T) {
	cleaned := CleanupSource("QUERY PLAN\n-----------\n Seq Scan on users\n(1 row)\n")
	if cleaned == "" {
		t.Fatal("expected non-empty cleaned output")
	}
}

func TestDefaultID_FormatsClockTime(t *testing.T) {
	fixClockAndID(t, "", time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC))
	id := defaultID()
	want := "20260102T030405.123456789"
	if id != want {
		t.Errorf("defaultID() = %q, want %q", id, want)
	}
}
