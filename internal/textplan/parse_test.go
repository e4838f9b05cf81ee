package textplan

import (
	"strings"
	"testing"
)

func TestParse_SimpleNode(t *testing.T) {
	src := "Seq Scan on users  (cost=0.00..20.00 rows=1000 width=8) (actual time=0.012..0.345 rows=950 loops=1)\n" +
		"  Filter: (active = true)\n" +
		"  Rows Removed by Filter: 50\n" +
		"Planning Time: 0.085 ms\n" +
		"Execution Time: 1.234 ms"

	content, query, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if query != "" {
		t.Errorf("query = %q, want empty (no seed, node seen immediately)", query)
	}

	root := content.Plan
	if root == nil {
		t.Fatal("expected a root node")
	}
	if root.NodeType != "Seq Scan on users" {
		t.Errorf("NodeType = %q", root.NodeType)
	}
	if root.TotalCost != 20.00 || root.PlanRows != 1000 || root.PlanWidth != 8 {
		t.Errorf("estimate fields wrong: %+v", root)
	}
	if !root.HasActuals || root.ActualRows != 950 || root.ActualLoops != 1 {
		t.Errorf("actuals wrong: %+v", root)
	}
	if root.Str("Filter") != "(active = true)" {
		t.Errorf("Filter = %q", root.Str("Filter"))
	}
	if root.RowsRemovedByFilter != 50 {
		t.Errorf("RowsRemovedByFilter = %d, want 50", root.RowsRemovedByFilter)
	}
	if content.Float("Planning Time") != 0.085 {
		t.Errorf("Planning Time = %v, want 0.085", content.Float("Planning Time"))
	}
	if content.Float("Execution Time") != 1.234 {
		t.Errorf("Execution Time = %v, want 1.234", content.Float("Execution Time"))
	}
}

func TestParse_TrailingTimingLinesAreNotTreatedAsNodes(t *testing.T) {
	src := "Result  (cost=0.00..0.01 rows=1 width=0) (actual time=0.001..0.001 rows=1 loops=1)\n" +
		"Planning Time: 0.085 ms\n" +
		"Execution Time: 1.234 ms"

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if content.Plan == nil || content.Plan.NodeType != "Result" {
		t.Fatalf("expected root node Result, got %+v", content.Plan)
	}
	if len(content.Plan.Plans) != 0 {
		t.Errorf("expected no children, got %d (Planning/Execution Time misparsed as nodes)", len(content.Plan.Plans))
	}
}

func TestParse_NestedChildren(t *testing.T) {
	src := strings.Join([]string{
		"Hash Join  (cost=1.00..50.00 rows=100 width=16) (actual time=0.500..10.000 rows=90 loops=1)",
		"  Hash Cond: (orders.user_id = users.id)",
		"  ->  Seq Scan on orders  (cost=0.00..30.00 rows=500 width=8) (actual time=0.010..5.000 rows=500 loops=1)",
		"  ->  Hash  (cost=0.50..0.50 rows=40 width=8) (actual time=0.200..0.200 rows=40 loops=1)",
		"        Buckets: 1024",
		"        ->  Seq Scan on users  (cost=0.00..0.40 rows=40 width=8) (actual time=0.010..0.100 rows=40 loops=1)",
	}, "\n")

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if root.NodeType != "Hash Join" {
		t.Fatalf("root NodeType = %q", root.NodeType)
	}
	if root.Str("Hash Cond") != "(orders.user_id = users.id)" {
		t.Errorf("Hash Cond = %q", root.Str("Hash Cond"))
	}
	if len(root.Plans) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Plans))
	}
	if root.Plans[0].NodeType != "Seq Scan on orders" {
		t.Errorf("first child = %q", root.Plans[0].NodeType)
	}
	hashNode := root.Plans[1]
	if hashNode.NodeType != "Hash" {
		t.Errorf("second child = %q", hashNode.NodeType)
	}
	if len(hashNode.Plans) != 1 || hashNode.Plans[0].NodeType != "Seq Scan on users" {
		t.Fatalf("expected Hash to have one Seq Scan child, got %+v", hashNode.Plans)
	}
}

func TestParse_SortMethod(t *testing.T) {
	src := "Sort  (cost=10.00..10.50 rows=200 width=8) (actual time=1.000..1.200 rows=200 loops=1)\n" +
		"  Sort Key: id\n" +
		"  Sort Method: quicksort  Memory: 25kB"

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if root.Sort == nil {
		t.Fatal("expected Sort to be set")
	}
	if root.Sort.Method != "quicksort" || root.Sort.SpaceType != "Memory" || root.Sort.SpaceUsedKB != 25 {
		t.Errorf("Sort = %+v", root.Sort)
	}
	if len(root.SortKey) != 1 || root.SortKey[0] != "id" {
		t.Errorf("SortKey = %v", root.SortKey)
	}
}

func TestParse_Buffers(t *testing.T) {
	src := "Seq Scan on users  (cost=0.00..20.00 rows=1000 width=8) (actual time=0.012..0.345 rows=950 loops=1)\n" +
		"  Buffers: shared hit=12 read=3, temp written=1"

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if root.Buffers.Shared.HitBlocks != 12 || root.Buffers.Shared.ReadBlocks != 3 {
		t.Errorf("shared buffers = %+v", root.Buffers.Shared)
	}
	if root.Buffers.Temp.WrittenBlocks != 1 {
		t.Errorf("temp buffers = %+v", root.Buffers.Temp)
	}
}

func TestParse_WorkerStats(t *testing.T) {
	src := "Gather  (cost=0.00..20.00 rows=1000 width=8) (actual time=0.012..0.345 rows=950 loops=1)\n" +
		"  Workers Planned: 2\n" +
		"  Workers Launched: 2\n" +
		"  Worker 0: actual time=0.100..0.400 rows=400 loops=1\n" +
		"  ->  Seq Scan on users  (cost=0.00..20.00 rows=500 width=8) (actual time=0.012..0.345 rows=475 loops=2)"

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if !root.HasWorkersPlanned || root.WorkersPlanned != 2 {
		t.Errorf("WorkersPlanned = %v/%d, want true/2", root.HasWorkersPlanned, root.WorkersPlanned)
	}
	if root.WorkersLaunched != 2 {
		t.Errorf("WorkersLaunched = %d, want 2", root.WorkersLaunched)
	}
	if len(root.Workers) != 1 {
		t.Fatalf("expected 1 worker, got %d", len(root.Workers))
	}
	w := root.Workers[0]
	if w.WorkerNumber != 0 || !w.HasActualRows || w.ActualRows != 400 {
		t.Errorf("worker = %+v", w)
	}
}

func TestParse_SubPlanNesting(t *testing.T) {
	src := strings.Join([]string{
		"Seq Scan on orders  (cost=0.00..20.00 rows=1000 width=8) (actual time=0.012..0.345 rows=950 loops=1)",
		"  Filter: (SubPlan 1)",
		"  SubPlan 1",
		"    ->  Seq Scan on users  (cost=0.00..1.00 rows=1 width=4) (actual time=0.001..0.001 rows=1 loops=950)",
	}, "\n")

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if len(root.Plans) != 1 {
		t.Fatalf("expected 1 SubPlan child, got %d", len(root.Plans))
	}
	sub := root.Plans[0]
	if sub.ParentRelationship != "SubPlan" {
		t.Errorf("ParentRelationship = %q, want SubPlan", sub.ParentRelationship)
	}
}

func TestParse_CTENesting(t *testing.T) {
	src := strings.Join([]string{
		"Limit  (cost=0.00..20.00 rows=10 width=8) (actual time=0.012..0.345 rows=10 loops=1)",
		"  CTE recent_orders",
		"    ->  Seq Scan on orders  (cost=0.00..10.00 rows=100 width=8) (actual time=0.001..0.100 rows=100 loops=1)",
	}, "\n")

	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if len(root.Plans) != 1 {
		t.Fatalf("expected 1 CTE child, got %d", len(root.Plans))
	}
	cte := root.Plans[0]
	if cte.SubplanName != "CTE recent_orders" {
		t.Errorf("SubplanName = %q", cte.SubplanName)
	}
}

func TestParse_SeedQueryAccumulatesLeadingLines(t *testing.T) {
	src := "SELECT * FROM users WHERE active;\n" +
		" Seq Scan on users  (cost=0.00..20.00 rows=1000 width=8)"

	content, query, err := Parse(src, "SELECT * FROM users WHERE active;")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if content.Plan == nil || content.Plan.NodeType != "Seq Scan on users" {
		t.Fatalf("expected Seq Scan root, got %+v", content.Plan)
	}
	if !strings.Contains(query, "SELECT * FROM users WHERE active;") {
		t.Errorf("query = %q, want to contain seed query", query)
	}
}

func TestParse_NoNodeFails(t *testing.T) {
	_, _, err := Parse("not a plan at all", "")
	if err == nil {
		t.Fatal("expected an error when no plan node is found")
	}
}

func TestParse_NeverExecuted(t *testing.T) {
	src := "Seq Scan on users  (cost=0.00..20.00 rows=1000 width=8) (never executed)"
	content, _, err := Parse(src, "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := content.Plan
	if !root.NeverExecuted {
		t.Error("expected NeverExecuted = true")
	}
	if root.ActualRows != 0 || root.ActualTotalTime != 0 {
		t.Errorf("expected zeroed actuals for never-executed node, got %+v", root)
	}
}
