package analyzer

import (
	"fmt"
	"strings"

	"github.com/pgplan-project/pgplan/internal/plan"
)

const (
	MinRowsForSeqScanWarning  = 1000
	MinRowsForCriticalScan    = 100000
	MinRowsForCriticalSeqScan = 1000000
	MinRowsForLowSelectivity  = 10000

	FilterRemovalWarningPct  = 50.0
	FilterRemovalCriticalPct = 95.0
	FilterRemovalCapPct      = 99.99
	RecheckWarningPct        = 50.0
	RecheckCriticalPct       = 90.0
	ReadBlocksCriticalPct    = 50.0

	NestedLoopWarningLoops   = 1000
	NestedLoopCriticalLoops  = 10000
	MaterializeWarningLoops  = 100
	MaterializeCriticalLoops = 10000

	MinReadBlocksForLowSelect = 1000

	HashBatchesCritical       = 8
	JoinFilterRemovalWarning  = 10000
	JoinFilterRemovalCritical = 1000000

	EstimateMismatchRatio = 3.0
)

// childIdx is the node's index within parent.Plans (-1 for root).
type Rule func(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding

var defaultRules = []Rule{
	checkIndexScanFilterInefficiency,
	checkSeqScanInJoin,
	checkSeqScanStandalone,
	checkBitmapHeapRecheck,
	checkNestedLoopHighLoops,
	checkSortSpill,
	checkHashSpill,
	checkTempBlocks,
	checkWorkerMismatch,
	checkLargeJoinFilterRemoval,
	checkMaterializeHighLoops,
	checkRedundantSort,
	checkIndexScanLowSelectivity,
}

func checkIndexScanFilterInefficiency(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Index Scan" && node.NodeType != "Index Only Scan" {
		return nil
	}
	filter := node.Str("Filter")
	if filter == "" || node.RowsRemovedByFilter == 0 {
		return nil
	}

	total := node.ActualRows + node.RowsRemovedByFilter
	if total == 0 {
		return nil
	}
	removedPct := float64(node.RowsRemovedByFilter) / float64(total) * 100

	if removedPct < FilterRemovalWarningPct {
		return nil
	}

	if removedPct > FilterRemovalCapPct && node.ActualRows > 0 {
		removedPct = FilterRemovalCapPct
	}

	severity := Warning
	if removedPct > FilterRemovalCriticalPct {
		severity = Critical
	}

	relation := node.Str("Relation Name")
	indexCond := node.Str("Index Cond")
	indexName := node.Str("Index Name")

	missingCols := ConditionColumnsNotIn(filter, indexCond)
	indexCols := ExtractConditionColumns(indexCond)

	desc := fmt.Sprintf("%s on %s using %s filters out %.2f%% of rows (%d of %d)",
		node.NodeType, relation, indexName,
		removedPct, node.RowsRemovedByFilter, total)

	var suggestion string
	if len(missingCols) > 0 && len(indexCols) > 0 {
		literal := ExtractLiteralValue(filter)
		compositeCols := strings.Join(append(indexCols, missingCols...), ", ")
		suggestion = fmt.Sprintf("Column `%s` in filter is not in index; consider composite index on (%s)",
			strings.Join(missingCols, ", "), compositeCols)
		if literal != "" && len(missingCols) == 1 {
			suggestion += fmt.Sprintf(" or partial index WHERE %s = '%s'", missingCols[0], literal)
		}
	} else {
		suggestion = fmt.Sprintf("Add an index on %s covering the filter condition", relation)
	}

	return []Finding{{
		Severity:    severity,
		NodeType:    node.NodeType,
		Relation:    relation,
		Description: desc,
		Suggestion:  suggestion,
	}}
}

func checkSeqScanInJoin(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if parent == nil {
		return nil
	}
	if !isJoinNode(parent) {
		return nil
	}
	if node.NodeType != "Seq Scan" {
		return nil
	}

	rows := node.ActualRows
	if rows == 0 {
		rows = node.PlanRows
	}
	if rows < MinRowsForSeqScanWarning {
		return nil
	}

	siblingRows := findSiblingRows(childIdx, parent)
	if siblingRows <= 0 || siblingRows >= rows/10 {
		return nil
	}

	severity := Warning
	if rows > MinRowsForCriticalSeqScan {
		severity = Critical
	}

	relation := node.Str("Relation Name")
	joinCol := extractJoinColumnForTable(parent, relation, node.Str("Alias"))

	desc := fmt.Sprintf("Seq Scan on %s scans %d rows to join against %d rows",
		relation, rows, siblingRows)

	siblingSource := findSiblingSource(childIdx, parent)
	if siblingSource != "" {
		desc += fmt.Sprintf(" from CTE %s", siblingSource)
	}

	suggestion := "Consider index on join column to enable index lookup instead of full scan"
	if joinCol != "" {
		joinCond := parent.Str("Hash Cond")
		if joinCond == "" {
			joinCond = parent.Str("Merge Cond")
		}
		if strings.Contains(strings.ToLower(joinCond), "lower(") {
			suggestion = fmt.Sprintf("Consider index on lower(%s) to enable index lookup instead of full scan", joinCol)
		} else {
			suggestion = fmt.Sprintf("Consider index on %s to enable index lookup instead of full scan", joinCol)
		}
	}

	return []Finding{{
		Severity:    severity,
		NodeType:    node.NodeType,
		Relation:    relation,
		Description: desc,
		Suggestion:  suggestion,
	}}
}

func checkSeqScanStandalone(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Seq Scan" {
		return nil
	}
	filter := node.Str("Filter")
	if filter == "" {
		return nil
	}
	if parent != nil && isJoinNode(parent) {
		return nil
	}
	if node.RowsRemovedByFilter == 0 {
		return nil
	}

	rows := node.ActualRows
	if rows == 0 {
		rows = node.PlanRows
	}
	if rows < MinRowsForSeqScanWarning {
		return nil
	}

	total := rows + node.RowsRemovedByFilter
	removedPct := float64(node.RowsRemovedByFilter) / float64(total) * 100

	if removedPct < FilterRemovalWarningPct {
		return nil
	}

	if removedPct > FilterRemovalCapPct && node.ActualRows > 0 {
		removedPct = FilterRemovalCapPct
	}

	severity := Warning
	if total > MinRowsForCriticalScan {
		severity = Critical
	}

	relation := node.Str("Relation Name")
	filterCols := ExtractConditionColumns(filter)

	desc := fmt.Sprintf("Seq Scan on %s filters out %.2f%% of rows (%d of %d)",
		relation, removedPct, node.RowsRemovedByFilter, total)

	suggestion := fmt.Sprintf("Add an index on %s covering the filter condition", relation)
	if len(filterCols) > 0 {
		literal := ExtractLiteralValue(filter)
		suggestion = fmt.Sprintf("Consider index on %s(%s)", relation, strings.Join(filterCols, ", "))
		if literal != "" && len(filterCols) == 1 {
			suggestion += fmt.Sprintf(" or partial index WHERE %s = '%s'", filterCols[0], literal)
		}
	}

	return []Finding{{
		Severity:    severity,
		NodeType:    node.NodeType,
		Relation:    relation,
		Description: desc,
		Suggestion:  suggestion,
	}}
}

func checkBitmapHeapRecheck(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Bitmap Heap Scan" {
		return nil
	}
	recheck := node.Int("Rows Removed by Index Recheck")
	if recheck == 0 {
		return nil
	}

	total := node.ActualRows + recheck
	recheckPct := float64(recheck) / float64(total) * 100

	if recheckPct < RecheckWarningPct {
		return nil
	}

	severity := Warning
	if recheckPct >= RecheckCriticalPct {
		severity = Critical
	}

	relation := node.Str("Relation Name")
	return []Finding{{
		Severity: severity,
		NodeType: node.NodeType,
		Relation: relation,
		Description: fmt.Sprintf("Bitmap Heap Scan on %s lost %.1f%% of rows to recheck (%d of %d) due to lossy bitmap pages",
			relation, recheckPct, recheck, total),
		Suggestion: "Increase work_mem to reduce lossy pages, or consider a more selective index",
	}}
}

func checkNestedLoopHighLoops(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Nested Loop" {
		return nil
	}
	if len(node.Plans) < 2 {
		return nil
	}

	inner := node.Plans[1]
	if inner.ActualLoops < NestedLoopWarningLoops {
		return nil
	}

	severity := Warning
	if inner.ActualLoops > NestedLoopCriticalLoops {
		severity = Critical
	}

	innerTime := inner.ActualTotalTime * float64(inner.ActualLoops)
	desc := fmt.Sprintf("Nested Loop executes %s %d times (%.1fms total)",
		innerNodeLabel(inner), inner.ActualLoops, innerTime)

	suggestion := "Consider Hash Join or Merge Join; verify indexes exist on inner side join columns"
	if inner.NodeType == "Index Scan" && inner.Str("Filter") != "" {
		suggestion += fmt.Sprintf("; filter on %s may warrant a more selective index", inner.Str("Relation Name"))
	}

	return []Finding{{
		Severity:    severity,
		NodeType:    node.NodeType,
		Relation:    inner.Str("Relation Name"),
		Description: desc,
		Suggestion:  suggestion,
	}}
}

func checkSortSpill(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.Sort == nil || node.Sort.SpaceType != "Disk" {
		return nil
	}
	return []Finding{{
		Severity:    Critical,
		NodeType:    node.NodeType,
		Relation:    node.Str("Relation Name"),
		Description: fmt.Sprintf("Sort spilled to disk (%dkB) on %s", node.Sort.SpaceUsedKB, nodeLabel(node)),
		Suggestion:  fmt.Sprintf("Increase work_mem (currently needs >%dkB) or reduce data before sorting", node.Sort.SpaceUsedKB),
	}}
}

func checkHashSpill(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	batches := node.Int("Hash Batches")
	if batches <= 1 {
		return nil
	}
	severity := Warning
	if batches > HashBatchesCritical {
		severity = Critical
	}
	return []Finding{{
		Severity:    severity,
		NodeType:    node.NodeType,
		Relation:    node.Str("Relation Name"),
		Description: fmt.Sprintf("Hash used %d batches with %dkB memory on %s", batches, node.Int("Peak Memory Usage"), nodeLabel(node)),
		Suggestion:  "Increase work_mem to fit the hash table in memory",
	}}
}

func checkTempBlocks(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	total := node.Buffers.Temp.ReadBlocks + node.Buffers.Temp.WrittenBlocks
	if total == 0 {
		return nil
	}
	sizeMB := float64(total*8) / 1024
	return []Finding{{
		Severity:    Warning,
		NodeType:    node.NodeType,
		Relation:    node.Str("Relation Name"),
		Description: fmt.Sprintf("Temp I/O: %d blocks (%.1f MB) on %s", total, sizeMB, nodeLabel(node)),
		Suggestion:  "Increase work_mem or restructure query to reduce intermediate result size",
	}}
}

func checkWorkerMismatch(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.WorkersPlanned == 0 || node.WorkersLaunched >= node.WorkersPlanned {
		return nil
	}
	return []Finding{{
		Severity:    Warning,
		NodeType:    node.NodeType,
		Relation:    node.Str("Relation Name"),
		Description: fmt.Sprintf("Only %d of %d planned parallel workers launched on %s", node.WorkersLaunched, node.WorkersPlanned, nodeLabel(node)),
		Suggestion:  "Check max_parallel_workers and max_parallel_workers_per_gather settings",
	}}
}

func checkLargeJoinFilterRemoval(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.RowsRemovedByJoinFilter < JoinFilterRemovalWarning {
		return nil
	}
	severity := Warning
	if node.RowsRemovedByJoinFilter > JoinFilterRemovalCritical {
		severity = Critical
	}
	return []Finding{{
		Severity:    severity,
		NodeType:    node.NodeType,
		Relation:    node.Str("Relation Name"),
		Description: fmt.Sprintf("Join filter removed %d rows on %s", node.RowsRemovedByJoinFilter, nodeLabel(node)),
		Suggestion:  "Move filter condition into the join clause or add an index to reduce join input",
	}}
}

func checkMaterializeHighLoops(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Materialize" {
		return nil
	}
	if node.ActualLoops < MaterializeWarningLoops {
		return nil
	}

	severity := Warning
	if node.ActualLoops > MaterializeCriticalLoops {
		severity = Critical
	}

	totalTime := node.ActualTotalTime * float64(node.ActualLoops)

	return []Finding{{
		Severity: severity,
		NodeType: node.NodeType,
		Relation: node.Str("Relation Name"),
		Description: fmt.Sprintf("Materialize scanned %d times (%.1fms total, %d rows per scan)",
			node.ActualLoops, totalTime, node.ActualRows),
		Suggestion: "Planner couldn't find a better strategy; consider restructuring the query to use a Hash Join or CTE",
	}}
}

func checkRedundantSort(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Sort" {
		return nil
	}
	if len(node.Plans) == 0 || len(node.SortKey) == 0 {
		return nil
	}

	child := node.Plans[0]

	if child.NodeType != "Index Scan" && child.NodeType != "Index Only Scan" {
		return nil
	}
	indexName := child.Str("Index Name")
	if indexName == "" {
		return nil
	}

	// Multi-column sorts are harder to verify as redundant.
	if len(node.SortKey) > 1 {
		return nil
	}

	sortCol := extractColumnFromSortKey(node.SortKey[0])
	indexCols := ExtractConditionColumns(child.Str("Index Cond"))

	if sortCol == "" || len(indexCols) == 0 {
		return nil
	}

	isRedundant := false
	for _, ic := range indexCols {
		if strings.EqualFold(sortCol, ic) {
			isRedundant = true
			break
		}
	}

	if !isRedundant {
		return nil
	}

	return []Finding{{
		Severity: Info,
		NodeType: node.NodeType,
		Relation: child.Str("Relation Name"),
		Description: fmt.Sprintf("Sort on %s may be redundant — child Index Scan using %s already provides order on %s",
			sortCol, indexName, sortCol),
		Suggestion: "Verify index column order matches sort requirements; PG may be able to skip this sort with correct index ordering",
	}}
}

func checkIndexScanLowSelectivity(node *plan.Node, parent *plan.Node, childIdx int, ctx *PlanContext) []Finding {
	if node.NodeType != "Index Scan" && node.NodeType != "Index Only Scan" {
		return nil
	}
	if node.ActualRows < MinRowsForLowSelectivity {
		return nil
	}

	totalBlocks := node.Buffers.Shared.HitBlocks + node.Buffers.Shared.ReadBlocks
	if totalBlocks == 0 {
		return nil
	}

	if node.Buffers.Shared.ReadBlocks < MinReadBlocksForLowSelect {
		return nil
	}

	readPct := float64(node.Buffers.Shared.ReadBlocks) / float64(totalBlocks) * 100
	if readPct < ReadBlocksCriticalPct {
		return nil
	}

	// checkIndexScanFilterInefficiency already handles a present filter.
	if node.Str("Filter") != "" && node.RowsRemovedByFilter > 0 {
		return nil
	}

	relation := node.Str("Relation Name")
	return []Finding{{
		Severity: Info,
		NodeType: node.NodeType,
		Relation: relation,
		Description: fmt.Sprintf("%s on %s using %s returned %d rows reading %d blocks (%d%% from disk)",
			node.NodeType, relation, node.Str("Index Name"),
			node.ActualRows, totalBlocks, int(readPct)),
		Suggestion: "Index has low selectivity for this query; a Seq Scan may be cheaper, or the query may benefit from a more selective condition",
	}}
}

func ConsolidateEstimateMismatches(root *plan.Node, ctx *PlanContext) []Finding {
	var findings []Finding

	for _, cte := range ctx.CTEs {
		if cte.ActualRows == 0 || cte.EstimatedRows == 0 {
			continue
		}

		ratio := float64(cte.EstimatedRows) / float64(cte.ActualRows)
		if ratio < 1 {
			ratio = 1 / ratio
		}
		if ratio < EstimateMismatchRatio {
			continue
		}

		affected := collectInflatedFromCTE(cte, ctx)
		if len(affected) == 0 {
			continue
		}

		affected = dedup(affected)

		direction := "inflated"
		if cte.EstimatedRows < cte.ActualRows {
			direction = "deflated"
		}

		var sourceRelations []string
		collectSourceRelations(cte.Node, &sourceRelations)

		desc := fmt.Sprintf("Row estimates %s downstream of CTE %s (estimated %d, actual %d)",
			direction, cte.Name, cte.EstimatedRows, cte.ActualRows)

		suggestion := fmt.Sprintf("Affects %s estimates", strings.Join(affected, ", "))
		if len(sourceRelations) > 0 {
			suggestion += fmt.Sprintf("; run ANALYZE on %s", strings.Join(sourceRelations, " and "))
		}

		findings = append(findings, Finding{
			Severity:    Info,
			NodeType:    "CTE",
			Relation:    cte.Name,
			Description: desc,
			Suggestion:  suggestion,
		})
	}

	return findings
}

// collectInflatedFromCTE only blames nodes that sit between the main tree's
// root and a consumer of cte (its ancestors), not unrelated branches.
func collectInflatedFromCTE(cte *CTEInfo, ctx *PlanContext) []string {
	var consumers []*plan.Node
	for _, ref := range ctx.AllNodes {
		if ref.Node.Str("CTE Name") == cte.Name {
			consumers = append(consumers, ref.Node)
		}
	}

	if len(consumers) == 0 {
		return nil
	}

	var affected []string
	seen := make(map[*plan.Node]bool)
	for _, ref := range ctx.AllNodes {
		if seen[ref.Node] {
			continue
		}
		isAncestor := false
		for _, consumer := range consumers {
			if nodeContains(ref.Node, consumer) && ref.Node != consumer {
				isAncestor = true
				break
			}
		}
		if !isAncestor {
			continue
		}
		seen[ref.Node] = true
		node := ref.Node
		if node.PlanRows > 0 && node.ActualRows > 0 && node.ActualLoops > 0 {
			ratio := float64(node.PlanRows) / float64(node.ActualRows)
			if ratio < 1 {
				ratio = 1 / ratio
			}
			if ratio > EstimateMismatchRatio {
				affected = append(affected, node.NodeType)
			}
		}
	}
	return affected
}

func nodeContains(node, target *plan.Node) bool {
	if node == target {
		return true
	}
	for _, child := range node.Plans {
		if nodeContains(child, target) {
			return true
		}
	}
	return false
}

func collectSourceRelations(node *plan.Node, relations *[]string) {
	if rel := node.Str("Relation Name"); rel != "" {
		*relations = append(*relations, rel)
	}
	for _, child := range node.Plans {
		collectSourceRelations(child, relations)
	}
}

func isJoinNode(node *plan.Node) bool {
	switch node.NodeType {
	case "Hash Join", "Merge Join", "Nested Loop":
		return true
	}
	return false
}

func findSiblingRows(childIdx int, parent *plan.Node) int64 {
	for i := range parent.Plans {
		if i != childIdx {
			actual := parent.Plans[i].ActualRows
			if actual == 0 {
				actual = parent.Plans[i].PlanRows
			}
			return actual
		}
	}
	return -1
}

func findSiblingSource(childIdx int, parent *plan.Node) string {
	for i := range parent.Plans {
		if i != childIdx {
			return findCTEName(parent.Plans[i])
		}
	}
	return ""
}

func findCTEName(node *plan.Node) string {
	if name := node.Str("CTE Name"); name != "" {
		return name
	}
	for _, child := range node.Plans {
		if name := findCTEName(child); name != "" {
			return name
		}
	}
	return ""
}

func extractJoinColumnForTable(joinNode *plan.Node, relation, alias string) string {
	cond := joinNode.Str("Hash Cond")
	if cond == "" {
		cond = joinNode.Str("Merge Cond")
	}
	if cond == "" {
		return ""
	}

	for _, prefix := range []string{alias, relation} {
		if prefix == "" {
			continue
		}
		cols := ExtractConditionColumns(cond)
		condLower := strings.ToLower(cond)
		for _, col := range cols {
			if strings.Contains(condLower, strings.ToLower(prefix)+"."+strings.ToLower(col)) {
				return col
			}
		}
	}
	return ""
}

func nodeLabel(node *plan.Node) string {
	relation := node.Str("Relation Name")
	if relation != "" {
		alias := node.Str("Alias")
		if alias != "" && alias != relation {
			return fmt.Sprintf("%s on %s (%s)", node.NodeType, relation, alias)
		}
		return fmt.Sprintf("%s on %s", node.NodeType, relation)
	}
	return node.NodeType
}

func innerNodeLabel(node *plan.Node) string {
	label := node.NodeType
	if relation := node.Str("Relation Name"); relation != "" {
		label += " on " + relation
	}
	if indexName := node.Str("Index Name"); indexName != "" {
		label += " using " + indexName
	}
	return label
}

func extractColumnFromSortKey(sortKey string) string {
	s := strings.TrimSpace(sortKey)
	for _, suffix := range []string{" DESC", " ASC", " NULLS FIRST", " NULLS LAST"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.TrimSpace(s)

	if idx := strings.LastIndex(s, "."); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

func dedup(items []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
