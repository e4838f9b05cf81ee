// Package enrich implements the post-parse tree walk that turns a raw
// parsed plan into the normalized form consumers read: node IDs, exclusive
// cost/duration, planner estimate factors, parallel-worker propagation, CTE
// relocation, revised row counters, exclusive buffer/WAL counters, and the
// root's maxima.
package enrich

import "github.com/pgplan-project/pgplan/internal/plan"

// Enrich mutates content's tree in place and returns the CTE nodes removed
// from the main tree, plus whether the root reports actual rows (the
// Plan.IsAnalyze flag) and whether any descendant carries an "Output"
// attribute (Plan.IsVerbose).
func Enrich(content *plan.Content) (ctes []*plan.Node, isAnalyze, isVerbose bool) {
	if content.Plan == nil {
		return nil, false, false
	}

	nextID := 1
	ctes = walk(content.Plan, nil, &nextID)
	removeCTEChildren(content.Plan)

	isAnalyze = content.Plan.HasActuals
	isVerbose = anyHasOutput(content.Plan)

	computeMaxima(content)

	return ctes, isAnalyze, isVerbose
}

// walk performs the pre-order assignment / propagation pass and the
// post-order accumulation pass in a single recursive traversal, returning
// any CTE nodes discovered in this subtree (still attached to their
// parent's Plans at this point; removeCTEChildren strips them afterward).
func walk(node *plan.Node, parent *plan.Node, nextID *int) []*plan.Node {
	node.NodeID = *nextID
	*nextID++

	applyPlannerEstimate(node)
	propagateWorkers(node)

	var ctes []*plan.Node
	for _, child := range node.Plans {
		if isCTEChild(child) {
			ctes = append(ctes, child)
		}
		ctes = append(ctes, walk(child, node, nextID)...)
	}

	computeExclusiveDuration(node)
	computeExclusiveCost(node)
	computeRevisedRows(node)
	computeExclusiveBuffers(node)
	computeExclusiveWAL(node)

	return ctes
}

func isCTEChild(n *plan.Node) bool {
	return n.ParentRelationship == "InitPlan" && len(n.SubplanName) >= 4 && n.SubplanName[:4] == "CTE "
}

// applyPlannerEstimate computes planner_estimate_factor/direction (step 1).
func applyPlannerEstimate(n *plan.Node) {
	if !n.HasActuals {
		return
	}
	hi := n.ActualRows
	if n.PlanRows > hi {
		hi = n.PlanRows
	}
	if hi == 0 {
		// Both actual and plan rows are zero: the ratio is undefined.
		n.PlannerEstimateDirection = plan.DirectionNone
		return
	}

	lo := n.ActualRows
	if n.PlanRows < lo {
		lo = n.PlanRows
	}
	if lo < 1 {
		lo = 1
	}

	n.HasPlannerEstimate = true
	factor := float64(hi) / float64(lo)
	if factor < 1 {
		factor = 1
	}
	n.PlannerEstimateFactor = factor

	switch {
	case n.ActualRows > n.PlanRows:
		n.PlannerEstimateDirection = plan.DirectionUnder
	case n.ActualRows < n.PlanRows:
		n.PlannerEstimateDirection = plan.DirectionOver
	default:
		n.PlannerEstimateDirection = plan.DirectionNone
	}
}

// propagateWorkers pushes workers_planned_by_gather down through non-CTE,
// non-Init/SubPlan children. A node's own WorkersPlanned, even when
// explicitly 0, overrides whatever it inherited: 0 means "no parallelism",
// not "absent".
func propagateWorkers(n *plan.Node) {
	for _, child := range n.Plans {
		if child.ParentRelationship == "InitPlan" || child.ParentRelationship == "SubPlan" {
			continue
		}
		if n.HasWorkersPlanned {
			child.HasWorkersPlannedByGather = true
			child.WorkersPlannedByGather = n.WorkersPlanned
		} else if n.HasWorkersPlannedByGather {
			child.HasWorkersPlannedByGather = true
			child.WorkersPlannedByGather = n.WorkersPlannedByGather
		}
	}
}

// computeExclusiveDuration implements step 4: actual times are scaled by
// loops/workers before exclusive duration is derived, with InitPlan
// children excluded from the child-duration sum.
func computeExclusiveDuration(n *plan.Node) {
	if !n.HasActuals {
		return
	}
	workers := 1
	if n.HasWorkersPlannedByGather {
		workers = n.WorkersPlannedByGather + 1
	}
	if n.ActualLoops > 0 {
		n.ActualTotalTime = n.ActualTotalTime * float64(n.ActualLoops) / float64(workers)
		n.ActualStartupTime = n.ActualStartupTime * float64(n.ActualLoops) / float64(workers)
	}

	childSum := 0.0
	for _, child := range n.Plans {
		if child.ParentRelationship == "InitPlan" {
			continue
		}
		childSum += child.ExclusiveDuration
	}
	excl := n.ActualTotalTime - childSum
	if excl < 0 {
		excl = 0
	}
	n.ExclusiveDuration = excl
}

// computeExclusiveCost implements step 5.
func computeExclusiveCost(n *plan.Node) {
	excl := n.TotalCost
	for _, child := range n.Plans {
		if child.ParentRelationship == "InitPlan" {
			continue
		}
		excl -= child.TotalCost
	}
	if excl < 0 {
		excl = 0
	}
	n.ExclusiveCost = excl
}

// computeRevisedRows implements step 6: raw counters scaled by loops.
func computeRevisedRows(n *plan.Node) {
	loops := n.ActualLoops
	if loops < 1 {
		loops = 1
	}
	n.ActualRowsRevised = n.ActualRows * loops
	n.PlanRowsRevised = n.PlanRows * loops
	n.RowsRemovedByFilterRevised = n.RowsRemovedByFilter * loops
	n.RowsRemovedByJoinFilterRevised = n.RowsRemovedByJoinFilter * loops
}

// computeExclusiveBuffers implements step 7 for the three buffer classes.
func computeExclusiveBuffers(n *plan.Node) {
	n.ExclusiveBuffers = n.Buffers
	for _, child := range n.Plans {
		if child.ParentRelationship == "InitPlan" {
			continue
		}
		subtractCounters(&n.ExclusiveBuffers.Shared, child.Buffers.Shared)
		subtractCounters(&n.ExclusiveBuffers.Local, child.Buffers.Local)
		subtractCounters(&n.ExclusiveBuffers.Temp, child.Buffers.Temp)
	}
	clampCounters(&n.ExclusiveBuffers.Shared)
	clampCounters(&n.ExclusiveBuffers.Local)
	clampCounters(&n.ExclusiveBuffers.Temp)
}

func subtractCounters(dst *plan.BufferCounters, child plan.BufferCounters) {
	dst.HitBlocks -= child.HitBlocks
	dst.ReadBlocks -= child.ReadBlocks
	dst.DirtiedBlocks -= child.DirtiedBlocks
	dst.WrittenBlocks -= child.WrittenBlocks
}

func clampCounters(c *plan.BufferCounters) {
	if c.HitBlocks < 0 {
		c.HitBlocks = 0
	}
	if c.ReadBlocks < 0 {
		c.ReadBlocks = 0
	}
	if c.DirtiedBlocks < 0 {
		c.DirtiedBlocks = 0
	}
	if c.WrittenBlocks < 0 {
		c.WrittenBlocks = 0
	}
}

// computeExclusiveWAL implements step 7 for the WAL counters. I/O read and
// write times are not made exclusive; a node only carries its own totals.
func computeExclusiveWAL(n *plan.Node) {
	n.ExclusiveWAL = n.WAL
	for _, child := range n.Plans {
		if child.ParentRelationship == "InitPlan" {
			continue
		}
		n.ExclusiveWAL.Records -= child.WAL.Records
		n.ExclusiveWAL.Bytes -= child.WAL.Bytes
		n.ExclusiveWAL.FPI -= child.WAL.FPI
	}
	if n.ExclusiveWAL.Records < 0 {
		n.ExclusiveWAL.Records = 0
	}
	if n.ExclusiveWAL.Bytes < 0 {
		n.ExclusiveWAL.Bytes = 0
	}
	if n.ExclusiveWAL.FPI < 0 {
		n.ExclusiveWAL.FPI = 0
	}
}

// removeCTEChildren strips CTE nodes out of the main tree after the walk
// has recorded them, per the relocation invariant.
func removeCTEChildren(n *plan.Node) {
	kept := n.Plans[:0]
	for _, child := range n.Plans {
		if isCTEChild(child) {
			continue
		}
		kept = append(kept, child)
	}
	n.Plans = kept
	for _, child := range n.Plans {
		removeCTEChildren(child)
	}
}

func anyHasOutput(n *plan.Node) bool {
	if n.Has("Output") {
		return true
	}
	for _, child := range n.Plans {
		if anyHasOutput(child) {
			return true
		}
	}
	return false
}

// computeMaxima implements step 8, scanning the (now CTE-free) main tree.
func computeMaxima(content *plan.Content) {
	var maxShared, maxTemp, maxLocal int64
	var sawShared, sawTemp, sawLocal bool

	var scan func(n *plan.Node)
	scan = func(n *plan.Node) {
		if n.ActualRows > content.MaxRows {
			content.MaxRows = n.ActualRows
		}
		if n.ExclusiveCost > content.MaxCost {
			content.MaxCost = n.ExclusiveCost
		}
		if n.TotalCost > content.MaxTotalCost {
			content.MaxTotalCost = n.TotalCost
		}
		if n.ExclusiveDuration > content.MaxDuration {
			content.MaxDuration = n.ExclusiveDuration
		}

		shared := blockSum(n.ExclusiveBuffers.Shared)
		if shared > 0 {
			sawShared = true
		}
		if shared > maxShared {
			maxShared = shared
		}
		temp := n.ExclusiveBuffers.Temp.ReadBlocks + n.ExclusiveBuffers.Temp.WrittenBlocks
		if temp > 0 {
			sawTemp = true
		}
		if temp > maxTemp {
			maxTemp = temp
		}
		local := blockSum(n.ExclusiveBuffers.Local)
		if local > 0 {
			sawLocal = true
		}
		if local > maxLocal {
			maxLocal = local
		}

		for _, child := range n.Plans {
			scan(child)
		}
	}
	scan(content.Plan)

	if sawShared || sawTemp || sawLocal {
		mb := &plan.MaxBlocks{}
		if sawShared {
			mb.Shared = &maxShared
		}
		if sawTemp {
			mb.Temp = &maxTemp
		}
		if sawLocal {
			mb.Local = &maxLocal
		}
		content.MaxBlocks = mb
	}
}

func blockSum(c plan.BufferCounters) int64 {
	return c.HitBlocks + c.ReadBlocks + c.DirtiedBlocks + c.WrittenBlocks
}
