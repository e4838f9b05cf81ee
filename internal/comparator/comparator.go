package comparator

import (
	"github.com/pgplan-project/pgplan/internal/plan"
)

type Comparator struct {
	Threshold float64
}

func (c *Comparator) Compare(old, new *plan.Plan) ComparisonResult {
	rootDelta := c.diffNodes(old.Content.Plan, new.Content.Plan)

	summary := Summary{
		OldTotalCost: old.Content.Plan.TotalCost,
		NewTotalCost: new.Content.Plan.TotalCost,
		CostDelta:    new.Content.Plan.TotalCost - old.Content.Plan.TotalCost,
		CostPct:      pctChange(old.Content.Plan.TotalCost, new.Content.Plan.TotalCost),
		CostDir:      c.direction(old.Content.Plan.TotalCost, new.Content.Plan.TotalCost, true),

		OldExecutionTime: old.Content.Float("Execution Time"),
		NewExecutionTime: new.Content.Float("Execution Time"),
		OldPlanningTime:  old.Content.Float("Planning Time"),
		NewPlanningTime:  new.Content.Float("Planning Time"),

		OldTotalReads: blockSum(old.Content.Plan.Buffers.Shared) + old.Content.Plan.Buffers.Temp.ReadBlocks,
		NewTotalReads: blockSum(new.Content.Plan.Buffers.Shared) + new.Content.Plan.Buffers.Temp.ReadBlocks,
		OldTotalHits:  old.Content.Plan.Buffers.Shared.HitBlocks,
		NewTotalHits:  new.Content.Plan.Buffers.Shared.HitBlocks,

		OldTotalWALBytes: old.Content.Plan.WAL.Bytes,
		NewTotalWALBytes: new.Content.Plan.WAL.Bytes,

		OldIOReadTime:  old.Content.Plan.IOReadTime,
		NewIOReadTime:  new.Content.Plan.IOReadTime,
		OldIOWriteTime: old.Content.Plan.IOWriteTime,
		NewIOWriteTime: new.Content.Plan.IOWriteTime,
	}
	summary.TimeDelta = summary.NewExecutionTime - summary.OldExecutionTime
	summary.TimePct = pctChange(summary.OldExecutionTime, summary.NewExecutionTime)
	summary.TimeDir = c.direction(summary.OldExecutionTime, summary.NewExecutionTime, true)
	summary.PlanningDir = c.direction(summary.OldPlanningTime, summary.NewPlanningTime, true)
	summary.Verdict = verdict(summary.CostDir, summary.TimeDir)

	countChanges(&rootDelta, &summary)

	return ComparisonResult{
		Deltas:  []NodeDelta{rootDelta},
		Summary: summary,
	}
}

func verdict(costDir, timeDir Direction) string {
	switch {
	case costDir == Improved && timeDir == Improved:
		return "faster and cheaper"
	case costDir == Regressed && timeDir == Regressed:
		return "slower and more expensive"
	case costDir == Unchanged && timeDir == Unchanged:
		return "no significant change"
	case costDir == Improved || timeDir == Improved:
		return "mixed: some improvement"
	case costDir == Regressed || timeDir == Regressed:
		return "mixed: some regression"
	default:
		return "no significant change"
	}
}

func blockSum(c plan.BufferCounters) int64 {
	return c.HitBlocks + c.ReadBlocks
}

func countChanges(delta *NodeDelta, summary *Summary) {
	switch delta.ChangeType {
	case Added:
		summary.NodesAdded++
	case Removed:
		summary.NodesRemoved++
	case Modified:
		summary.NodesModified++
	case TypeChanged:
		summary.NodesTypeChanged++
	}

	for i := range delta.Children {
		countChanges(&delta.Children[i], summary)
	}
}
