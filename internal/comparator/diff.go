package comparator

import (
	"math"

	"github.com/pgplan-project/pgplan/internal/plan"
)

func (c *Comparator) diffNodes(old, new *plan.Node) NodeDelta {
	delta := NodeDelta{
		Relation: coalesce(old.Str("Relation Name"), new.Str("Relation Name")),
	}

	if old.NodeType != new.NodeType {
		delta.ChangeType = TypeChanged
		delta.OldNodeType = old.NodeType
		delta.NewNodeType = new.NodeType
		delta.NodeType = new.NodeType
	} else {
		delta.ChangeType = Modified
		delta.NodeType = old.NodeType
	}

	delta.OldCost = old.TotalCost
	delta.NewCost = new.TotalCost
	delta.CostDelta = new.TotalCost - old.TotalCost
	delta.CostPct = pctChange(old.TotalCost, new.TotalCost)
	delta.CostDir = c.direction(old.TotalCost, new.TotalCost, true)

	delta.OldTime = old.ActualTotalTime
	delta.NewTime = new.ActualTotalTime
	delta.TimeDelta = new.ActualTotalTime - old.ActualTotalTime
	delta.TimePct = pctChange(old.ActualTotalTime, new.ActualTotalTime)
	delta.TimeDir = c.direction(old.ActualTotalTime, new.ActualTotalTime, true)

	delta.OldRows = old.ActualRows
	delta.NewRows = new.ActualRows
	delta.RowsDelta = new.ActualRows - old.ActualRows
	delta.RowsPct = pctChange(float64(old.ActualRows), float64(new.ActualRows))
	delta.RowsDir = Unchanged

	delta.OldLoops = old.ActualLoops
	delta.NewLoops = new.ActualLoops

	delta.OldRowsRemovedByFilter = old.RowsRemovedByFilter
	delta.NewRowsRemovedByFilter = new.RowsRemovedByFilter

	delta.OldWorkersLaunched = old.WorkersLaunched
	delta.NewWorkersLaunched = new.WorkersLaunched
	delta.OldWorkersPlanned = old.WorkersPlanned
	delta.NewWorkersPlanned = new.WorkersPlanned

	delta.OldBufferHits = old.Buffers.Shared.HitBlocks
	delta.NewBufferHits = new.Buffers.Shared.HitBlocks
	delta.OldBufferReads = old.Buffers.Shared.ReadBlocks + old.Buffers.Temp.ReadBlocks
	delta.NewBufferReads = new.Buffers.Shared.ReadBlocks + new.Buffers.Temp.ReadBlocks
	delta.BufferDir = c.bufferDirection(old, new)

	delta.OldBuffers = old.Buffers
	delta.NewBuffers = new.Buffers

	delta.HasWAL = old.HasWAL || new.HasWAL
	delta.OldWAL = old.WAL
	delta.NewWAL = new.WAL

	delta.HasIOTimings = old.HasIOTimings || new.HasIOTimings
	delta.OldIOReadTime = old.IOReadTime
	delta.NewIOReadTime = new.IOReadTime
	delta.OldIOWriteTime = old.IOWriteTime
	delta.NewIOWriteTime = new.IOWriteTime

	delta.OldSortSpill = old.Sort != nil && old.Sort.SpaceType == "Disk"
	delta.NewSortSpill = new.Sort != nil && new.Sort.SpaceType == "Disk"

	delta.OldHashBatches = int(old.Int("Hash Batches"))
	delta.NewHashBatches = int(new.Int("Hash Batches"))

	delta.OldFilter = old.Str("Filter")
	delta.NewFilter = new.Str("Filter")
	delta.OldIndexCond = old.Str("Index Cond")
	delta.NewIndexCond = new.Str("Index Cond")
	delta.OldIndexName = old.Str("Index Name")
	delta.NewIndexName = new.Str("Index Name")

	if delta.ChangeType == Modified && !c.isSignificant(delta) {
		delta.ChangeType = NoChange
	}

	delta.Children = c.diffChildren(old.Plans, new.Plans)

	return delta
}

func (c *Comparator) diffChildren(oldKids, newKids []*plan.Node) []NodeDelta {
	var deltas []NodeDelta

	n := len(oldKids)
	if len(newKids) > n {
		n = len(newKids)
	}

	for i := 0; i < n; i++ {
		if i >= len(oldKids) {
			deltas = append(deltas, addedNode(newKids[i]))
			continue
		}
		if i >= len(newKids) {
			deltas = append(deltas, removedNode(oldKids[i]))
			continue
		}
		deltas = append(deltas, c.diffNodes(oldKids[i], newKids[i]))
	}

	return deltas
}

func addedNode(node *plan.Node) NodeDelta {
	delta := NodeDelta{
		ChangeType:     Added,
		NodeType:       node.NodeType,
		Relation:       node.Str("Relation Name"),
		NewCost:        node.TotalCost,
		NewTime:        node.ActualTotalTime,
		NewRows:        node.ActualRows,
		NewBuffers:     node.Buffers,
		HasWAL:         node.HasWAL,
		NewWAL:         node.WAL,
		HasIOTimings:   node.HasIOTimings,
		NewIOReadTime:  node.IOReadTime,
		NewIOWriteTime: node.IOWriteTime,
	}

	for _, child := range node.Plans {
		delta.Children = append(delta.Children, addedNode(child))
	}

	return delta
}

func removedNode(node *plan.Node) NodeDelta {
	delta := NodeDelta{
		ChangeType:     Removed,
		NodeType:       node.NodeType,
		Relation:       node.Str("Relation Name"),
		OldCost:        node.TotalCost,
		OldTime:        node.ActualTotalTime,
		OldRows:        node.ActualRows,
		OldBuffers:     node.Buffers,
		HasWAL:         node.HasWAL,
		OldWAL:         node.WAL,
		HasIOTimings:   node.HasIOTimings,
		OldIOReadTime:  node.IOReadTime,
		OldIOWriteTime: node.IOWriteTime,
	}

	for _, child := range node.Plans {
		delta.Children = append(delta.Children, removedNode(child))
	}

	return delta
}

func (c *Comparator) isSignificant(d NodeDelta) bool {
	if math.Abs(d.CostPct) > c.Threshold {
		return true
	}
	if math.Abs(d.TimePct) > c.Threshold {
		return true
	}
	if d.OldSortSpill != d.NewSortSpill {
		return true
	}
	if d.OldHashBatches != d.NewHashBatches {
		return true
	}
	if d.OldBufferReads != d.NewBufferReads {
		return true
	}
	if d.HasWAL && (d.OldWAL.Records != d.NewWAL.Records || d.OldWAL.Bytes != d.NewWAL.Bytes) {
		return true
	}
	return false
}

func (c *Comparator) direction(old, new float64, lowerPreference bool) Direction {
	if math.Abs(pctChange(old, new)) < c.Threshold {
		return Unchanged
	}
	if lowerPreference {
		if new < old {
			return Improved
		}
		return Regressed
	}
	if new > old {
		return Improved
	}
	return Regressed
}

func (c *Comparator) bufferDirection(old, new *plan.Node) Direction {
	oldTotal := float64(old.Buffers.Shared.ReadBlocks + old.Buffers.Temp.ReadBlocks + old.Buffers.Temp.WrittenBlocks)
	newTotal := float64(new.Buffers.Shared.ReadBlocks + new.Buffers.Temp.ReadBlocks + new.Buffers.Temp.WrittenBlocks)
	return c.direction(oldTotal, newTotal, true)
}

func pctChange(old, new float64) float64 {
	if old == 0 {
		if new == 0 {
			return 0
		}
		return 100
	}
	return ((new - old) / old) * 100
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
