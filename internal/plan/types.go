// Package plan defines the normalized, tree-structured representation of a
// PostgreSQL EXPLAIN plan produced by the parsers in internal/textplan,
// internal/jsonstream and internal/yamlplan, and enriched by internal/enrich.
//
// Only the fields called out by name below (cost/row estimates, actuals,
// derived metrics, sort/buffer/WAL/JIT sub-blocks, workers, children) are
// promoted to named struct fields. Everything else PostgreSQL's EXPLAIN
// emits — Relation Name, Filter, Index Cond, Hash Cond, Group Key, and so
// on — lives in the node's Extras bag and is reached by its well-known
// label, via the accessor methods below.
package plan

import "time"

// EstimateDirection classifies how a node's actual row count compares to the
// planner's estimate, set during enrichment.
type EstimateDirection string

const (
	DirectionNone  EstimateDirection = "none"
	DirectionOver  EstimateDirection = "over"
	DirectionUnder EstimateDirection = "under"
)

// BufferCounters holds one buffer class's four counters. Not every field
// applies to every class in practice (Temp blocks are never "dirtied") but
// the model keeps all four uniformly so enrichment's exclusive-counter loop
// can stay generic across classes.
type BufferCounters struct {
	HitBlocks     int64
	ReadBlocks    int64
	DirtiedBlocks int64
	WrittenBlocks int64
}

// Buffers aggregates the three buffer classes a node can report.
type Buffers struct {
	Shared BufferCounters
	Local  BufferCounters
	Temp   BufferCounters
}

// WAL holds the WAL Records/Bytes/FPI counters emitted under BUFFERS, WAL.
type WAL struct {
	Records int64
	Bytes   int64
	FPI     int64
}

// Sort describes a node's "Sort Method: ... (Memory|Disk): NkB" block.
type Sort struct {
	Method      string
	SpaceUsedKB int64
	SpaceType   string // "Memory" or "Disk"
}

// SortGroups describes a "Full-sort Groups" / "Pre-sorted Groups" block,
// emitted for incremental-sort nodes.
type SortGroups struct {
	GroupCount int64
	Methods    []string
	AvgKB      float64
	PeakKB     float64
}

// JIT holds the JIT compilation sub-object that can appear on the plan root
// or be attached to a worker, depending on where the source text places it.
type JIT struct {
	Options map[string]Value
	Timing  map[string]float64
}

// Worker is one parallel worker's per-node statistics, merged across
// duplicate "Worker" keys by the tolerant JSON path (internal/jsonstream).
type Worker struct {
	WorkerNumber int

	HasActualStartupTime bool
	ActualStartupTime    float64
	HasActualTotalTime   bool
	ActualTotalTime      float64
	HasActualRows        bool
	ActualRows           int64
	HasActualLoops       bool
	ActualLoops          int64

	Sort *Sort
	JIT  *JIT

	Extras map[string]Value
}

// Str returns a well-known label's string value from the worker's Extras
// bag, or "" if absent.
func (w *Worker) Str(label string) string { return valueString(w.Extras, label) }

// Node is one operator in the plan tree.
type Node struct {
	NodeType           string
	ParentRelationship string
	SubplanName        string

	// Estimate block.
	HasEstimate bool
	StartupCost float64
	TotalCost   float64
	PlanRows    int64
	PlanWidth   int

	// Actuals block.
	HasActuals        bool
	ActualStartupTime float64
	ActualTotalTime   float64
	ActualRows        int64
	ActualLoops       int64
	NeverExecuted     bool

	// Derived during enrichment.
	NodeID                    int
	ExclusiveCost             float64
	ExclusiveDuration         float64
	HasPlannerEstimate        bool
	PlannerEstimateFactor     float64
	PlannerEstimateDirection  EstimateDirection
	HasWorkersPlannedByGather bool
	WorkersPlannedByGather    int

	ActualRowsRevised              int64
	PlanRowsRevised                int64
	RowsRemovedByFilterRevised     int64
	RowsRemovedByJoinFilterRevised int64

	RowsRemovedByFilter     int64
	RowsRemovedByJoinFilter int64

	HasWorkersPlanned bool
	WorkersPlanned    int
	WorkersLaunched   int

	Sort            *Sort
	FullSortGroups  *SortGroups
	PreSortedGroups *SortGroups
	SortKey         []string
	PresortedKey    []string

	Buffers          Buffers
	ExclusiveBuffers Buffers
	HasWAL           bool
	WAL              WAL
	ExclusiveWAL     WAL
	HasIOTimings     bool
	IOReadTime       float64
	IOWriteTime      float64

	JIT *JIT

	Workers []*Worker
	Plans   []*Node

	// Extras carries every EXPLAIN attribute not promoted to a named field
	// above: Relation Name, Schema, Alias, Index Name, Filter, Index Cond,
	// Join Type, Hash/Merge Cond, Group Key, Output, Hash Buckets/Batches,
	// Rows Removed by Index Recheck, and anything the format evolves to add.
	Extras map[string]Value
}

// Str returns a well-known label's string value, or "" if absent or not a
// string-shaped value.
func (n *Node) Str(label string) string { return valueString(n.Extras, label) }

// Int returns a well-known label's integer value, or 0 if absent.
func (n *Node) Int(label string) int64 { return valueInt(n.Extras, label) }

// Float returns a well-known label's float value, or 0 if absent.
func (n *Node) Float(label string) float64 { return valueFloat(n.Extras, label) }

// Bool returns a well-known label's boolean value, or false if absent.
func (n *Node) Bool(label string) bool { return valueBool(n.Extras, label) }

// List returns a well-known label's string-list value, or nil if absent.
func (n *Node) List(label string) []string { return valueList(n.Extras, label) }

// Has reports whether label is present in the node's Extras bag.
func (n *Node) Has(label string) bool {
	_, ok := n.Extras[label]
	return ok
}

// Trigger is a post-execution trigger report ("Trigger foo: time=1.2 calls=3").
type Trigger struct {
	Name  string
	Time  float64
	Calls int64
}

// MaxBlocks records the root's maximum buffer usage across the tree, per
// class, omitted (nil) when the maximum is zero.
type MaxBlocks struct {
	Shared *int64
	Temp   *int64
	Local  *int64
}

// Content is the envelope around the root plan node plus sibling top-level
// blocks (Triggers, JIT, Settings) and the maxima computed during
// enrichment.
type Content struct {
	Plan     *Node
	Triggers []Trigger
	JIT      *JIT

	MaxRows      int64
	MaxCost      float64
	MaxTotalCost float64
	MaxDuration  float64
	MaxBlocks    *MaxBlocks
	Settings     map[string]string

	// Extras carries top-level EXPLAIN attributes that sit beside "Plan"
	// but aren't named in the envelope above, chiefly "Planning Time" and
	// "Execution Time".
	Extras map[string]Value
}

// Float returns a well-known top-level label's float value, or 0 if absent.
func (c *Content) Float(label string) float64 { return valueFloat(c.Extras, label) }

// Has reports whether label is present in the content's Extras bag.
func (c *Content) Has(label string) bool {
	_, ok := c.Extras[label]
	return ok
}

// Plan is the root envelope returned by ParseSource.
type Plan struct {
	ID        string
	Name      string
	CreatedOn time.Time
	Query     string

	Content Content

	CTEs []*Node

	IsAnalyze bool
	IsVerbose bool
}
