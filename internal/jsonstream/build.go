package jsonstream

import (
	"fmt"

	"github.com/pgplan-project/pgplan/internal/plan"
)

// knownNodeKeys lists every attribute promoted to a named plan.Node field.
// Everything else lands in Extras (see plan.Node's doc comment).
var knownNodeKeys = map[string]struct{}{
	"Node Type": {}, "Parent Relationship": {}, "Subplan Name": {},
	"Startup Cost": {}, "Total Cost": {}, "Plan Rows": {}, "Plan Width": {},
	"Actual Startup Time": {}, "Actual Total Time": {}, "Actual Rows": {}, "Actual Loops": {},
	"Rows Removed by Filter": {}, "Rows Removed by Join Filter": {},
	"Workers Planned": {}, "Workers Launched": {},
	"Sort Method": {}, "Sort Space Used": {}, "Sort Space Type": {},
	"Sort Key": {}, "Presorted Key": {},
	"Full-sort Groups": {}, "Pre-sorted Groups": {},
	"Shared Hit Blocks": {}, "Shared Read Blocks": {}, "Shared Dirtied Blocks": {}, "Shared Written Blocks": {},
	"Local Hit Blocks": {}, "Local Read Blocks": {}, "Local Dirtied Blocks": {}, "Local Written Blocks": {},
	"Temp Read Blocks": {}, "Temp Written Blocks": {}, "Temp Dirtied Blocks": {}, "Temp Hit Blocks": {},
	"WAL Records": {}, "WAL Bytes": {}, "WAL FPI": {},
	"I/O Read Time": {}, "I/O Write Time": {},
	"JIT": {}, "Workers": {}, "Plans": {},
}

// BuildNode converts a generic map[string]any (produced by Parse or by the
// YAML path) into a *plan.Node tree. Shared between internal/jsonstream and
// internal/yamlplan so the attribute-mapping logic lives in exactly one
// place.
func BuildNode(data map[string]any) (*plan.Node, error) {
	node := &plan.Node{Extras: map[string]plan.Value{}}

	node.NodeType = asString(data["Node Type"])
	node.ParentRelationship = asString(data["Parent Relationship"])
	node.SubplanName = asString(data["Subplan Name"])

	if _, ok := data["Startup Cost"]; ok {
		node.HasEstimate = true
		node.StartupCost = asFloat(data["Startup Cost"])
	}
	if _, ok := data["Total Cost"]; ok {
		node.HasEstimate = true
		node.TotalCost = asFloat(data["Total Cost"])
	}
	if _, ok := data["Plan Rows"]; ok {
		node.HasEstimate = true
		node.PlanRows = asInt(data["Plan Rows"])
	}
	if _, ok := data["Plan Width"]; ok {
		node.HasEstimate = true
		node.PlanWidth = int(asInt(data["Plan Width"]))
	}

	if _, ok := data["Actual Total Time"]; ok {
		node.HasActuals = true
		node.ActualStartupTime = asFloat(data["Actual Startup Time"])
		node.ActualTotalTime = asFloat(data["Actual Total Time"])
		node.ActualRows = asInt(data["Actual Rows"])
		node.ActualLoops = asInt(data["Actual Loops"])
		if node.ActualLoops == 0 {
			node.NeverExecuted = true
			node.ActualStartupTime, node.ActualTotalTime, node.ActualRows = 0, 0, 0
		}
	}

	node.RowsRemovedByFilter = asInt(data["Rows Removed by Filter"])
	node.RowsRemovedByJoinFilter = asInt(data["Rows Removed by Join Filter"])

	if v, ok := data["Workers Planned"]; ok {
		node.HasWorkersPlanned = true
		node.WorkersPlanned = int(asInt(v))
	}
	node.WorkersLaunched = int(asInt(data["Workers Launched"]))

	if _, ok := data["Sort Method"]; ok {
		node.Sort = &plan.Sort{
			Method:      asString(data["Sort Method"]),
			SpaceUsedKB: asInt(data["Sort Space Used"]),
			SpaceType:   asString(data["Sort Space Type"]),
		}
	}
	node.SortKey = asStringList(data["Sort Key"])
	node.PresortedKey = asStringList(data["Presorted Key"])

	if v, ok := data["Full-sort Groups"]; ok {
		node.FullSortGroups = buildSortGroups(v)
	}
	if v, ok := data["Pre-sorted Groups"]; ok {
		node.PreSortedGroups = buildSortGroups(v)
	}

	node.Buffers.Shared = plan.BufferCounters{
		HitBlocks: asInt(data["Shared Hit Blocks"]), ReadBlocks: asInt(data["Shared Read Blocks"]),
		DirtiedBlocks: asInt(data["Shared Dirtied Blocks"]), WrittenBlocks: asInt(data["Shared Written Blocks"]),
	}
	node.Buffers.Local = plan.BufferCounters{
		HitBlocks: asInt(data["Local Hit Blocks"]), ReadBlocks: asInt(data["Local Read Blocks"]),
		DirtiedBlocks: asInt(data["Local Dirtied Blocks"]), WrittenBlocks: asInt(data["Local Written Blocks"]),
	}
	node.Buffers.Temp = plan.BufferCounters{
		HitBlocks: asInt(data["Temp Hit Blocks"]), ReadBlocks: asInt(data["Temp Read Blocks"]),
		DirtiedBlocks: asInt(data["Temp Dirtied Blocks"]), WrittenBlocks: asInt(data["Temp Written Blocks"]),
	}

	if _, ok := data["WAL Records"]; ok {
		node.HasWAL = true
		node.WAL = plan.WAL{Records: asInt(data["WAL Records"]), Bytes: asInt(data["WAL Bytes"]), FPI: asInt(data["WAL FPI"])}
	}
	if _, ok := data["I/O Read Time"]; ok {
		node.HasIOTimings = true
		node.IOReadTime = asFloat(data["I/O Read Time"])
		node.IOWriteTime = asFloat(data["I/O Write Time"])
	}

	if v, ok := data["JIT"]; ok {
		jit, err := asObject(v)
		if err == nil {
			node.JIT = buildJIT(jit)
		}
	}

	if v, ok := data["Workers"]; ok {
		workers, err := buildWorkers(v)
		if err != nil {
			return nil, err
		}
		node.Workers = workers
	}

	for _, childVal := range asSlice(data["Plans"]) {
		childMap, err := asObject(childVal)
		if err != nil {
			return nil, fmt.Errorf("child plan: %w", err)
		}
		child, err := BuildNode(childMap)
		if err != nil {
			return nil, err
		}
		node.Plans = append(node.Plans, child)
	}

	for k, v := range data {
		if _, known := knownNodeKeys[k]; known {
			continue
		}
		node.Extras[k] = toValue(v)
	}

	return node, nil
}

func buildSortGroups(v any) *plan.SortGroups {
	obj, err := asObject(v)
	if err != nil {
		return nil
	}
	return &plan.SortGroups{
		GroupCount: asInt(obj["Group Count"]),
		Methods:    asStringList(obj["Sort Methods Used"]),
		AvgKB:      asFloat(obj["Average Sort Space Used"]),
		PeakKB:     asFloat(obj["Peak Sort Space Used"]),
	}
}

func buildJIT(obj map[string]any) *plan.JIT {
	jit := &plan.JIT{Options: map[string]plan.Value{}, Timing: map[string]float64{}}
	if opts, err := asObject(obj["Options"]); err == nil {
		for k, v := range opts {
			jit.Options[k] = toValue(v)
		}
	}
	if timing, err := asObject(obj["Timing"]); err == nil {
		for k, v := range timing {
			jit.Timing[k] = asFloat(v)
		}
	}
	return jit
}

func buildWorkers(v any) ([]*plan.Worker, error) {
	var raws []map[string]any
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			obj, err := asObject(item)
			if err != nil {
				return nil, fmt.Errorf("worker entry: %w", err)
			}
			raws = append(raws, obj)
		}
	default:
		obj, err := asObject(v)
		if err != nil {
			return nil, fmt.Errorf("workers: %w", err)
		}
		raws = append(raws, obj)
	}

	byNumber := map[int]*plan.Worker{}
	var order []int
	for _, raw := range raws {
		num := int(asInt(raw["Worker Number"]))
		w, seen := byNumber[num]
		if !seen {
			w = &plan.Worker{WorkerNumber: num, Extras: map[string]plan.Value{}}
			byNumber[num] = w
			order = append(order, num)
		}
		mergeWorker(w, raw)
	}

	out := make([]*plan.Worker, 0, len(order))
	for _, n := range order {
		out = append(out, byNumber[n])
	}
	return out, nil
}

func mergeWorker(w *plan.Worker, raw map[string]any) {
	if v, ok := raw["Actual Startup Time"]; ok {
		w.HasActualStartupTime = true
		w.ActualStartupTime = asFloat(v)
	}
	if v, ok := raw["Actual Total Time"]; ok {
		w.HasActualTotalTime = true
		w.ActualTotalTime = asFloat(v)
	}
	if v, ok := raw["Actual Rows"]; ok {
		w.HasActualRows = true
		w.ActualRows = asInt(v)
	}
	if v, ok := raw["Actual Loops"]; ok {
		w.HasActualLoops = true
		w.ActualLoops = asInt(v)
	}
	if _, ok := raw["Sort Method"]; ok {
		w.Sort = &plan.Sort{
			Method:      asString(raw["Sort Method"]),
			SpaceUsedKB: asInt(raw["Sort Space Used"]),
			SpaceType:   asString(raw["Sort Space Type"]),
		}
	}
	if v, ok := raw["JIT"]; ok {
		if obj, err := asObject(v); err == nil {
			w.JIT = buildJIT(obj)
		}
	}
	for k, v := range raw {
		switch k {
		case "Worker Number", "Actual Startup Time", "Actual Total Time", "Actual Rows", "Actual Loops",
			"Sort Method", "Sort Space Used", "Sort Space Type", "JIT":
			continue
		}
		w.Extras[k] = toValue(v)
	}
}

// toValue lifts a generic decoded value into the Node/Worker Extras tagged
// union (plan.Value).
func toValue(v any) plan.Value {
	switch t := v.(type) {
	case nil:
		return plan.StringValue("")
	case bool:
		return plan.BoolValue(t)
	case string:
		return plan.StringValue(t)
	case []any:
		strs := make([]string, 0, len(t))
		for _, item := range t {
			strs = append(strs, asString(item))
		}
		return plan.ListValue(strs)
	case map[string]any:
		m := make(map[string]plan.Value, len(t))
		for k, val := range t {
			m[k] = toValue(val)
		}
		return plan.MapValue(m)
	default:
		// json.Number or a bare numeric from YAML.
		f := asFloat(v)
		if f == float64(int64(f)) {
			return plan.IntValue(int64(f))
		}
		return plan.FloatValue(f)
	}
}
