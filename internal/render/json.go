package render

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pgplan-project/pgplan/internal/plan"
)

// RenderJSON writes v as indented JSON, for any already JSON-shaped value
// (analyzer.AnalysisResult, comparator.ComparisonResult).
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderPlanJSON dumps the enriched plan tree as JSON, flattening each
// node's Extras bag into native JSON values instead of exposing the
// Value tagged-union's internal shape.
func RenderPlanJSON(w io.Writer, p *plan.Plan) error {
	return RenderJSON(w, planToMap(p))
}

func planToMap(p *plan.Plan) map[string]any {
	out := map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"query":      p.Query,
		"is_analyze": p.IsAnalyze,
		"is_verbose": p.IsVerbose,
		"content":    contentToMap(&p.Content),
	}
	if len(p.CTEs) > 0 {
		ctes := make([]map[string]any, len(p.CTEs))
		for i, cte := range p.CTEs {
			ctes[i] = nodeToMap(cte)
		}
		out["ctes"] = ctes
	}
	return out
}

func contentToMap(c *plan.Content) map[string]any {
	out := map[string]any{
		"plan":           nodeToMap(c.Plan),
		"max_rows":       c.MaxRows,
		"max_cost":       c.MaxCost,
		"max_total_cost": c.MaxTotalCost,
		"max_duration":   c.MaxDuration,
	}
	for label, v := range c.Extras {
		out[jsonKey(label)] = valueToJSON(v)
	}
	if len(c.Triggers) > 0 {
		triggers := make([]map[string]any, len(c.Triggers))
		for i, t := range c.Triggers {
			triggers[i] = map[string]any{"name": t.Name, "time": t.Time, "calls": t.Calls}
		}
		out["triggers"] = triggers
	}
	return out
}

func nodeToMap(n *plan.Node) map[string]any {
	out := map[string]any{
		"node_type":    n.NodeType,
		"node_id":      n.NodeID,
		"startup_cost": n.StartupCost,
		"total_cost":   n.TotalCost,
		"plan_rows":    n.PlanRows,
		"plan_width":   n.PlanWidth,
	}
	if n.ParentRelationship != "" {
		out["parent_relationship"] = n.ParentRelationship
	}
	if n.SubplanName != "" {
		out["subplan_name"] = n.SubplanName
	}
	if n.HasActuals {
		out["actual_startup_time"] = n.ActualStartupTime
		out["actual_total_time"] = n.ActualTotalTime
		out["actual_rows"] = n.ActualRows
		out["actual_loops"] = n.ActualLoops
		out["never_executed"] = n.NeverExecuted
		out["exclusive_cost"] = n.ExclusiveCost
		out["exclusive_duration"] = n.ExclusiveDuration
	}
	if n.HasPlannerEstimate {
		out["planner_estimate_factor"] = n.PlannerEstimateFactor
		out["planner_estimate_direction"] = string(n.PlannerEstimateDirection)
	}
	if n.Sort != nil {
		out["sort"] = map[string]any{
			"method":        n.Sort.Method,
			"space_used_kb": n.Sort.SpaceUsedKB,
			"space_type":    n.Sort.SpaceType,
		}
	}
	if n.HasWorkersPlanned {
		out["workers_planned"] = n.WorkersPlanned
		out["workers_launched"] = n.WorkersLaunched
	}
	out["buffers"] = buffersToMap(n.Buffers)
	if n.HasWAL {
		out["wal"] = map[string]any{"records": n.WAL.Records, "bytes": n.WAL.Bytes, "fpi": n.WAL.FPI}
	}
	for label, v := range n.Extras {
		out[jsonKey(label)] = valueToJSON(v)
	}
	if len(n.Plans) > 0 {
		children := make([]map[string]any, len(n.Plans))
		for i, child := range n.Plans {
			children[i] = nodeToMap(child)
		}
		out["plans"] = children
	}
	return out
}

func buffersToMap(b plan.Buffers) map[string]any {
	return map[string]any{
		"shared": countersToMap(b.Shared),
		"local":  countersToMap(b.Local),
		"temp":   countersToMap(b.Temp),
	}
}

func countersToMap(c plan.BufferCounters) map[string]any {
	return map[string]any{
		"hit_blocks":     c.HitBlocks,
		"read_blocks":    c.ReadBlocks,
		"dirtied_blocks": c.DirtiedBlocks,
		"written_blocks": c.WrittenBlocks,
	}
}

func valueToJSON(v plan.Value) any {
	switch v.Kind {
	case plan.KindString:
		return v.Str
	case plan.KindInt:
		return v.Int
	case plan.KindFloat:
		return v.Flt
	case plan.KindBool:
		return v.Bool
	case plan.KindList:
		return v.List
	case plan.KindMap:
		m := make(map[string]any, len(v.Map))
		for k, nested := range v.Map {
			m[jsonKey(k)] = valueToJSON(nested)
		}
		return m
	default:
		return nil
	}
}

// jsonKey lowercases and underscores a PostgreSQL EXPLAIN attribute label
// ("Relation Name") into a conventional JSON field name ("relation_name").
func jsonKey(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, " ", "_"))
}
