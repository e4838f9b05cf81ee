package analyzer

import (
	"sort"

	"github.com/pgplan-project/pgplan/internal/plan"
)

// Analyze runs the default rule set against p, plus the CTE-consolidation
// pass, and returns findings sorted most severe first.
func Analyze(p *plan.Plan) AnalysisResult {
	result := AnalysisResult{
		TotalCost:     p.Content.Plan.TotalCost,
		ExecutionTime: p.Content.Float("Execution Time"),
		PlanningTime:  p.Content.Float("Planning Time"),
	}

	ctx := BuildContext(p)

	walkTree(p.Content.Plan, nil, -1, defaultRules, &ctx, &result)
	for _, cte := range p.CTEs {
		walkTree(cte, nil, -1, defaultRules, &ctx, &result)
	}

	result.Findings = append(result.Findings, ConsolidateEstimateMismatches(p.Content.Plan, &ctx)...)

	sort.SliceStable(result.Findings, func(i, j int) bool {
		return result.Findings[i].Severity > result.Findings[j].Severity
	})

	return result
}

func walkTree(node *plan.Node, parent *plan.Node, childIdx int, rules []Rule, ctx *PlanContext, result *AnalysisResult) {
	for _, rule := range rules {
		findings := rule(node, parent, childIdx, ctx)
		result.Findings = append(result.Findings, findings...)
	}

	for i, child := range node.Plans {
		walkTree(child, node, i, rules, ctx, result)
	}
}
