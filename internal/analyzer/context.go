package analyzer

import (
	"regexp"
	"strings"

	"github.com/pgplan-project/pgplan/internal/plan"
)

type PlanContext struct {
	CTEs     map[string]*CTEInfo
	AllNodes []*NodeRef
}

type CTEInfo struct {
	Name          string
	Node          *plan.Node
	EstimatedRows int64
	ActualRows    int64
}

type NodeRef struct {
	Node   *plan.Node
	Parent *plan.Node
	Depth  int
}

// BuildContext walks an enriched plan's main tree plus its relocated CTEs,
// indexing CTE definitions by name so rules can correlate a "CTE Scan"
// consumer against the CTE it reads.
func BuildContext(p *plan.Plan) PlanContext {
	ctx := PlanContext{CTEs: make(map[string]*CTEInfo)}

	for _, cte := range p.CTEs {
		name := strings.TrimPrefix(cte.SubplanName, "CTE ")
		ctx.CTEs[name] = &CTEInfo{
			Name:          name,
			Node:          cte,
			EstimatedRows: cte.PlanRows,
			ActualRows:    cte.ActualRows,
		}
		collectContext(cte, nil, 0, &ctx)
	}

	if p.Content.Plan != nil {
		collectContext(p.Content.Plan, nil, 0, &ctx)
	}

	return ctx
}

func collectContext(node *plan.Node, parent *plan.Node, depth int, ctx *PlanContext) {
	ctx.AllNodes = append(ctx.AllNodes, &NodeRef{Node: node, Parent: parent, Depth: depth})
	for _, child := range node.Plans {
		collectContext(child, node, depth+1, ctx)
	}
}

var (
	stringLiteralRe = regexp.MustCompile(`'[^']*'`)
	columnRefRe     = regexp.MustCompile(`\b(\w+)\.(\w+)\b`)
	castColRe       = regexp.MustCompile(`\(([a-zA-Z_]\w*)\)::`)
)

func ExtractConditionColumns(cond string) []string {
	if cond == "" {
		return nil
	}
	cleaned := stringLiteralRe.ReplaceAllString(cond, "")
	seen := make(map[string]bool)
	var cols []string
	for _, m := range columnRefRe.FindAllStringSubmatch(cleaned, -1) {
		col := m[2]
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	for _, m := range castColRe.FindAllStringSubmatch(cleaned, -1) {
		col := m[1]
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	return cols
}

func ConditionColumnsNotIn(filter, indexCond string) []string {
	filterCols := ExtractConditionColumns(filter)
	indexCols := make(map[string]bool)
	for _, col := range ExtractConditionColumns(indexCond) {
		indexCols[col] = true
	}

	var missing []string
	for _, col := range filterCols {
		if !indexCols[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

var literalRe = regexp.MustCompile(`(?:^|[^<>!])=\s*'((?:[^']|'')*)'`)

func ExtractLiteralValue(cond string) string {
	m := literalRe.FindStringSubmatch(cond)
	if m == nil {
		return ""
	}

	return strings.ReplaceAll(m[1], "''", "'")
}
