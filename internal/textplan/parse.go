// Package textplan implements the line-oriented, indent-driven parser for
// PostgreSQL's textual EXPLAIN output: reassembling hard-wrapped lines,
// walking a depth-keyed frame stack to reconstruct the plan tree, and
// dispatching node attributes to the sub-parsers in attrs.go.
package textplan

import (
	"strconv"
	"strings"

	"github.com/pgplan-project/pgplan/internal/plan"
)

type stackFrame struct {
	depth int
	kind  frameKind
	node  *plan.Node // valid for frameSubnode/frameInitPlan/frameSubPlan
	jit   *plan.JIT  // valid for a root-level JIT frame
	name  string
}

type parser struct {
	stack     []stackFrame
	content   plan.Content
	sawNode   bool
	jitTarget *plan.JIT

	accumulatingQuery bool
	queryLines        []string
}

// Parse consumes cleaned EXPLAIN text and returns its content envelope plus
// the (possibly extended) query text. seedQuery primes the special-case
// accumulation of raw leading lines into the query text before any plan
// node has been seen.
func Parse(cleaned string, seedQuery string) (plan.Content, string, error) {
	p := &parser{accumulatingQuery: seedQuery != ""}
	if seedQuery != "" {
		p.queryLines = append(p.queryLines, seedQuery)
	}

	logical := reassembleLines(strings.Split(cleaned, "\n"))

	for _, raw := range logical {
		if err := p.processLine(raw); err != nil {
			return plan.Content{}, "", err
		}
	}

	if p.content.Plan == nil {
		return plan.Content{}, "", plan.NewParseFailure("unable to parse plan")
	}

	query := strings.Join(p.queryLines, "\n")
	return p.content, query, nil
}

func (p *parser) processLine(raw string) error {
	line := strings.TrimSuffix(raw, `"`)
	line = strings.TrimPrefix(line, `"`)
	line = strings.ReplaceAll(line, "\t", "    ")

	depth := 0
	for depth < len(line) && line[depth] == ' ' {
		depth++
	}
	content := line[depth:]

	if content == "" || headerSkipRe.MatchString(content) {
		return nil
	}

	// While still accumulating a leading query echo, only a real node ends
	// accumulation; matchNodeLine's cost requirement already rejects bare
	// query text ("SELECT * FROM ...").
	if !p.sawNode && p.accumulatingQuery {
		if nm, ok := matchNodeLine(content); ok {
			p.handleNode(depth, nm)
			p.jitTarget = nil
			return nil
		}
		p.queryLines = append(p.queryLines, raw)
		return nil
	}

	// SubPlan/InitPlan/CTE frame markers are bare label lines ("SubPlan 1",
	// "CTE recent_orders") with no cost parenthetical, so matchNodeLine below
	// never takes them for a node; match them here so they open a frame.
	if m := subInitPlanRe.FindStringSubmatch(content); m != nil {
		p.handleSubInitPlan(depth, content, m[1])
		p.jitTarget = nil
		return nil
	}

	if m := cteRe.FindStringSubmatch(content); m != nil {
		p.handleCTE(depth, m[1])
		p.jitTarget = nil
		return nil
	}

	if nm, ok := matchNodeLine(content); ok {
		p.handleNode(depth, nm)
		p.jitTarget = nil
		return nil
	}

	if m := workerRe.FindStringSubmatch(content); m != nil {
		p.handleWorker(m[1], m[2])
		p.jitTarget = nil
		return nil
	}

	if m := triggerRe.FindStringSubmatch(content); m != nil {
		calls, _ := strconv.ParseInt(m[3], 10, 64)
		timeVal, _ := strconv.ParseFloat(m[2], 64)
		p.content.Triggers = append(p.content.Triggers, plan.Trigger{Name: m[1], Time: timeVal, Calls: calls})
		p.jitTarget = nil
		return nil
	}

	if jitHeaderRe.MatchString(content) {
		p.handleJIT()
		return nil
	}

	// A generic attribute line at depth 0 can only be a trailing top-level
	// one ("Planning Time:", "Execution Time:") — a node's own attributes
	// are always indented past its header, never flush with it — so clear
	// the stack first rather than misattaching it to whatever node is left.
	if depth == 0 && p.sawNode {
		p.popTo(0)
	}

	return applyExtra(content, p.attrTarget())
}

func (p *parser) popTo(depth int) {
	for len(p.stack) > 0 && p.stack[len(p.stack)-1].depth >= depth {
		p.stack = p.stack[:len(p.stack)-1]
	}
}

func (p *parser) top() *stackFrame {
	if len(p.stack) == 0 {
		return nil
	}
	return &p.stack[len(p.stack)-1]
}

func (p *parser) handleNode(depth int, nm nodeMatch) {
	node := &plan.Node{
		NodeType:          nm.nodeType,
		HasEstimate:       nm.hasEstimate,
		StartupCost:       nm.startupCost,
		TotalCost:         nm.totalCost,
		PlanRows:          nm.planRows,
		PlanWidth:         nm.planWidth,
		HasActuals:        nm.hasActuals,
		ActualStartupTime: nm.actualStartupTime,
		ActualTotalTime:   nm.actualTotalTime,
		ActualRows:        nm.actualRows,
		ActualLoops:       nm.actualLoops,
		NeverExecuted:     nm.neverExecuted,
		Extras:            map[string]plan.Value{},
	}
	if node.NeverExecuted {
		node.ActualStartupTime, node.ActualTotalTime, node.ActualRows, node.ActualLoops = 0, 0, 0, 0
	}

	p.popTo(depth)
	p.sawNode = true
	p.accumulatingQuery = false

	top := p.top()
	if top == nil {
		p.content.Plan = node
	} else {
		switch top.kind {
		case frameInitPlan:
			node.ParentRelationship = "InitPlan"
			node.SubplanName = top.name
		case frameSubPlan:
			node.ParentRelationship = "SubPlan"
			node.SubplanName = top.name
		}
		top.node.Plans = append(top.node.Plans, node)
	}

	p.stack = append(p.stack, stackFrame{depth: depth, kind: frameSubnode, node: node})
}

func (p *parser) handleSubInitPlan(depth int, content, kindWord string) {
	p.popTo(depth)
	top := p.top()
	if top == nil {
		return
	}
	kind := frameInitPlan
	if kindWord == "Sub" {
		kind = frameSubPlan
	}
	p.stack = append(p.stack, stackFrame{depth: depth, kind: kind, node: top.node, name: strings.TrimSpace(content)})
}

func (p *parser) handleCTE(depth int, name string) {
	p.popTo(depth)
	top := p.top()
	if top == nil {
		return
	}
	p.stack = append(p.stack, stackFrame{depth: depth, kind: frameInitPlan, node: top.node, name: "CTE " + name})
}

func (p *parser) handleWorker(numStr, rest string) {
	top := p.top()
	if top == nil || top.node == nil {
		return
	}
	num, _ := strconv.Atoi(numStr)

	var w *plan.Worker
	for _, existing := range top.node.Workers {
		if existing.WorkerNumber == num {
			w = existing
			break
		}
	}
	if w == nil {
		w = &plan.Worker{WorkerNumber: num, Extras: map[string]plan.Value{}}
		top.node.Workers = append(top.node.Workers, w)
	}

	m := workerActualRe.FindStringSubmatch(rest)
	if m == nil {
		applyWorkerExtra(rest, w)
		return
	}

	switch {
	case m[1] != "":
		w.HasActualStartupTime, w.HasActualTotalTime, w.HasActualRows, w.HasActualLoops = true, true, true, true
		w.ActualStartupTime, _ = strconv.ParseFloat(m[1], 64)
		w.ActualTotalTime, _ = strconv.ParseFloat(m[2], 64)
		w.ActualRows, _ = strconv.ParseInt(m[3], 10, 64)
		w.ActualLoops, _ = strconv.ParseInt(m[4], 10, 64)
	case m[5] != "":
		w.HasActualRows, w.HasActualLoops = true, true
		w.ActualRows, _ = strconv.ParseInt(m[5], 10, 64)
		w.ActualLoops, _ = strconv.ParseInt(m[6], 10, 64)
	case m[7] != "":
		w.HasActualStartupTime, w.HasActualTotalTime, w.HasActualRows, w.HasActualLoops = true, true, true, true
	}

	if extra := strings.TrimSpace(m[8]); extra != "" {
		if !trySort(extra, attrTarget{worker: w}) {
			applyWorkerExtra(extra, w)
		}
	}
}

func (p *parser) handleJIT() {
	if len(p.stack) == 0 {
		if p.content.JIT == nil {
			p.content.JIT = &plan.JIT{Options: map[string]plan.Value{}, Timing: map[string]float64{}}
		}
		p.jitTarget = p.content.JIT
		p.stack = append(p.stack, stackFrame{depth: 1, kind: frameJIT, jit: p.content.JIT})
		return
	}

	top := p.top()
	if top.node != nil && len(top.node.Workers) > 0 {
		last := top.node.Workers[len(top.node.Workers)-1]
		if last.JIT == nil {
			last.JIT = &plan.JIT{Options: map[string]plan.Value{}, Timing: map[string]float64{}}
		}
		p.jitTarget = last.JIT
		return
	}
	p.jitTarget = nil
}

func (p *parser) attrTarget() attrTarget {
	if p.jitTarget != nil {
		return attrTarget{jit: p.jitTarget, content: &p.content}
	}
	top := p.top()
	if top == nil {
		return attrTarget{content: &p.content}
	}
	return attrTarget{node: top.node, content: &p.content}
}

func applyWorkerExtra(text string, w *plan.Worker) {
	idx := strings.IndexByte(text, ':')
	if idx < 0 {
		return
	}
	label := titleCase(strings.TrimSpace(text[:idx]))
	value := strings.TrimSpace(text[idx+1:])
	value = strings.TrimSuffix(value, " ms")

	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil && float64(i) == f {
			w.Extras[label] = plan.IntValue(i)
		} else {
			w.Extras[label] = plan.FloatValue(f)
		}
		return
	}
	w.Extras[label] = plan.StringValue(value)
}
