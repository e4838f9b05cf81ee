package textplan

import "regexp"

var (
	subInitPlanRe = regexp.MustCompile(`^(Sub|Init)Plan\s*\d*\s*(\(returns[^)]*\))?`)
	cteRe         = regexp.MustCompile(`^CTE\s+(\S+)`)
	workerRe      = regexp.MustCompile(`^Worker\s+(\d+):\s*(.*)$`)
	triggerRe     = regexp.MustCompile(`^Trigger\s+(.+?):\s*time=([\d.]+)\s+calls=(\d+)`)
	jitHeaderRe   = regexp.MustCompile(`^JIT:\s*$`)
	headerSkipRe  = regexp.MustCompile(`^(QUERY PLAN|-{3,}|#)`)
)

// frameKind identifies what a stack frame represents.
type frameKind int

const (
	frameSubnode frameKind = iota
	frameInitPlan
	frameSubPlan
	frameJIT
)
