package textplan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pgplan-project/pgplan/internal/plan"
)

// attrTarget names where an attribute line's parsed value is written.
// Exactly one of node/worker/jit is usually non-nil; content is always
// available as the root-level fallback (e.g. Settings, generic attributes
// seen before any node or after the tree is closed).
type attrTarget struct {
	node    *plan.Node
	worker  *plan.Worker
	jit     *plan.JIT
	content *plan.Content
}

func (t attrTarget) extras() map[string]plan.Value {
	switch {
	case t.node != nil:
		return t.node.Extras
	case t.worker != nil:
		return t.worker.Extras
	default:
		if t.content.Extras == nil {
			t.content.Extras = map[string]plan.Value{}
		}
		return t.content.Extras
	}
}

func (t attrTarget) setSort(s *plan.Sort) {
	switch {
	case t.node != nil:
		t.node.Sort = s
	case t.worker != nil:
		t.worker.Sort = s
	}
}

var (
	sortMethodRe = regexp.MustCompile(`^Sort Method:\s*(.+?)\s+(Memory|Disk):\s*(\d+)kB\s*$`)
	sortGroupsRe = regexp.MustCompile(`(?i)^(.+?) Groups:\s*(\d+)\s+Sort Methods?\s+Used:\s*(.+?)\s+Average Memory:\s*([\d.]+)kB\s+Peak Memory:\s*([\d.]+)kB\s*$`)
	sortKeyRe    = regexp.MustCompile(`^(Sort|Presorted) Key:\s*(.*)$`)
	buffersRe    = regexp.MustCompile(`^Buffers:\s*(.*)$`)
	walRe        = regexp.MustCompile(`^WAL:\s*(.*)$`)
	ioTimingsRe  = regexp.MustCompile(`^I/O Timings:\s*(.*)$`)
	optionsRe    = regexp.MustCompile(`^Options:\s*(.*)$`)
	timingRe     = regexp.MustCompile(`^Timing:\s*(.*)$`)
	settingsRe   = regexp.MustCompile(`^Settings:\s*(.*)$`)
	kvTokenRe    = regexp.MustCompile(`(\w+)=(\S+)`)
)

// applyExtra tries each attribute sub-parser in priority order against a
// stripped line, falling back to a generic label/value attribute when none
// match. Only UnsupportedSortGroupsKind escapes as an error; every other
// sub-parser fails silently and falls through to the next.
func applyExtra(line string, target attrTarget) error {
	if tryRowsRemoved(line, target) {
		return nil
	}
	if tryWorkersHeader(line, target) {
		return nil
	}
	if trySort(line, target) {
		return nil
	}
	if ok, err := trySortGroups(line, target); err != nil {
		return err
	} else if ok {
		return nil
	}
	if trySortKey(line, target) {
		return nil
	}
	if tryBuffers(line, target) {
		return nil
	}
	if tryWAL(line, target) {
		return nil
	}
	if tryIOTimings(line, target) {
		return nil
	}
	if tryOptions(line, target) {
		return nil
	}
	if tryTiming(line, target) {
		return nil
	}
	if trySettings(line, target) {
		return nil
	}
	applyGeneric(line, target)
	return nil
}

var rowsRemovedRe = regexp.MustCompile(`^Rows Removed by (Filter|Join Filter):\s*(\d+)\s*$`)

// tryRowsRemoved promotes "Rows Removed by Filter"/"Rows Removed by Join
// Filter" to their named node fields, matching the JSON/YAML path's
// knownNodeKeys treatment instead of leaving them in the generic Extras bag.
func tryRowsRemoved(line string, target attrTarget) bool {
	m := rowsRemovedRe.FindStringSubmatch(line)
	if m == nil || target.node == nil {
		return m != nil
	}
	n, _ := strconv.ParseInt(m[2], 10, 64)
	if m[1] == "Filter" {
		target.node.RowsRemovedByFilter = n
	} else {
		target.node.RowsRemovedByJoinFilter = n
	}
	return true
}

var workersHeaderRe = regexp.MustCompile(`^Workers (Planned|Launched):\s*(\d+)\s*$`)

// tryWorkersHeader promotes "Workers Planned"/"Workers Launched" to their
// named node fields, mirroring the JSON/YAML path so gather-node worker
// propagation during enrichment works the same regardless of source format.
func tryWorkersHeader(line string, target attrTarget) bool {
	m := workersHeaderRe.FindStringSubmatch(line)
	if m == nil || target.node == nil {
		return m != nil
	}
	n, _ := strconv.Atoi(m[2])
	if m[1] == "Planned" {
		target.node.HasWorkersPlanned = true
		target.node.WorkersPlanned = n
	} else {
		target.node.WorkersLaunched = n
	}
	return true
}

func trySort(line string, target attrTarget) bool {
	m := sortMethodRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	kb, _ := strconv.ParseInt(m[3], 10, 64)
	target.setSort(&plan.Sort{Method: m[1], SpaceUsedKB: kb, SpaceType: m[2]})
	return true
}

func trySortGroups(line string, target attrTarget) (bool, error) {
	m := sortGroupsRe.FindStringSubmatch(line)
	if m == nil {
		return false, nil
	}
	kind := strings.TrimSpace(m[1])
	groupCount, _ := strconv.ParseInt(m[2], 10, 64)
	avg, _ := strconv.ParseFloat(m[4], 64)
	peak, _ := strconv.ParseFloat(m[5], 64)
	groups := &plan.SortGroups{
		GroupCount: groupCount,
		Methods:    splitTrim(m[3], ','),
		AvgKB:      avg,
		PeakKB:     peak,
	}

	if target.node == nil {
		return true, nil
	}
	switch kind {
	case "Full-sort":
		target.node.FullSortGroups = groups
	case "Pre-sorted":
		target.node.PreSortedGroups = groups
	default:
		return true, plan.NewUnsupportedSortGroupsKind(kind)
	}
	return true, nil
}

func trySortKey(line string, target attrTarget) bool {
	m := sortKeyRe.FindStringSubmatch(line)
	if m == nil || target.node == nil {
		return m != nil
	}
	keys := splitTrim(m[2], ',')
	if m[1] == "Sort" {
		target.node.SortKey = keys
	} else {
		target.node.PresortedKey = keys
	}
	return true
}

func tryBuffers(line string, target attrTarget) bool {
	m := buffersRe.FindStringSubmatch(line)
	if m == nil || target.node == nil {
		return m != nil
	}
	for _, chunk := range splitTrim(m[1], ',') {
		fields := strings.Fields(chunk)
		if len(fields) == 0 {
			continue
		}
		var counters *plan.BufferCounters
		switch fields[0] {
		case "shared":
			counters = &target.node.Buffers.Shared
		case "local":
			counters = &target.node.Buffers.Local
		case "temp":
			counters = &target.node.Buffers.Temp
		default:
			continue
		}
		for _, kv := range kvTokenRe.FindAllStringSubmatch(chunk, -1) {
			n, _ := strconv.ParseInt(kv[2], 10, 64)
			switch kv[1] {
			case "hit":
				counters.HitBlocks = n
			case "read":
				counters.ReadBlocks = n
			case "dirtied":
				counters.DirtiedBlocks = n
			case "written":
				counters.WrittenBlocks = n
			}
		}
	}
	return true
}

func tryWAL(line string, target attrTarget) bool {
	m := walRe.FindStringSubmatch(line)
	if m == nil || target.node == nil {
		return m != nil
	}
	target.node.HasWAL = true
	for _, kv := range kvTokenRe.FindAllStringSubmatch(m[1], -1) {
		n, _ := strconv.ParseInt(kv[2], 10, 64)
		switch kv[1] {
		case "records":
			target.node.WAL.Records = n
		case "bytes":
			target.node.WAL.Bytes = n
		case "fpi":
			target.node.WAL.FPI = n
		}
	}
	return true
}

func tryIOTimings(line string, target attrTarget) bool {
	m := ioTimingsRe.FindStringSubmatch(line)
	if m == nil || target.node == nil {
		return m != nil
	}
	target.node.HasIOTimings = true
	for _, kv := range kvTokenRe.FindAllStringSubmatch(m[1], -1) {
		f, _ := strconv.ParseFloat(kv[2], 64)
		switch kv[1] {
		case "read":
			target.node.IOReadTime = f
		case "write":
			target.node.IOWriteTime = f
		}
	}
	return true
}

func tryOptions(line string, target attrTarget) bool {
	m := optionsRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	jit := resolveJIT(target)
	if jit == nil {
		return true
	}
	for _, chunk := range splitTrim(m[1], ',') {
		idx := strings.IndexByte(chunk, ' ')
		if idx < 0 {
			continue
		}
		key := chunk[:idx]
		rawVal := strings.TrimSpace(chunk[idx+1:])
		var decoded any
		if err := json.Unmarshal([]byte(rawVal), &decoded); err != nil {
			jit.Options[key] = plan.StringValue(strings.Trim(rawVal, `"`))
			continue
		}
		jit.Options[key] = jitValue(decoded)
	}
	return true
}

func tryTiming(line string, target attrTarget) bool {
	m := timingRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	jit := resolveJIT(target)
	if jit == nil {
		return true
	}
	for _, chunk := range splitTrim(m[1], ',') {
		idx := strings.IndexByte(chunk, ' ')
		if idx < 0 {
			continue
		}
		key := chunk[:idx]
		val := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(chunk[idx+1:]), "ms"))
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		jit.Timing[key] = f
	}
	return true
}

func trySettings(line string, target attrTarget) bool {
	m := settingsRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if target.content.Settings == nil {
		target.content.Settings = map[string]string{}
	}
	for _, chunk := range splitTrim(m[1], ',') {
		kv := strings.SplitN(chunk, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `'"`)
		target.content.Settings[key] = val
	}
	return true
}

// applyGeneric stores an unrecognized "<label>: <value>" line as a raw
// attribute, matching an unknown field PostgreSQL's format may add.
func applyGeneric(line string, target attrTarget) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return
	}
	label := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	value = strings.TrimSuffix(value, " ms")

	lower := strings.ToLower(label)
	if strings.Contains(lower, "runtime") || strings.Contains(lower, "time") {
		label = titleCase(label)
	}

	extras := target.extras()
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil && float64(i) == f {
			extras[label] = plan.IntValue(i)
		} else {
			extras[label] = plan.FloatValue(f)
		}
		return
	}
	extras[label] = plan.StringValue(value)
}

func resolveJIT(target attrTarget) *plan.JIT {
	switch {
	case target.jit != nil:
		return target.jit
	case target.worker != nil:
		if target.worker.JIT == nil {
			target.worker.JIT = &plan.JIT{Options: map[string]plan.Value{}, Timing: map[string]float64{}}
		}
		return target.worker.JIT
	case target.node != nil:
		if target.node.JIT == nil {
			target.node.JIT = &plan.JIT{Options: map[string]plan.Value{}, Timing: map[string]float64{}}
		}
		return target.node.JIT
	default:
		return nil
	}
}

func jitValue(v any) plan.Value {
	switch t := v.(type) {
	case string:
		return plan.StringValue(t)
	case bool:
		return plan.BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return plan.IntValue(int64(t))
		}
		return plan.FloatValue(t)
	default:
		return plan.StringValue(fmt.Sprint(t))
	}
}

func splitTrim(s string, sep rune) []string {
	var out []string
	for _, p := range splitBalanced(s, sep) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
