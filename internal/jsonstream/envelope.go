package jsonstream

import (
	"github.com/pgplan-project/pgplan/internal/plan"
)

// BuildContent converts the top-level EXPLAIN object (keyed by "Plan" plus
// sibling blocks) into a plan.Content envelope, shared by the JSON and YAML
// ingestion paths. Maxima are left zero here; internal/enrich computes them
// during its tree walk.
func BuildContent(obj map[string]any) (plan.Content, error) {
	planObj, ok := obj["Plan"].(map[string]any)
	if !ok {
		return plan.Content{}, plan.NewParseFailure(`EXPLAIN document has no "Plan" object`)
	}

	root, err := BuildNode(planObj)
	if err != nil {
		return plan.Content{}, err
	}

	content := plan.Content{Plan: root}

	if raw, ok := obj["Triggers"]; ok {
		for _, t := range asSlice(raw) {
			tObj, err := asObject(t)
			if err != nil {
				continue
			}
			content.Triggers = append(content.Triggers, plan.Trigger{
				Name:  asString(tObj["Trigger Name"]),
				Time:  asFloat(tObj["Time"]),
				Calls: asInt(tObj["Calls"]),
			})
		}
	}

	if raw, ok := obj["JIT"]; ok {
		if jitObj, err := asObject(raw); err == nil {
			content.JIT = buildJIT(jitObj)
		}
	}

	if raw, ok := obj["Settings"]; ok {
		if settingsObj, err := asObject(raw); err == nil {
			content.Settings = map[string]string{}
			for k, v := range settingsObj {
				content.Settings[k] = asString(v)
			}
		}
	}

	content.Extras = map[string]plan.Value{}
	for k, v := range obj {
		switch k {
		case "Plan", "Triggers", "JIT", "Settings":
			continue
		}
		content.Extras[k] = toValue(v)
	}

	return content, nil
}
