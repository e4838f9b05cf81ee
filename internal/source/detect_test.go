package source

import "testing"

func TestDetectFormat_JSON(t *testing.T) {
	format, candidate := DetectFormat(`[{"Plan": {"Node Type": "Seq Scan"}}]`)
	if format != FormatJSON {
		t.Errorf("format = %v, want FormatJSON", format)
	}
	if candidate != `[{"Plan": {"Node Type": "Seq Scan"}}]` {
		t.Errorf("candidate = %q", candidate)
	}
}

func TestDetectFormat_JSONObject(t *testing.T) {
	format, _ := DetectFormat(`{"Plan": {"Node Type": "Seq Scan"}}`)
	if format != FormatJSON {
		t.Errorf("format = %v, want FormatJSON", format)
	}
}

func TestDetectFormat_YAML(t *testing.T) {
	input := "Plan:\n  Node Type: \"Seq Scan\"\n  Total Cost: 20.00\n"
	format, _ := DetectFormat(input)
	if format != FormatYAML {
		t.Errorf("format = %v, want FormatYAML", format)
	}
}

func TestDetectFormat_YAMLSequence(t *testing.T) {
	input := "- Plan:\n    Node Type: \"Seq Scan\"\n"
	format, _ := DetectFormat(input)
	if format != FormatYAML {
		t.Errorf("format = %v, want FormatYAML", format)
	}
}

func TestDetectFormat_Text(t *testing.T) {
	input := "Seq Scan on users  (cost=0.00..20.00 rows=1000 width=8)"
	format, _ := DetectFormat(input)
	if format != FormatText {
		t.Errorf("format = %v, want FormatText", format)
	}
}

func TestDetectFormat_Empty(t *testing.T) {
	format, _ := DetectFormat("")
	if format != FormatText {
		t.Errorf("format = %v, want FormatText for empty input", format)
	}
}

func TestDetectFormat_BracketedEmbeddedJSON(t *testing.T) {
	input := "[\n{\"Plan\": {\"Node Type\": \"Seq Scan\"}}\n]"
	format, candidate := DetectFormat(input)
	if format != FormatJSON {
		t.Errorf("format = %v, want FormatJSON", format)
	}
	if candidate == "" {
		t.Error("expected non-empty candidate")
	}
}

func TestDetectFormat_InvalidJSONFallsBackToText(t *testing.T) {
	input := "{not valid json"
	format, _ := DetectFormat(input)
	if format != FormatText {
		t.Errorf("format = %v, want FormatText for malformed JSON-looking input", format)
	}
}
