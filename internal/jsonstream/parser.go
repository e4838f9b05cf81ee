// Package jsonstream implements a streaming JSON reader that
// tolerates duplicate keys at the same object level by deep-merging them,
// which PostgreSQL's own JSON output requires (multiple "Worker" entries can
// appear under one key once a text-form plan round-trips through certain
// tools). encoding/json.Unmarshal alone cannot detect this — only its
// token-level Decoder exposes key repeats — so this package drives the
// Decoder by hand.
package jsonstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pgplan-project/pgplan/internal/plan"
)

// Parse reads a single top-level JSON value (object, or array unwrapped to
// its first element) and returns it as a generic
// map[string]any / []any / scalar tree with duplicate object keys merged.
func Parse(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, wrapErr(dec, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, wrapErr(dec, fmt.Errorf("expected object or array, got %v", tok))
	}

	switch delim {
	case '{':
		obj, err := parseObjectBody(dec)
		if err != nil {
			return nil, wrapErr(dec, err)
		}
		return obj, nil
	case '[':
		arr, err := parseArrayBody(dec)
		if err != nil {
			return nil, wrapErr(dec, err)
		}
		if len(arr) == 0 {
			return nil, plan.NewParseFailure("empty EXPLAIN JSON array")
		}
		first, ok := arr[0].(map[string]any)
		if !ok {
			return nil, wrapErr(dec, fmt.Errorf("expected object as first array element, got %T", arr[0]))
		}
		return first, nil
	default:
		return nil, wrapErr(dec, fmt.Errorf("unexpected delimiter %q", delim))
	}
}

func wrapErr(dec *json.Decoder, err error) error {
	if err == io.EOF {
		return plan.NewJSONSyntaxError(dec.InputOffset(), fmt.Errorf("unexpected end of JSON input"))
	}
	return plan.NewJSONSyntaxError(dec.InputOffset(), err)
}

// parseValue reads one JSON value already positioned at its first token.
func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return valueFromToken(dec, tok)
}

func valueFromToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObjectBody(dec)
		case '[':
			return parseArrayBody(dec)
		default:
			return nil, fmt.Errorf("unexpected closing delimiter %q", t)
		}
	case json.Number:
		return t, nil
	case string, bool, nil:
		return t, nil
	default:
		return t, nil
	}
}

// parseObjectBody reads object members up to (and consuming) the closing
// '}'. Duplicate keys at this level are deep-merged:
// "container close: pop; if a duplicate marker matches the popped level,
// deep-merge the popped container into the stored existing value".
func parseObjectBody(dec *json.Decoder) (map[string]any, error) {
	result := map[string]any{}
	order := []string{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string object key, got %v", keyTok)
		}

		val, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", key, err)
		}

		if existing, seen := result[key]; seen {
			result[key] = deepMerge(existing, val)
		} else {
			result[key] = val
			order = append(order, key)
		}
	}

	// Consume the closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return result, nil
}

func parseArrayBody(dec *json.Decoder) ([]any, error) {
	var arr []any
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// deepMerge implements the merge policy: objects merge key by
// key (recursing on shared keys), arrays concatenate element-wise, scalars
// overwrite (the new value wins).
func deepMerge(existing, incoming any) any {
	switch ex := existing.(type) {
	case map[string]any:
		in, ok := incoming.(map[string]any)
		if !ok {
			return incoming
		}
		for k, v := range in {
			if old, seen := ex[k]; seen {
				ex[k] = deepMerge(old, v)
			} else {
				ex[k] = v
			}
		}
		return ex
	case []any:
		in, ok := incoming.([]any)
		if !ok {
			return incoming
		}
		return append(ex, in...)
	default:
		return incoming
	}
}
