package detect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Parse extracts a detection outcome from the tool's output.
//
// The tool may print model-loading chatter before its JSON payload, so parsing
// is a salvage chain rather than a strict decode:
//  1. decode the text from the first '{' (then the first '[') to the end
//  2. decode the whole of stdout
//  3. an object with a "detections" array becomes Structured
//  4. any other JSON value becomes RawText of its compact encoding
//  5. otherwise RawText of trimmed stdout, or trimmed stderr when stdout is
//     empty, or Absent when both are empty
func Parse(stdout, stderr string) Outcome {
	for _, candidate := range jsonCandidates(stdout) {
		if raw, ok := decodeJSON(candidate); ok {
			return fromJSON(raw)
		}
	}

	trimmed := strings.TrimSpace(stdout)
	if raw, ok := decodeJSON(trimmed); ok {
		return fromJSON(raw)
	}

	if trimmed != "" {
		return RawText(trimmed)
	}
	if text := strings.TrimSpace(stderr); text != "" {
		return RawText(text)
	}
	return Absent()
}

// jsonCandidates returns the suffixes of s starting at the first '{' and the
// first '[', in that order.
func jsonCandidates(s string) []string {
	var candidates []string
	if i := strings.IndexByte(s, '{'); i >= 0 {
		candidates = append(candidates, s[i:])
	}
	if i := strings.IndexByte(s, '['); i >= 0 {
		candidates = append(candidates, s[i:])
	}
	return candidates
}

// decodeJSON accepts s only when all of it, surrounding whitespace aside, is a
// single JSON value.
func decodeJSON(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

func fromJSON(raw json.RawMessage) Outcome {
	var payload struct {
		Detections json.RawMessage `json:"detections"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		var elems []json.RawMessage
		if len(payload.Detections) > 0 && json.Unmarshal(payload.Detections, &elems) == nil && elems != nil {
			items := make([]Item, 0, len(elems))
			for _, elem := range elems {
				items = append(items, toItem(elem))
			}
			return Structured(items)
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return RawText(strings.TrimSpace(string(raw)))
	}
	return RawText(compact.String())
}

// toItem maps one detections element leniently: a missing label becomes
// "unknown" and a non-numeric confidence becomes 0.
func toItem(elem json.RawMessage) Item {
	var fields map[string]any
	if err := json.Unmarshal(elem, &fields); err != nil {
		return Item{Label: "unknown"}
	}

	item := Item{Label: "unknown"}
	switch label := fields["label"].(type) {
	case string:
		item.Label = label
	case nil:
	default:
		item.Label = fmt.Sprint(label)
	}
	if confidence, ok := fields["confidence"].(float64); ok {
		item.Confidence = confidence
	}
	return item
}
