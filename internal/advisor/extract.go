package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DetectMarker locates the machine-readable assessment block inside a raw
// model reply. Detection is purely syntactic: the marker is either a fenced
// ```json block, a reply that is itself a JSON object, or a bare JSON
// object embedded in prose that carries a top-level career_recommendations
// key. Whether the model actually gathered enough information is not
// re-judged here; that call belongs to the model.
//
// A fenced block counts as a marker even when its contents are broken
// JSON. That case must surface as a failed extraction, not as "keep
// chatting as if nothing happened".
func DetectMarker(raw string) (payload string, found bool) {
	if block, ok := fencedBlock(raw); ok {
		return block, true
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}

	// Prose before/after a bare object. Insist on the assessment key so a
	// stray brace pair in conversation does not end the session.
	if i := strings.Index(raw, "{"); i >= 0 {
		if j := strings.LastIndex(raw, "}"); j > i {
			cand := raw[i : j+1]
			if json.Valid([]byte(cand)) && hasTopLevelKey(cand, "career_recommendations") {
				return cand, true
			}
		}
	}
	return "", false
}

// IsComplete reports whether the raw model reply carries a completion
// marker. See DetectMarker for what that means and does not mean.
func IsComplete(raw string) bool {
	_, ok := DetectMarker(raw)
	return ok
}

// Extract parses the marker out of a raw model reply and validates it into
// a RecommendationDocument. It is pure and deterministic: the same input
// always yields the same document or the same error. Unknown fields in the
// payload are ignored; missing required fields, out-of-range scores and
// out-of-vocabulary career names fail with a field-level ExtractionError.
func Extract(raw string) (*RecommendationDocument, error) {
	payload, ok := DetectMarker(raw)
	if !ok {
		return nil, &ExtractionError{Fields: []string{"no assessment marker present"}}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &top); err != nil {
		return nil, &ExtractionError{Fields: []string{fmt.Sprintf("marker is not a JSON object: %v", err)}}
	}
	var missing []string
	for _, key := range []string{"user_summary", "career_recommendations", "overall_assessment_notes"} {
		if _, ok := top[key]; !ok {
			missing = append(missing, "missing required field: "+key)
		}
	}
	if len(missing) > 0 {
		return nil, &ExtractionError{Fields: missing}
	}

	var doc RecommendationDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, &ExtractionError{Fields: []string{fmt.Sprintf("marker does not match the assessment shape: %v", err)}}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// fencedBlock returns the contents of the first ``` fence that looks like
// JSON (a ```json tag, or contents opening with a brace).
func fencedBlock(raw string) (string, bool) {
	rest := raw
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			return "", false
		}
		rest = rest[start+3:]
		end := strings.Index(rest, "```")
		if end < 0 {
			return "", false
		}
		block := rest[:end]
		rest = rest[end+3:]

		if tag, body, ok := strings.Cut(block, "\n"); ok && strings.EqualFold(strings.TrimSpace(tag), "json") {
			return strings.TrimSpace(body), true
		}
		if b := strings.TrimSpace(block); strings.HasPrefix(b, "{") {
			return b, true
		}
	}
}

func hasTopLevelKey(payload, key string) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &top); err != nil {
		return false
	}
	_, ok := top[key]
	return ok
}
