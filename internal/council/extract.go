package council

// ============================================================================
// STRUCTURED OUTPUT EXTRACTION
// ============================================================================
// Local models wrap their JSON in reasoning traces, markdown fences, and
// prose. Extraction here is tolerant: strip what we recognize as wrapping,
// then find the first balanced JSON object anywhere in what remains.

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoResult signals that the raw text contained no parseable JSON
// object. Callers treat it as a soft miss, not a pipeline failure.
var ErrNoResult = errors.New("council: no JSON object in model output")

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	// A <think> with no closing tag means the model spent its whole
	// budget reasoning; everything after the tag is trace, not answer.
	openThinkRe = regexp.MustCompile(`(?s)<think>.*$`)
	fenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ExtractJSON pulls the first balanced JSON object out of raw model
// output. It returns the object's bytes, or ErrNoResult when none is
// found.
func ExtractJSON(raw string) ([]byte, error) {
	text := thinkBlockRe.ReplaceAllString(raw, "")
	text = openThinkRe.ReplaceAllString(text, "")

	// Prefer fenced content when present; models that fence usually
	// put only the answer inside.
	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		if obj, ok := firstObject(m[1]); ok {
			return obj, nil
		}
	}

	if obj, ok := firstObject(text); ok {
		return obj, nil
	}
	return nil, ErrNoResult
}

// firstObject scans for a '{' and walks forward counting brace depth,
// skipping braces inside string literals, until the object closes.
// Each balanced candidate is verified with json.Valid before use.
func firstObject(text string) ([]byte, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			switch {
			case escaped:
				escaped = false
			case c == '\\' && inString:
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					candidate := []byte(text[start : i+1])
					if json.Valid(candidate) {
						return candidate, true
					}
					i = len(text) // abandon this start
				}
			}
		}
	}
	return nil, false
}

// Unmarshal extracts and decodes in one step.
func Unmarshal(raw string, v any) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, v); err != nil {
		return errors.New("council: malformed JSON object: " + err.Error())
	}
	return nil
}

// trimTopic keeps prompt preludes short when callers pass a whole
// analysis report as the topic line.
func trimTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	topic = strings.TrimPrefix(topic, "[Analysis topic]")
	topic = strings.TrimSpace(topic)
	if i := strings.Index(topic, "\n"); i >= 0 {
		topic = topic[:i]
	}
	if r := []rune(topic); len(r) > 200 {
		topic = string(r[:200])
	}
	return topic
}
