package council

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractJSONPlainObject(t *testing.T) {
	t.Parallel()
	got, err := ExtractJSON(`{"verdict": "FEASIBLE"}`)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"verdict": "FEASIBLE"}` {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJSONWithProsePreamble(t *testing.T) {
	t.Parallel()
	raw := `Sure! Here is my assessment of the approach:

{"verdict": "FEASIBLE", "feasibility_score": 0.8}

Let me know if you need anything else.`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"verdict": "FEASIBLE", "feasibility_score": 0.8}` {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJSONStripsThinkBlock(t *testing.T) {
	t.Parallel()
	raw := `<think>
The user wants JSON. Maybe {"decision": "NO_GO"}? No, I should say GO.
</think>
{"decision": "GO"}`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"decision": "GO"}` {
		t.Fatalf("think-block contents leaked: %q", got)
	}
}

func TestExtractJSONTruncatedThinkBlock(t *testing.T) {
	t.Parallel()
	// The model ran out of tokens mid-reasoning; everything after
	// <think> is trace, even JSON-looking fragments.
	raw := `{"decision": "GO"} <think> now let me reconsider {"decision": "NO_GO"`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"decision": "GO"}` {
		t.Fatalf("got %q", got)
	}

	// Nothing but an open think block means no result at all.
	if _, err := ExtractJSON(`<think> hmm {"decision": "GO"}`); !errors.Is(err, ErrNoResult) {
		t.Fatalf("want ErrNoResult, got %v", err)
	}
}

func TestExtractJSONFencedBlock(t *testing.T) {
	t.Parallel()
	raw := "Here you go:\n```json\n{\"risk_score\": 0.7}\n```\nDone."
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"risk_score": 0.7}` {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJSONNestedAndStrings(t *testing.T) {
	t.Parallel()
	raw := `prefix {"a": {"b": "curly } brace in string", "c": [1, 2]}, "d": "x"} suffix`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a": {"b": "curly } brace in string", "c": [1, 2]}, "d": "x"}` {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJSONSkipsInvalidCandidate(t *testing.T) {
	t.Parallel()
	// The first balanced-brace span is not valid JSON; the real
	// object comes later.
	raw := `{not json} and then {"ok": true}`
	got, err := ExtractJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"ok": true}` {
		t.Fatalf("got %q", got)
	}
}

func TestExtractJSONNoResult(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"I could not produce a structured answer.",
		`{"never": "closed"`,
		"<think>only reasoning</think>",
	} {
		if _, err := ExtractJSON(raw); !errors.Is(err, ErrNoResult) {
			t.Errorf("ExtractJSON(%q): want ErrNoResult, got %v", raw, err)
		}
	}
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()
	var rep FeasibilityReport
	raw := "```json\n{\"verdict\": \"PARTIALLY_FEASIBLE\", \"feasibility_score\": 0.55}\n```"
	if err := Unmarshal(raw, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Verdict != VerdictPartiallyFeasible || rep.FeasibilityScore != 0.55 {
		t.Fatalf("decoded %+v", rep)
	}
}

func TestTrimTopic(t *testing.T) {
	t.Parallel()
	if got := trimTopic("  short idea  "); got != "short idea" {
		t.Errorf("got %q", got)
	}
	if got := trimTopic("first line\nsecond line"); got != "first line" {
		t.Errorf("got %q", got)
	}
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	if got := trimTopic(string(long)); len(got) != 200 {
		t.Errorf("len = %d, want 200", len(got))
	}

	// Truncation never splits a multibyte rune.
	wide := strings.Repeat("é", 300)
	got := trimTopic(wide)
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != 200 {
		t.Errorf("rune count = %d, want 200", n)
	}
}
