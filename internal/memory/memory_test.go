package memory

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Jooooov/wisdom-council/internal/store"
)

// fakeLog is an in-memory AnalysisLog.
type fakeLog struct {
	records []store.AnalysisRecord
	scanErr error
}

func (f *fakeLog) AppendAnalysis(rec store.AnalysisRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLog) ScanAnalyses() ([]store.AnalysisRecord, error) {
	return f.records, f.scanErr
}

func record(category, input string, confidence float64) store.AnalysisRecord {
	return store.AnalysisRecord{
		Category:      category,
		Input:         input,
		FinalDecision: "GO",
		Confidence:    confidence,
		StoredAt:      time.Now().UTC(),
	}
}

func TestRetrieveSimilarEmptyLog(t *testing.T) {
	t.Parallel()
	m := New(&fakeLog{}, nil)

	matches, err := m.RetrieveSimilar("open a bakery", "business", RetrieveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("got %d matches from an empty log", len(matches))
	}
}

func TestRetrieveSimilarRelevance(t *testing.T) {
	t.Parallel()
	log := &fakeLog{records: []store.AnalysisRecord{
		record("business", "open a bakery in town", 0.9),     // category + words
		record("technical", "open source the bakery", 0.9),   // words only
		record("business", "migrate billing to stripe", 0.9), // category only
		record("technical", "rewrite compiler backend", 0.9), // nothing shared
	}}
	m := New(log, nil)

	matches, err := m.RetrieveSimilar("open a bakery", "business", RetrieveOptions{MinConfidence: 0.65})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}

	// category(2.0) + 3 shared words(1.5) = 3.5
	if matches[0].Record.Input != "open a bakery in town" || matches[0].Relevance != 3.5 {
		t.Errorf("match 0: %+v", matches[0])
	}
	// category(2.0) only = 2.0
	if matches[1].Record.Input != "migrate billing to stripe" || matches[1].Relevance != 2.0 {
		t.Errorf("match 1: %+v", matches[1])
	}
	// 2 shared words = 1.0
	if matches[2].Record.Input != "open source the bakery" || matches[2].Relevance != 1.0 {
		t.Errorf("match 2: %+v", matches[2])
	}
}

func TestRetrieveSimilarConfidenceGate(t *testing.T) {
	t.Parallel()
	log := &fakeLog{records: []store.AnalysisRecord{
		record("business", "open a bakery", 0.64),
		record("business", "open a bakery", 0.65),
	}}
	m := New(log, nil)

	matches, err := m.RetrieveSimilar("open a bakery", "business", RetrieveOptions{MinConfidence: 0.65})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Record.Confidence != 0.65 {
		t.Fatalf("confidence gate broken: %+v", matches)
	}
}

func TestRetrieveSimilarLimit(t *testing.T) {
	t.Parallel()
	log := &fakeLog{}
	for i := 0; i < 10; i++ {
		log.records = append(log.records, record("business", "same idea again", 0.9))
	}
	m := New(log, nil)

	matches, err := m.RetrieveSimilar("idea", "business", RetrieveOptions{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want limit 3", len(matches))
	}
}

func TestRetrieveSimilarZeroRelevanceExcluded(t *testing.T) {
	t.Parallel()
	log := &fakeLog{records: []store.AnalysisRecord{
		record("technical", "rewrite compiler backend", 0.9),
	}}
	m := New(log, nil)

	matches, err := m.RetrieveSimilar("open a bakery", "business", RetrieveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatal("unrelated record must never be recalled")
	}
}

func TestRetrieveSimilarSkipsCorruptPath(t *testing.T) {
	t.Parallel()
	bad := record("business", "open a bakery", 0.9)
	bad.PathJSON = []byte("not json")
	log := &fakeLog{records: []store.AnalysisRecord{bad, record("business", "open a bakery", 0.8)}}
	m := New(log, nil)

	matches, err := m.RetrieveSimilar("bakery", "business", RetrieveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Record.Confidence != 0.8 {
		t.Fatalf("corrupt record handling: %+v", matches)
	}
}

func TestRetrieveSimilarScanError(t *testing.T) {
	t.Parallel()
	scanErr := errors.New("db locked")
	m := New(&fakeLog{scanErr: scanErr}, nil)

	if _, err := m.RetrieveSimilar("q", "c", RetrieveOptions{}); !errors.Is(err, scanErr) {
		t.Fatalf("got %v", err)
	}
}

func TestStoreAnalysisSerializesPath(t *testing.T) {
	t.Parallel()
	log := &fakeLog{}
	m := New(log, nil)

	steps := []PathStep{{Actor: "council", Thought: "sell as a service", Score: 0.82}}
	if err := m.StoreAnalysis("business", "launch a tool", steps, "GO", 0.82); err != nil {
		t.Fatal(err)
	}
	if len(log.records) != 1 {
		t.Fatalf("got %d records", len(log.records))
	}

	var got []PathStep
	if err := json.Unmarshal(log.records[0].PathJSON, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Thought != "sell as a service" {
		t.Fatalf("round-tripped path: %+v", got)
	}
	if !strings.Contains(string(log.records[0].PathJSON), `"agent"`) {
		t.Error("path step actor must serialize under the agent key")
	}
}

func TestFormatForPrompt(t *testing.T) {
	t.Parallel()
	if got := FormatForPrompt(nil); got != "" {
		t.Fatalf("empty input must format to empty string, got %q", got)
	}

	long := make([]PathStep, 5)
	for i := range long {
		long[i] = PathStep{Actor: "council", Thought: "step", Score: 0.5}
	}
	matches := []Match{{
		Record: Record{
			Category:      "business",
			Input:         "open a bakery",
			Path:          long,
			FinalDecision: "GO",
			Confidence:    0.8,
		},
		Relevance: 2.5,
	}}

	out := FormatForPrompt(matches)
	if !strings.Contains(out, "[business] open a bakery -> GO") {
		t.Errorf("summary line missing:\n%s", out)
	}
	if n := strings.Count(out, "council: step"); n != 3 {
		t.Errorf("got %d path steps in prompt, want capped 3", n)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	log := &fakeLog{records: []store.AnalysisRecord{
		record("business", "a", 0.9),
		record("business", "b", 0.3),
		record("technical", "c", 0.7),
	}}
	log.records[1].FinalDecision = "NO_GO"
	m := New(log, nil)

	stats, err := m.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.ByCategory["business"] != 2 || stats.ByDecision["NO_GO"] != 1 {
		t.Fatalf("stats: %+v", stats)
	}
}
