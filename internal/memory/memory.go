package memory

// ============================================================================
// REASONING MEMORY
// ============================================================================
// Append-only log of completed analyses with keyword retrieval. No
// embeddings: relevance is category match plus shared-word overlap,
// which is enough to surface "we looked at something like this before"
// without a vector store.

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jooooov/wisdom-council/internal/store"
)

// PathStep is one node of a winning reasoning path, as remembered.
type PathStep struct {
	Actor   string  `json:"agent"`
	Thought string  `json:"thought"`
	Score   float64 `json:"score"`
}

// Record is one remembered analysis.
type Record struct {
	ID            string
	Category      string
	Input         string
	Path          []PathStep
	FinalDecision string
	Confidence    float64
	StoredAt      time.Time
}

// Match pairs a retrieved record with its relevance to the query.
type Match struct {
	Record    Record
	Relevance float64
}

// AnalysisLog is the slice of the store the memory needs.
type AnalysisLog interface {
	AppendAnalysis(rec store.AnalysisRecord) error
	ScanAnalyses() ([]store.AnalysisRecord, error)
}

// RetrieveOptions tunes retrieval. Zero values fall back to defaults.
type RetrieveOptions struct {
	MinConfidence  float64 // records below this are never recalled
	Limit          int     // max matches returned
	CategoryWeight float64 // relevance per exact category match
	WordWeight     float64 // relevance per shared word
}

// DefaultRetrieveOptions returns the standard retrieval tuning.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		MinConfidence:  0.65,
		Limit:          3,
		CategoryWeight: 2.0,
		WordWeight:     0.5,
	}
}

func (o RetrieveOptions) withDefaults() RetrieveOptions {
	def := DefaultRetrieveOptions()
	if o.Limit <= 0 {
		o.Limit = def.Limit
	}
	if o.CategoryWeight == 0 {
		o.CategoryWeight = def.CategoryWeight
	}
	if o.WordWeight == 0 {
		o.WordWeight = def.WordWeight
	}
	return o
}

// Memory retrieves and stores analyses over an AnalysisLog.
type Memory struct {
	log    AnalysisLog
	logger *zap.Logger
}

// New builds a memory over log.
func New(log AnalysisLog, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{log: log, logger: logger}
}

// StoreAnalysis appends one completed analysis to the log.
func (m *Memory) StoreAnalysis(category, input string, path []PathStep, decision string, confidence float64) error {
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return err
	}
	return m.log.AppendAnalysis(store.AnalysisRecord{
		Category:      category,
		Input:         input,
		PathJSON:      pathJSON,
		FinalDecision: decision,
		Confidence:    confidence,
		StoredAt:      time.Now().UTC(),
	})
}

// RetrieveSimilar returns past analyses relevant to the query, most
// relevant first. Low-confidence records and zero-relevance records are
// never returned.
func (m *Memory) RetrieveSimilar(query, category string, opts RetrieveOptions) ([]Match, error) {
	opts = opts.withDefaults()
	recs, err := m.log.ScanAnalyses()
	if err != nil {
		return nil, err
	}
	queryWords := wordSet(query)

	var matches []Match
	for _, raw := range recs {
		if raw.Confidence < opts.MinConfidence {
			continue
		}
		var relevance float64
		if category != "" && raw.Category == category {
			relevance += opts.CategoryWeight
		}
		relevance += opts.WordWeight * float64(sharedWords(queryWords, raw.Input))
		if relevance <= 0 {
			continue
		}
		rec, err := fromStored(raw)
		if err != nil {
			m.logger.Warn("skipping corrupt memory record",
				zap.String("id", raw.ID), zap.Error(err))
			continue
		}
		matches = append(matches, Match{Record: rec, Relevance: relevance})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Relevance > matches[j].Relevance
	})
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, nil
}

// FormatForPrompt renders matches as a compact context block for the
// explorer. Empty input yields the empty string.
func FormatForPrompt(matches []Match) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant past analyses:\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "- [%s] %s -> %s (confidence %.2f)\n",
			m.Record.Category, m.Record.Input, m.Record.FinalDecision, m.Record.Confidence)
		steps := m.Record.Path
		if len(steps) > 3 {
			steps = steps[:3]
		}
		for _, s := range steps {
			fmt.Fprintf(&b, "    %s: %s (%.3f)\n", s.Actor, s.Thought, s.Score)
		}
	}
	return b.String()
}

// Stats summarizes what the memory holds.
type Stats struct {
	Total      int
	ByCategory map[string]int
	ByDecision map[string]int
}

// Stats scans the log and counts records by category and decision.
func (m *Memory) Stats() (Stats, error) {
	recs, err := m.log.ScanAnalyses()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Total:      len(recs),
		ByCategory: map[string]int{},
		ByDecision: map[string]int{},
	}
	for _, r := range recs {
		st.ByCategory[r.Category]++
		st.ByDecision[r.FinalDecision]++
	}
	return st, nil
}

func fromStored(raw store.AnalysisRecord) (Record, error) {
	var path []PathStep
	if len(raw.PathJSON) > 0 {
		if err := json.Unmarshal(raw.PathJSON, &path); err != nil {
			return Record{}, err
		}
	}
	return Record{
		ID:            raw.ID,
		Category:      raw.Category,
		Input:         raw.Input,
		Path:          path,
		FinalDecision: raw.FinalDecision,
		Confidence:    raw.Confidence,
		StoredAt:      raw.StoredAt,
	}, nil
}

func wordSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func sharedWords(query map[string]struct{}, text string) int {
	n := 0
	for w := range wordSet(text) {
		if _, ok := query[w]; ok {
			n++
		}
	}
	return n
}
