package tree

import (
	"encoding/json"
	"math"
	"time"
)

// RootLabel is the fixed label of the root node. It is a sentinel and
// is never concatenated into child labels.
const RootLabel = "ROOT"

// Node is one candidate reasoning branch.
type Node struct {
	ID       string `json:"id"`
	Depth    int    `json:"depth"`
	ParentID string `json:"parent_id,omitempty"` // empty for root

	// Label is hierarchical: a child of root gets its local label,
	// deeper nodes get parent.Label + "." + local.
	Label       string `json:"label"`
	Description string `json:"description"`

	// Evaluator sub-scores, each clamped to [0,1].
	// Risk is a mitigation score: 1.0 = low risk (safe).
	Feasibility float64 `json:"feasibility"`
	Risk        float64 `json:"risk_mitigation"`
	Financial   float64 `json:"financial"`
	// Composite is the arithmetic mean of the three, defined only
	// while Evaluated is true.
	Composite float64 `json:"composite"`

	Evaluated bool `json:"evaluated"`
	Pruned    bool `json:"pruned"`
	Expanded  bool `json:"expanded"`

	// Full structured evaluator outputs, kept for synthesis and audit.
	FeasibilityOut json.RawMessage `json:"feasibility_output,omitempty"`
	RiskOut        json.RawMessage `json:"risk_output,omitempty"`
	FinancialOut   json.RawMessage `json:"financial_output,omitempty"`

	Children []string `json:"children"`

	CreatedAt   time.Time  `json:"created_at"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

// IsRoot reports whether the node is the tree root.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}

// round3 matches the persisted score precision.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// clamp01 bounds a score to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
