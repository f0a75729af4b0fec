package tree

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Decision is the caller-facing output: the best path, the leaf's
// evaluator outputs, and the full node dump for audit and export.
type Decision struct {
	Topic       string    `json:"topic"`
	GeneratedAt time.Time `json:"generated_at"`
	Config      Config    `json:"config"`

	// Confidence is the best leaf's composite score, 0.0 when the
	// tree never reached an evaluated leaf.
	Confidence float64  `json:"confidence"`
	BestPath   []string `json:"best_path"`

	FinancialProjection json.RawMessage `json:"financial_projection,omitempty"`
	RiskAssessment      json.RawMessage `json:"risk_assessment,omitempty"`

	FullTree []*Node `json:"full_tree"`
}

// BuildDecision assembles the final structured output.
func (t *Tree) BuildDecision(topic string) *Decision {
	path := t.BestPath()

	var leaf *Node
	if len(path) > 1 {
		leaf = path[len(path)-1]
	}

	labels := make([]string, 0, len(path))
	for _, n := range path {
		labels = append(labels, n.Label)
	}

	d := &Decision{
		Topic:       topic,
		GeneratedAt: time.Now(),
		Config:      t.cfg,
		BestPath:    labels,
		FullTree:    t.Nodes(),
	}
	if leaf != nil {
		d.Confidence = leaf.Composite
		d.FinancialProjection = leaf.FinancialOut
		d.RiskAssessment = leaf.RiskOut
	}
	return d
}

// Summary renders a depth-indented text dump of every node, for
// end-of-run printing and the tree show command.
func (t *Tree) Summary() string {
	var sb strings.Builder
	for _, node := range t.Nodes() {
		indent := strings.Repeat("  ", node.Depth)
		status := "pending"
		switch {
		case node.Pruned:
			status = "pruned"
		case node.Evaluated:
			status = fmt.Sprintf("score=%.3f", node.Composite)
		}
		desc := node.Description
		if r := []rune(desc); len(r) > 50 {
			desc = string(r[:50]) + "..."
		}
		fmt.Fprintf(&sb, "%s[%s] %s | %s\n", indent, node.Label, desc, status)
	}
	return sb.String()
}
