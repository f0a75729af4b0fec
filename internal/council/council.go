package council

// ============================================================================
// COUNCIL OF PERSONAS
// ============================================================================
// Five specialist roles over a single text generator. Each role owns a
// system prelude, a token budget, and a typed result. The council does
// no orchestration itself; callers decide which roles run and when.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Jooooov/wisdom-council/internal/backend"
)

// Budgets caps the completion size per role.
type Budgets struct {
	Explorer    int
	Validator   int
	Critic      int
	Modeler     int
	Synthesizer int
}

// DefaultBudgets returns the per-role token caps.
func DefaultBudgets() Budgets {
	return Budgets{
		Explorer:    1200,
		Validator:   800,
		Critic:      800,
		Modeler:     1000,
		Synthesizer: 700,
	}
}

// Council exposes the five roles as typed calls.
type Council struct {
	gen     backend.Generator
	budgets Budgets
	logger  *zap.Logger
}

// New builds a council over gen.
func New(gen backend.Generator, budgets Budgets, logger *zap.Logger) *Council {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Council{gen: gen, budgets: budgets, logger: logger}
}

// ============================================================================
// ROLE PRELUDES
// ============================================================================

const explorerPrelude = `You are a strategic explorer. Given a topic, you propose distinct, creative approaches to pursue it. Each approach must differ meaningfully from the others in strategy, not just wording.`

const validatorPrelude = `You are a pragmatic feasibility validator. You assess whether a proposed approach can actually be built and shipped, grounding your verdict in concrete technical and organizational constraints.`

const criticPrelude = `You are an adversarial risk critic. You attack a proposed approach: find what breaks it, challenge its assumptions, and rate how well its risks can be mitigated. A high score means the risks are manageable, not absent.`

const modelerPrelude = `You are a financial modeler. You project costs, revenue, and return for a proposed approach, with best, mid, and worst case scenarios. Be concrete with numbers even under uncertainty.`

const synthesizerPrelude = `You are a decision synthesizer. Given scored branch summaries from a full analysis, you issue one final recommendation: GO, NO_GO, or NEEDS_MORE_INFO, with a confidence and a rationale.`

// ============================================================================
// ROLE CALLS
// ============================================================================

// GenerateBranches asks the explorer for count distinct approaches to
// the topic. priorContext carries recalled past analyses and, on deep
// levels, the parent branch being refined; empty is fine.
func (c *Council) GenerateBranches(ctx context.Context, topic string, count int, priorContext string) (*BranchSet, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nTopic: %s\n\n", explorerPrelude, trimTopic(topic))
	if priorContext != "" {
		fmt.Fprintf(&b, "Context from prior analysis:\n%s\n\n", priorContext)
	}
	fmt.Fprintf(&b, `Propose exactly %d distinct approaches. Reply with valid JSON only:
{
  "branches": [
    {"label": "short name", "description": "2-3 sentence approach", "key_assumption": "the one assumption this bets on", "confidence": 0.0-1.0}
  ],
  "reasoning_summary": "one paragraph on how the approaches differ"
}`, count)

	raw, err := c.gen.Generate(ctx, b.String(), c.budgets.Explorer)
	if err != nil {
		return nil, err
	}
	var set BranchSet
	if err := Unmarshal(raw, &set); err != nil {
		c.logger.Debug("explorer output unparseable", zap.Error(err))
		return nil, err
	}
	if len(set.Branches) > count {
		set.Branches = set.Branches[:count]
	}
	return &set, nil
}

// CheckFeasibility runs the validator against one branch.
func (c *Council) CheckFeasibility(ctx context.Context, branchLabel, branchDescription string) (*FeasibilityReport, error) {
	prompt := fmt.Sprintf(`%s

Approach "%s": %s

Assess feasibility. Reply with valid JSON only:
{
  "verdict": "FEASIBLE" | "PARTIALLY_FEASIBLE" | "NOT_FEASIBLE",
  "feasibility_score": 0.0-1.0,
  "blockers": ["hard obstacles, empty if none"],
  "requirements": ["what must be in place"],
  "timeline_estimate": "e.g. 3-6 months",
  "reasoning": "short justification"
}`, validatorPrelude, branchLabel, branchDescription)

	raw, err := c.gen.Generate(ctx, prompt, c.budgets.Validator)
	if err != nil {
		return nil, err
	}
	var rep FeasibilityReport
	if err := Unmarshal(raw, &rep); err != nil {
		c.logger.Debug("validator output unparseable", zap.Error(err))
		return nil, err
	}
	return &rep, nil
}

// CritiqueRisks runs the critic against one branch. feasibility is the
// validator's JSON for the same branch, so the critic can attack the
// verdict as well as the approach; nil is allowed.
func (c *Council) CritiqueRisks(ctx context.Context, branchLabel, branchDescription string, feasibility json.RawMessage) (*RiskReport, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nApproach %q: %s\n\n", criticPrelude, branchLabel, branchDescription)
	if len(feasibility) > 0 {
		fmt.Fprintf(&b, "Feasibility assessment to challenge:\n%s\n\n", feasibility)
	}
	b.WriteString(`Identify the risks. Reply with valid JSON only:
{
  "risk_score": 0.0-1.0,
  "risks": [
    {"risk": "what can go wrong", "likelihood": 0.0-1.0, "impact": "high|medium|low", "mitigation": "how to reduce it"}
  ],
  "challenged_assumptions": ["assumptions that may not hold"],
  "counter_arguments": ["the case against this approach"],
  "overall_assessment": "one paragraph"
}`)

	raw, err := c.gen.Generate(ctx, b.String(), c.budgets.Critic)
	if err != nil {
		return nil, err
	}
	var rep RiskReport
	if err := Unmarshal(raw, &rep); err != nil {
		c.logger.Debug("critic output unparseable", zap.Error(err))
		return nil, err
	}
	return &rep, nil
}

// ModelFinancials runs the modeler against one branch. budget is the
// caller's stated spending capacity, free text.
func (c *Council) ModelFinancials(ctx context.Context, branchLabel, branchDescription, topic, budget string) (*FinancialModel, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nTopic: %s\nApproach %q: %s\n", modelerPrelude, trimTopic(topic), branchLabel, branchDescription)
	if budget != "" {
		fmt.Fprintf(&b, "Available budget: %s\n", budget)
	}
	b.WriteString(`
Project the financials. Reply with valid JSON only:
{
  "financial_score": 0.0-1.0,
  "dev_cost_estimate": "e.g. $40k-$80k",
  "revenue_projection": {"year_1": "...", "year_2": "..."},
  "roi_estimate": 1.5,
  "scenarios": {
    "best_case": {"roi": 3.0, "timeline": "12 months"},
    "mid_case": {"roi": 1.5, "timeline": "18 months"},
    "worst_case": {"roi": 0.3, "timeline": "24+ months"}
  },
  "confidence": 0.0-1.0,
  "key_assumptions": ["what the numbers rest on"]
}`)

	raw, err := c.gen.Generate(ctx, b.String(), c.budgets.Modeler)
	if err != nil {
		return nil, err
	}
	var model FinancialModel
	if err := Unmarshal(raw, &model); err != nil {
		c.logger.Debug("modeler output unparseable", zap.Error(err))
		return nil, err
	}
	return &model, nil
}

// Synthesize issues the final recommendation from at most eight branch
// summaries. Callers truncate; the cap keeps the prompt inside the
// synthesizer's context share.
func (c *Council) Synthesize(ctx context.Context, topic string, summaries []BranchSummary) (*Synthesis, error) {
	if len(summaries) > 8 {
		summaries = summaries[:8]
	}
	digest, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(`%s

Topic: %s

Evaluated branches:
%s

Reply with valid JSON only:
{
  "decision": "GO" | "NO_GO" | "NEEDS_MORE_INFO",
  "confidence": 0.0-1.0,
  "best_branch": "label of the strongest branch",
  "rationale": "one paragraph",
  "key_success_factors": ["..."],
  "recommended_next_steps": ["..."]
}`, synthesizerPrelude, trimTopic(topic), digest)

	raw, err := c.gen.Generate(ctx, prompt, c.budgets.Synthesizer)
	if err != nil {
		return nil, err
	}
	var syn Synthesis
	if err := Unmarshal(raw, &syn); err != nil {
		c.logger.Debug("synthesizer output unparseable", zap.Error(err))
		return nil, err
	}
	return &syn, nil
}
