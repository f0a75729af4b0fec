package engine

// ============================================================================
// ANALYSIS ENGINE
// ============================================================================
// Drives one full analysis: recall prior work, grow the reasoning tree
// level by level through the council, prune, synthesize, remember. All
// generation goes through the router, so any phase can come back empty
// under memory pressure; the engine degrades instead of aborting.

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Jooooov/wisdom-council/internal/config"
	"github.com/Jooooov/wisdom-council/internal/council"
	"github.com/Jooooov/wisdom-council/internal/memory"
	"github.com/Jooooov/wisdom-council/internal/router"
	"github.com/Jooooov/wisdom-council/internal/tree"
)

// Request is one analysis to run.
type Request struct {
	Idea     string
	Category string // free-form, e.g. "business", "technical"
	Budget   string // free text, passed to the financial modeler
	Reset    bool   // discard any persisted tree before starting
}

// Report is the full outcome of one analysis.
type Report struct {
	Decision  *tree.Decision     `json:"decision"`
	Synthesis *council.Synthesis `json:"synthesis"`
	Recalled  int                `json:"recalled_analyses"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// Engine owns one tree, one council, one router, one memory.
type Engine struct {
	cfg     *config.Config
	tree    *tree.Tree
	council *council.Council
	router  *router.Router
	memory  *memory.Memory
	logger  *zap.Logger
}

// New assembles an engine from already-built components.
func New(cfg *config.Config, tr *tree.Tree, c *council.Council, r *router.Router, mem *memory.Memory, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, tree: tr, council: c, router: r, memory: mem, logger: logger}
}

// Tree exposes the engine's tree for inspection commands.
func (e *Engine) Tree() *tree.Tree { return e.tree }

// Memory exposes the engine's memory for inspection commands.
func (e *Engine) Memory() *memory.Memory { return e.memory }

// RunAnalysis executes the whole pipeline for one idea.
func (e *Engine) RunAnalysis(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()

	if req.Reset {
		if err := e.tree.Reset(); err != nil {
			return nil, fmt.Errorf("resetting tree: %w", err)
		}
	}

	recalled := e.recall(req)

	root, err := e.tree.CreateRoot(req.Idea)
	if err != nil {
		return nil, err
	}

	// Level 1: explore the idea itself.
	level1 := e.expand(ctx, root, req, memory.FormatForPrompt(recalled))
	for _, n := range level1 {
		e.evaluate(ctx, n, req)
	}
	if err := e.tree.PruneWeakBranches(level1); err != nil {
		return nil, err
	}

	// Level 2: refine each survivor, depth permitting.
	survivors := e.tree.SelectTopK(level1, e.tree.Config().Survivors)
	if e.tree.Config().MaxDepth >= 2 {
		for _, parent := range survivors {
			children := e.expand(ctx, parent, req, "")
			for _, n := range children {
				e.evaluate(ctx, n, req)
			}
			if err := e.tree.PruneWeakBranches(children); err != nil {
				return nil, err
			}
		}
	}

	// Level 3: within each survivor's subtree, go one level deeper on
	// its single best child only.
	if e.tree.Config().MaxDepth > 2 {
		for _, parent := range survivors {
			best := e.tree.SelectTopK(e.tree.Children(parent), 1)
			if len(best) == 0 || best[0].Expanded {
				continue
			}
			children := e.expand(ctx, best[0], req, "")
			for _, n := range children {
				e.evaluate(ctx, n, req)
			}
			if err := e.tree.PruneWeakBranches(children); err != nil {
				return nil, err
			}
		}
	}

	syn := e.synthesize(ctx, req)

	decision := e.tree.BuildDecision(req.Idea)

	e.remember(req, decision, syn)

	e.logger.Info("analysis complete",
		zap.String("decision", syn.Decision),
		zap.Float64("confidence", decision.Confidence),
		zap.Duration("elapsed", time.Since(started)))

	return &Report{
		Decision:  decision,
		Synthesis: syn,
		Recalled:  len(recalled),
		Elapsed:   time.Since(started),
	}, nil
}

// recall pulls relevant past analyses; a memory failure only costs
// context, never the run.
func (e *Engine) recall(req Request) []memory.Match {
	if e.memory == nil {
		return nil
	}
	opts := memory.DefaultRetrieveOptions()
	opts.MinConfidence = e.cfg.Memory.MinConfidence
	opts.Limit = e.cfg.Memory.RetrieveLimit
	matches, err := e.memory.RetrieveSimilar(req.Idea, req.Category, opts)
	if err != nil {
		e.logger.Warn("memory retrieval failed", zap.Error(err))
		return nil
	}
	return matches
}

// expand asks the explorer for children of parent and adds them to the
// tree. When the explorer is skipped or fails, fixed fallback stances
// keep the tree growing.
func (e *Engine) expand(ctx context.Context, parent *tree.Node, req Request, priorContext string) []*tree.Node {
	count := e.tree.Config().BranchingFactor
	topic := req.Idea
	if !parent.IsRoot() {
		topic = fmt.Sprintf("%s [focusing on: %s]", req.Idea, parent.Description)
	}

	batch := e.router.RunSequential(ctx, []router.Call{{
		Name: "explorer:" + parent.ID,
		Run: func(ctx context.Context) (any, error) {
			return e.council.GenerateBranches(ctx, topic, count, priorContext)
		},
	}})

	var branches []council.Branch
	if v, ok := batch.Value("explorer:" + parent.ID); ok {
		branches = v.(*council.BranchSet).Branches
	}
	if len(branches) == 0 {
		e.logger.Warn("explorer unavailable, using fallback branches",
			zap.String("parent", parent.Label))
		branches = fallbackBranches(count)
	}

	var nodes []*tree.Node
	for _, br := range branches {
		n, err := e.tree.AddChild(parent, br.Label, br.Description)
		if err != nil {
			e.logger.Warn("adding branch failed", zap.Error(err))
			continue
		}
		nodes = append(nodes, n)
	}
	parent.Expanded = true
	return nodes
}

// evaluate runs validator, critic, and modeler against one node in a
// single ordered batch. The critic's closure reads the validator's
// result, which is safe because batch execution is strictly ordered.
// Any evaluator that comes back empty scores a neutral 0.5.
func (e *Engine) evaluate(ctx context.Context, n *tree.Node, req Request) {
	var feasRaw json.RawMessage

	batch := e.router.RunSequential(ctx, []router.Call{
		{
			Name: "validator",
			Run: func(ctx context.Context) (any, error) {
				rep, err := e.council.CheckFeasibility(ctx, n.Label, n.Description)
				if err != nil {
					return nil, err
				}
				feasRaw, _ = json.Marshal(rep)
				return rep, nil
			},
		},
		{
			Name: "critic",
			Run: func(ctx context.Context) (any, error) {
				return e.council.CritiqueRisks(ctx, n.Label, n.Description, feasRaw)
			},
		},
		{
			Name: "modeler",
			Run: func(ctx context.Context) (any, error) {
				return e.council.ModelFinancials(ctx, n.Label, n.Description, req.Idea, req.Budget)
			},
		},
	})

	feasibility, risk, financial := 0.5, 0.5, 0.5

	if v, ok := batch.Value("validator"); ok {
		rep := v.(*council.FeasibilityReport)
		feasibility = rep.FeasibilityScore
		n.FeasibilityOut, _ = json.Marshal(rep)
	}
	if v, ok := batch.Value("critic"); ok {
		rep := v.(*council.RiskReport)
		risk = rep.RiskScore
		n.RiskOut, _ = json.Marshal(rep)
	}
	if v, ok := batch.Value("modeler"); ok {
		model := v.(*council.FinancialModel)
		financial = model.FinancialScore
		n.FinancialOut, _ = json.Marshal(model)
	}

	if err := e.tree.MarkEvaluated(n, feasibility, risk, financial); err != nil {
		e.logger.Warn("marking node evaluated failed",
			zap.String("node", n.Label), zap.Error(err))
	}
}

// synthesize builds the branch digest and asks for the final call.
// When synthesis itself is skipped or fails, the report falls back to
// NEEDS_MORE_INFO rather than inventing a verdict.
func (e *Engine) synthesize(ctx context.Context, req Request) *council.Synthesis {
	summaries := e.branchSummaries()

	batch := e.router.RunSequential(ctx, []router.Call{{
		Name: "synthesizer",
		Run: func(ctx context.Context) (any, error) {
			return e.council.Synthesize(ctx, req.Idea, summaries)
		},
	}})

	if v, ok := batch.Value("synthesizer"); ok {
		return v.(*council.Synthesis)
	}

	e.logger.Warn("synthesis unavailable, reporting inconclusive")
	fallback := &council.Synthesis{
		Decision:  council.DecisionNeedsMoreInfo,
		Rationale: "Synthesis could not run; branch scores are available in the full tree.",
	}
	if path := e.tree.BestPath(); len(path) > 1 {
		leaf := path[len(path)-1]
		fallback.BestBranch = leaf.Label
		fallback.Confidence = leaf.Composite
	}
	return fallback
}

// branchSummaries digests every surviving evaluated branch, strongest
// first, capped at eight for the synthesizer's context share.
func (e *Engine) branchSummaries() []council.BranchSummary {
	var nodes []*tree.Node
	for _, n := range e.tree.Nodes() {
		if !n.IsRoot() && n.Evaluated && !n.Pruned {
			nodes = append(nodes, n)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Composite > nodes[j].Composite
	})
	if len(nodes) > 8 {
		nodes = nodes[:8]
	}

	summaries := make([]council.BranchSummary, 0, len(nodes))
	for _, n := range nodes {
		s := council.BranchSummary{
			Branch:         n.Label,
			Description:    n.Description,
			CompositeScore: n.Composite,
		}
		var feas council.FeasibilityReport
		if json.Unmarshal(n.FeasibilityOut, &feas) == nil {
			s.Verdict = feas.Verdict
		}
		var risk council.RiskReport
		if json.Unmarshal(n.RiskOut, &risk) == nil && len(risk.Risks) > 0 {
			s.TopRisk = risk.Risks[0].Risk
		}
		var fin council.FinancialModel
		if json.Unmarshal(n.FinancialOut, &fin) == nil {
			s.ROIEstimate = fin.ROIEstimate
			s.DevCost = fin.DevCostEstimate
		}
		summaries = append(summaries, s)
	}
	return summaries
}

// remember writes the best path into long-term memory. Only stored
// when there is an evaluated path to remember.
func (e *Engine) remember(req Request, decision *tree.Decision, syn *council.Synthesis) {
	if e.memory == nil {
		return
	}
	path := e.tree.BestPath()
	if len(path) <= 1 {
		return
	}
	steps := make([]memory.PathStep, 0, len(path)-1)
	for _, n := range path[1:] {
		steps = append(steps, memory.PathStep{
			Actor:   "council",
			Thought: n.Description,
			Score:   n.Composite,
		})
	}
	if err := e.memory.StoreAnalysis(req.Category, req.Idea, steps, syn.Decision, decision.Confidence); err != nil {
		e.logger.Warn("storing analysis in memory failed", zap.Error(err))
	}
}

// fallbackBranches are the fixed stances used when the explorer cannot
// run: the analysis still covers the strategic spectrum, just without
// topic-specific creativity.
func fallbackBranches(count int) []council.Branch {
	all := []council.Branch{
		{Label: "conservative", Description: "Minimize risk: smallest viable scope, proven tools, slow rollout.", KeyAssumption: "Demand is steady enough to reward patience.", Confidence: 0.5},
		{Label: "balanced", Description: "Moderate scope with staged investment and early feedback checkpoints.", KeyAssumption: "Mid-size bets can be corrected before they sink the effort.", Confidence: 0.5},
		{Label: "aggressive", Description: "Move fast with maximum scope to capture the opportunity before others.", KeyAssumption: "Speed matters more than polish in this market.", Confidence: 0.5},
		{Label: "experimental", Description: "Run cheap experiments first and commit only to what survives them.", KeyAssumption: "The core uncertainty can be tested cheaply.", Confidence: 0.5},
	}
	if count > 0 && count < len(all) {
		all = all[:count]
	}
	return all
}
