package council

// Result field names are a wire contract shared by the prompts below
// and the parsers; changing a tag means changing the matching prompt.

// Branch is one candidate reasoning approach proposed by the explorer.
type Branch struct {
	Label         string  `json:"label"`
	Description   string  `json:"description"`
	KeyAssumption string  `json:"key_assumption"`
	Confidence    float64 `json:"confidence"`
}

// BranchSet is the explorer's full answer.
type BranchSet struct {
	Branches         []Branch `json:"branches"`
	ReasoningSummary string   `json:"reasoning_summary"`
}

// Feasibility verdicts.
const (
	VerdictFeasible          = "FEASIBLE"
	VerdictPartiallyFeasible = "PARTIALLY_FEASIBLE"
	VerdictNotFeasible       = "NOT_FEASIBLE"
)

// FeasibilityReport is the validator's assessment of one branch.
type FeasibilityReport struct {
	Verdict          string   `json:"verdict"`
	FeasibilityScore float64  `json:"feasibility_score"`
	Blockers         []string `json:"blockers"`
	Requirements     []string `json:"requirements"`
	TimelineEstimate string   `json:"timeline_estimate"`
	Reasoning        string   `json:"reasoning"`
}

// RiskItem is one identified risk with its mitigation.
type RiskItem struct {
	Risk       string  `json:"risk"`
	Likelihood float64 `json:"likelihood"`
	Impact     string  `json:"impact"`
	Mitigation string  `json:"mitigation"`
}

// RiskReport is the critic's adversarial analysis. RiskScore is a
// mitigation score: higher means safer.
type RiskReport struct {
	RiskScore             float64    `json:"risk_score"`
	Risks                 []RiskItem `json:"risks"`
	ChallengedAssumptions []string   `json:"challenged_assumptions"`
	CounterArguments      []string   `json:"counter_arguments"`
	OverallAssessment     string     `json:"overall_assessment"`
}

// Scenario is one financial outcome case.
type Scenario struct {
	ROI      float64 `json:"roi"`
	Timeline string  `json:"timeline"`
}

// FinancialModel is the modeler's projection for one branch.
type FinancialModel struct {
	FinancialScore    float64           `json:"financial_score"`
	DevCostEstimate   string            `json:"dev_cost_estimate"`
	RevenueProjection map[string]string `json:"revenue_projection"`
	ROIEstimate       float64           `json:"roi_estimate"`
	Scenarios         struct {
		BestCase  Scenario `json:"best_case"`
		MidCase   Scenario `json:"mid_case"`
		WorstCase Scenario `json:"worst_case"`
	} `json:"scenarios"`
	Confidence     float64  `json:"confidence"`
	KeyAssumptions []string `json:"key_assumptions"`
}

// Final decisions.
const (
	DecisionGo            = "GO"
	DecisionNoGo          = "NO_GO"
	DecisionNeedsMoreInfo = "NEEDS_MORE_INFO"
)

// Synthesis is the synthesizer's final recommendation.
type Synthesis struct {
	Decision             string   `json:"decision"`
	Confidence           float64  `json:"confidence"`
	BestBranch           string   `json:"best_branch"`
	Rationale            string   `json:"rationale"`
	KeySuccessFactors    []string `json:"key_success_factors"`
	RecommendedNextSteps []string `json:"recommended_next_steps"`
}

// BranchSummary is the compact per-branch digest handed to the
// synthesizer: one line of truth per evaluated, non-pruned branch.
type BranchSummary struct {
	Branch         string  `json:"branch"`
	Description    string  `json:"description"`
	CompositeScore float64 `json:"composite_score"`
	Verdict        string  `json:"verdict"`
	TopRisk        string  `json:"top_risk"`
	ROIEstimate    float64 `json:"roi_estimate"`
	DevCost        string  `json:"dev_cost"`
}
