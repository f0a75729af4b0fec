package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Jooooov/wisdom-council/internal/backend"
	"github.com/Jooooov/wisdom-council/internal/council"
	"github.com/Jooooov/wisdom-council/internal/engine"
	"github.com/Jooooov/wisdom-council/internal/memory"
	"github.com/Jooooov/wisdom-council/internal/router"
	"github.com/Jooooov/wisdom-council/internal/store"
	"github.com/Jooooov/wisdom-council/internal/tree"
)

var (
	flagIdea   string
	flagType   string
	flagBudget string
	flagReset  bool
	flagOutput string
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	goStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	noGoStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	moreInfoStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full reasoning-tree analysis of one idea",
	Example: `  council analyze --idea "Launch a self-hosted analytics product" --type business --budget "$50k"
  council analyze --idea "Rewrite the ingest pipeline in Go" --type technical --reset`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&flagIdea, "idea", "", "The idea or question to analyze (required)")
	analyzeCmd.Flags().StringVar(&flagType, "type", "general", "Analysis category, used for memory recall (business, technical, ...)")
	analyzeCmd.Flags().StringVar(&flagBudget, "budget", "", "Available budget, free text, passed to the financial modeler")
	analyzeCmd.Flags().BoolVar(&flagReset, "reset", false, "Discard any persisted tree before starting")
	analyzeCmd.Flags().StringVar(&flagOutput, "output", filepath.Join("outputs", "analysis.json"), "Where to write the full JSON report")
	_ = analyzeCmd.MarkFlagRequired("idea")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	eng, st, err := buildEngine()
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := eng.RunAnalysis(cmd.Context(), engine.Request{
		Idea:     flagIdea,
		Category: flagType,
		Budget:   flagBudget,
		Reset:    flagReset,
	})
	if err != nil {
		return err
	}

	printReport(report)
	fmt.Println(dimStyle.Render(eng.Tree().Summary()))

	if flagOutput != "" {
		if err := writeReport(flagOutput, report); err != nil {
			return err
		}
		fmt.Println(dimStyle.Render("full report written to " + flagOutput))
	}
	return nil
}

func buildEngine() (*engine.Engine, *store.Store, error) {
	st, err := store.Open(cfg.StateDir)
	if err != nil {
		return nil, nil, err
	}

	client := backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		Model:   cfg.Backend.Model,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})

	tr := tree.New(tree.Config{
		BranchingFactor: cfg.Tree.BranchingFactor,
		Survivors:       cfg.Tree.Survivors,
		MaxDepth:        cfg.Tree.MaxDepth,
	}, st, logger)

	c := council.New(client, council.Budgets{
		Explorer:    cfg.Council.ExplorerTokens,
		Validator:   cfg.Council.ValidatorTokens,
		Critic:      cfg.Council.CriticTokens,
		Modeler:     cfg.Council.ModelerTokens,
		Synthesizer: cfg.Council.SynthesizerTokens,
	}, logger)

	r := router.New(router.SystemMonitor{}, cfg.Router.MinFreeGB, logger)
	mem := memory.New(st, logger)

	return engine.New(cfg, tr, c, r, mem, logger), st, nil
}

func printReport(report *engine.Report) {
	syn := report.Synthesis

	decisionStyle := moreInfoStyle
	switch syn.Decision {
	case council.DecisionGo:
		decisionStyle = goStyle
	case council.DecisionNoGo:
		decisionStyle = noGoStyle
	}

	fmt.Println(headerStyle.Render("DECISION"), decisionStyle.Render(syn.Decision),
		dimStyle.Render(fmt.Sprintf("(confidence %.3f)", report.Decision.Confidence)))
	if syn.BestBranch != "" {
		fmt.Println(headerStyle.Render("BEST BRANCH"), syn.BestBranch)
	}
	if len(report.Decision.BestPath) > 1 {
		fmt.Println(headerStyle.Render("BEST PATH"), fmt.Sprintf("%v", report.Decision.BestPath[1:]))
	}
	if syn.Rationale != "" {
		fmt.Println(headerStyle.Render("RATIONALE"), syn.Rationale)
	}
	for _, f := range syn.KeySuccessFactors {
		fmt.Println(dimStyle.Render("  success factor:"), f)
	}
	for _, s := range syn.RecommendedNextSteps {
		fmt.Println(dimStyle.Render("  next step:"), s)
	}
	if report.Recalled > 0 {
		fmt.Println(dimStyle.Render(fmt.Sprintf("recalled %d past analyses", report.Recalled)))
	}
}

func writeReport(path string, report *engine.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
