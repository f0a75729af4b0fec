package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Jooooov/wisdom-council/internal/memory"
	"github.com/Jooooov/wisdom-council/internal/store"
	"github.com/Jooooov/wisdom-council/internal/tree"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect the long-term analysis memory",
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Counts of remembered analyses by category and decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.StateDir)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := memory.New(st, logger).Stats()
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render("MEMORY"), fmt.Sprintf("%d analyses", stats.Total))
		for _, k := range sortedKeys(stats.ByCategory) {
			fmt.Printf("  category %-12s %d\n", k, stats.ByCategory[k])
		}
		for _, k := range sortedKeys(stats.ByDecision) {
			fmt.Printf("  decision %-12s %d\n", k, stats.ByDecision[k])
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect the persisted reasoning tree",
}

var treeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the last analysis tree with scores and pruning",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.StateDir)
		if err != nil {
			return err
		}
		defer st.Close()

		tr := tree.New(tree.Config{
			BranchingFactor: cfg.Tree.BranchingFactor,
			Survivors:       cfg.Tree.Survivors,
			MaxDepth:        cfg.Tree.MaxDepth,
		}, st, logger)

		if tr.Root() == nil {
			fmt.Println("no persisted tree; run an analysis first")
			return nil
		}
		fmt.Print(tr.Summary())
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryStatsCmd)
	treeCmd.AddCommand(treeShowCmd)
	rootCmd.AddCommand(memoryCmd, treeCmd)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
