package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Jooooov/wisdom-council/internal/config"
)

var (
	flagConfig  string
	flagVerbose bool

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Decision analysis over a reasoning tree of local-model personas",
	Long: `council explores an idea with a tree of competing approaches, scores
each branch through validator, critic, and modeler personas running on
a local OpenAI-compatible model server, prunes the weak branches, and
synthesizes a final GO / NO_GO / NEEDS_MORE_INFO recommendation.

Completed analyses are remembered and recalled on similar topics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if flagVerbose {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		logger, err = zcfg.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "Path to the YAML config file (missing file uses defaults)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug-level logging")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "council.yaml"
	}
	return home + "/.config/council/config.yaml"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
