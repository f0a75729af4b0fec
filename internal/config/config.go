// Package config holds all wisdom-council configuration.
// Config is loaded from a YAML file with environment overrides for
// secrets, and every field has a working default so the engine can
// run with no config file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full configuration tree.
type Config struct {
	// StateDir is where the durable store lives.
	StateDir string `yaml:"state_dir"`

	Backend BackendConfig `yaml:"backend"`
	Tree    TreeConfig    `yaml:"tree"`
	Router  RouterConfig  `yaml:"router"`
	Council CouncilConfig `yaml:"council"`
	Memory  MemoryConfig  `yaml:"memory"`
}

// BackendConfig configures the text-generation backend.
// The backend is any OpenAI-compatible chat completions server
// (llama.cpp server, Ollama, LM Studio).
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// TreeConfig fixes the shape of the reasoning tree.
type TreeConfig struct {
	BranchingFactor int `yaml:"branching_factor"` // branches generated per expansion
	Survivors       int `yaml:"survivors"`        // branches kept after pruning
	MaxDepth        int `yaml:"max_depth"`
}

// RouterConfig configures the resource gate.
type RouterConfig struct {
	// MinFreeGB is the free-memory floor below which a generation
	// call is skipped instead of started.
	MinFreeGB float64 `yaml:"min_free_gb"`
}

// CouncilConfig holds per-role output token budgets.
type CouncilConfig struct {
	ExplorerTokens    int `yaml:"explorer_tokens"`
	ValidatorTokens   int `yaml:"validator_tokens"`
	CriticTokens      int `yaml:"critic_tokens"`
	ModelerTokens     int `yaml:"modeler_tokens"`
	SynthesizerTokens int `yaml:"synthesizer_tokens"`
}

// MemoryConfig configures retrieval from past analyses.
type MemoryConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	RetrieveLimit int     `yaml:"retrieve_limit"`
}

// Default returns a configuration that works out of the box against a
// local llama.cpp-style server.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		StateDir: filepath.Join(home, ".wisdom-council"),
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080/v1",
			Model:   "qwen3-4b",
			Timeout: 5 * time.Minute,
		},
		Tree: TreeConfig{
			BranchingFactor: 4,
			Survivors:       2,
			MaxDepth:        3,
		},
		Router: RouterConfig{
			MinFreeGB: 2.0,
		},
		Council: CouncilConfig{
			ExplorerTokens:    1200,
			ValidatorTokens:   800,
			CriticTokens:      800,
			ModelerTokens:     1000,
			SynthesizerTokens: 700,
		},
		Memory: MemoryConfig{
			MinConfidence: 0.65,
			RetrieveLimit: 3,
		},
	}
}

// Load reads a YAML config file, layering it over the defaults.
// A missing file is not an error; an unparseable one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides secrets and endpoints from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("COUNCIL_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("COUNCIL_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("COUNCIL_MODEL"); v != "" {
		c.Backend.Model = v
	}
}

// Validate checks invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.Tree.BranchingFactor < 1 {
		return fmt.Errorf("tree.branching_factor must be >= 1, got %d", c.Tree.BranchingFactor)
	}
	if c.Tree.Survivors < 1 {
		return fmt.Errorf("tree.survivors must be >= 1, got %d", c.Tree.Survivors)
	}
	if c.Tree.Survivors > c.Tree.BranchingFactor {
		return fmt.Errorf("tree.survivors (%d) must not exceed tree.branching_factor (%d)",
			c.Tree.Survivors, c.Tree.BranchingFactor)
	}
	if c.Tree.MaxDepth < 1 {
		return fmt.Errorf("tree.max_depth must be >= 1, got %d", c.Tree.MaxDepth)
	}
	if c.Router.MinFreeGB < 0 {
		return fmt.Errorf("router.min_free_gb must be >= 0, got %f", c.Router.MinFreeGB)
	}
	return nil
}
