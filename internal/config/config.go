// Package config provides configuration management for locateval.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (LOCATEVAL_*)
// 3. Project config (.locateval/config.yaml in cwd)
// 4. Home config (~/.locateval/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all locateval configuration.
type Config struct {
	// Split is the dataset split to evaluate (e.g. "test", "dev").
	Split string `yaml:"split" json:"split"`

	// RunDir is where per-run event logs and summaries are written.
	RunDir string `yaml:"run_dir" json:"run_dir"`

	// CacheDir holds dataset pages, bare mirrors, and embedding indexes.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Output controls the report format (table, json, markdown).
	Output string `yaml:"output" json:"output"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// MaxInstances caps how many dataset instances a run processes.
	// Zero means no cap.
	MaxInstances int `yaml:"max_instances" json:"max_instances"`

	// MaxTurns caps the number of conversation turns per agent session.
	MaxTurns int `yaml:"max_turns" json:"max_turns"`

	// MaxToolCalls caps the number of tool invocations per agent session.
	MaxToolCalls int `yaml:"max_tool_calls" json:"max_tool_calls"`

	// Model is the model identifier passed to the agent service.
	Model string `yaml:"model" json:"model"`

	// Variants lists which agent variants to run for each instance.
	Variants []string `yaml:"variants" json:"variants"`

	// Embedding settings for the semantic-search tool variant.
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
}

// EmbeddingConfig selects the embedding provider and dimensionality used
// to build the semantic-search index.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`

	// Pricing overrides the compiled-in default USD-per-1000-token table
	// (internal/embedding.DefaultPriceTable). Per §9: pricing is a
	// configurable constant, not a law baked into the binary.
	Pricing map[string]map[int]float64 `yaml:"pricing,omitempty" json:"pricing,omitempty"`
}

const (
	defaultOutput       = "table"
	defaultSplit        = "test"
	defaultMaxTurns     = 40
	defaultMaxToolCalls = 100
	envConfigOverride   = "LOCATEVAL_CONFIG"
)

// DefaultVariants is the pair of agent variants locateval compares by
// default: an ops-only baseline and an ops-plus-semantic-search arm.
var DefaultVariants = []string{"ops-only", "ops-plus-search"}

// Default returns the default configuration. Cache and run directories
// resolve under the user's standard cache/home directories, never a path
// derived from the binary's own install location.
func Default() *Config {
	cacheRoot, err := os.UserCacheDir()
	if err != nil || cacheRoot == "" {
		cacheRoot = os.TempDir()
	}
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Split:        defaultSplit,
		RunDir:       filepath.Join(homeDir, ".locateval", "runs"),
		CacheDir:     filepath.Join(cacheRoot, "locateval"),
		Output:       defaultOutput,
		Verbose:      false,
		MaxInstances: 0,
		MaxTurns:     defaultMaxTurns,
		MaxToolCalls: defaultMaxToolCalls,
		Model:        "",
		Variants:     append([]string(nil), DefaultVariants...),
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Dimensions: 1536,
		},
	}
}

// Load loads configuration with proper precedence:
// flags > env > project > home > defaults.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}
	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".locateval", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv(envConfigOverride)); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".locateval", "config.yaml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("LOCATEVAL_SPLIT"); v != "" {
		cfg.Split = v
	}
	if v := os.Getenv("LOCATEVAL_RUN_DIR"); v != "" {
		cfg.RunDir = v
	}
	if v := os.Getenv("LOCATEVAL_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("LOCATEVAL_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("LOCATEVAL_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("LOCATEVAL_MAX_INSTANCES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxInstances = n
		}
	}
	if v := os.Getenv("LOCATEVAL_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTurns = n
		}
	}
	if v := os.Getenv("LOCATEVAL_MAX_TOOL_CALLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxToolCalls = n
		}
	}
	if v := os.Getenv("LOCATEVAL_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LOCATEVAL_VARIANTS"); v != "" {
		cfg.Variants = strings.Split(v, ",")
	}
	if v := os.Getenv("LOCATEVAL_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("LOCATEVAL_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embedding.Dimensions = n
		}
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence. Zero
// values in src never override a value already set in dst.
func merge(dst, src *Config) *Config {
	if src.Split != "" {
		dst.Split = src.Split
	}
	if src.RunDir != "" {
		dst.RunDir = src.RunDir
	}
	if src.CacheDir != "" {
		dst.CacheDir = src.CacheDir
	}
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.MaxInstances != 0 {
		dst.MaxInstances = src.MaxInstances
	}
	if src.MaxTurns != 0 {
		dst.MaxTurns = src.MaxTurns
	}
	if src.MaxToolCalls != 0 {
		dst.MaxToolCalls = src.MaxToolCalls
	}
	if src.Model != "" {
		dst.Model = src.Model
	}
	if len(src.Variants) != 0 {
		dst.Variants = src.Variants
	}
	if src.Embedding.Provider != "" {
		dst.Embedding.Provider = src.Embedding.Provider
	}
	if src.Embedding.Dimensions != 0 {
		dst.Embedding.Dimensions = src.Embedding.Dimensions
	}
	if len(src.Embedding.Pricing) != 0 {
		dst.Embedding.Pricing = src.Embedding.Pricing
	}
	return dst
}
