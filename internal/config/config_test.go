package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.Split != "test" {
		t.Errorf("Default Split = %q, want %q", cfg.Split, "test")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.MaxTurns != defaultMaxTurns {
		t.Errorf("Default MaxTurns = %d, want %d", cfg.MaxTurns, defaultMaxTurns)
	}
	if cfg.MaxToolCalls != defaultMaxToolCalls {
		t.Errorf("Default MaxToolCalls = %d, want %d", cfg.MaxToolCalls, defaultMaxToolCalls)
	}
	if len(cfg.Variants) != 2 {
		t.Errorf("Default Variants = %v, want 2 entries", cfg.Variants)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("Default Embedding.Provider = %q, want %q", cfg.Embedding.Provider, "openai")
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("Default Embedding.Dimensions = %d, want 1536", cfg.Embedding.Dimensions)
	}
}

func TestDefaultDirsNotDerivedFromBinary(t *testing.T) {
	cfg := Default()
	homeDir, _ := os.UserHomeDir()
	if cfg.RunDir != filepath.Join(homeDir, ".locateval", "runs") {
		t.Errorf("Default RunDir = %q", cfg.RunDir)
	}
	if cfg.CacheDir == "" {
		t.Error("Default CacheDir should not be empty")
	}
}

func TestDefaultReturnsIndependentVariantsSlice(t *testing.T) {
	a := Default()
	b := Default()
	a.Variants[0] = "mutated"
	if b.Variants[0] == "mutated" {
		t.Error("Default() Variants slice is shared across calls")
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Output: "json",
		Split:  "dev",
	}

	result := merge(dst, src)

	if result.Output != "json" {
		t.Errorf("merge Output = %q, want %q", result.Output, "json")
	}
	if result.Split != "dev" {
		t.Errorf("merge Split = %q, want %q", result.Split, "dev")
	}
	// Defaults should be preserved when not overridden.
	if result.MaxTurns != defaultMaxTurns {
		t.Errorf("merge preserved MaxTurns = %d, want %d", result.MaxTurns, defaultMaxTurns)
	}
}

func TestMergeVerboseOverride(t *testing.T) {
	dst := Default()
	src := &Config{Verbose: true}

	result := merge(dst, src)
	if !result.Verbose {
		t.Error("merge Verbose = false, want true")
	}
}

func TestMergeIntFields(t *testing.T) {
	dst := Default()
	src := &Config{MaxInstances: 25, MaxTurns: 5, MaxToolCalls: 7}

	result := merge(dst, src)
	if result.MaxInstances != 25 {
		t.Errorf("merge MaxInstances = %d, want 25", result.MaxInstances)
	}
	if result.MaxTurns != 5 {
		t.Errorf("merge MaxTurns = %d, want 5", result.MaxTurns)
	}
	if result.MaxToolCalls != 7 {
		t.Errorf("merge MaxToolCalls = %d, want 7", result.MaxToolCalls)
	}
}

func TestMergeEmbedding(t *testing.T) {
	dst := Default()
	src := &Config{Embedding: EmbeddingConfig{Provider: "gemini", Dimensions: 768}}

	result := merge(dst, src)
	if result.Embedding.Provider != "gemini" {
		t.Errorf("merge Embedding.Provider = %q, want gemini", result.Embedding.Provider)
	}
	if result.Embedding.Dimensions != 768 {
		t.Errorf("merge Embedding.Dimensions = %d, want 768", result.Embedding.Dimensions)
	}
}

func TestMergeVariantsPreservedWhenEmpty(t *testing.T) {
	dst := Default()
	src := &Config{Output: "json"}

	result := merge(dst, src)
	if len(result.Variants) != 2 {
		t.Errorf("merge should preserve default Variants, got %v", result.Variants)
	}
}

func TestMergeVariantsOverride(t *testing.T) {
	dst := Default()
	src := &Config{Variants: []string{"ops-only"}}

	result := merge(dst, src)
	if len(result.Variants) != 1 || result.Variants[0] != "ops-only" {
		t.Errorf("merge Variants = %v, want [ops-only]", result.Variants)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LOCATEVAL_OUTPUT", "json")
	t.Setenv("LOCATEVAL_VERBOSE", "true")
	t.Setenv("LOCATEVAL_MAX_INSTANCES", "50")
	t.Setenv("LOCATEVAL_VARIANTS", "ops-only")

	cfg := Default()
	cfg = applyEnv(cfg)

	if cfg.Output != "json" {
		t.Errorf("applyEnv Output = %q, want %q", cfg.Output, "json")
	}
	if !cfg.Verbose {
		t.Error("applyEnv Verbose = false, want true")
	}
	if cfg.MaxInstances != 50 {
		t.Errorf("applyEnv MaxInstances = %d, want 50", cfg.MaxInstances)
	}
	if len(cfg.Variants) != 1 || cfg.Variants[0] != "ops-only" {
		t.Errorf("applyEnv Variants = %v, want [ops-only]", cfg.Variants)
	}
}

func TestApplyEnvVerboseAcceptsOneOrTrue(t *testing.T) {
	t.Setenv("LOCATEVAL_VERBOSE", "1")
	cfg := applyEnv(Default())
	if !cfg.Verbose {
		t.Error("applyEnv should treat LOCATEVAL_VERBOSE=1 as true")
	}
}

func TestApplyEnvRemainingFields(t *testing.T) {
	t.Setenv("LOCATEVAL_SPLIT", "dev")
	t.Setenv("LOCATEVAL_RUN_DIR", "/tmp/runs")
	t.Setenv("LOCATEVAL_CACHE_DIR", "/tmp/cache")
	t.Setenv("LOCATEVAL_MAX_TURNS", "12")
	t.Setenv("LOCATEVAL_MAX_TOOL_CALLS", "33")
	t.Setenv("LOCATEVAL_MODEL", "claude-x")
	t.Setenv("LOCATEVAL_EMBEDDING_PROVIDER", "gemini")
	t.Setenv("LOCATEVAL_EMBEDDING_DIMENSIONS", "768")

	cfg := applyEnv(Default())

	if cfg.Split != "dev" {
		t.Errorf("Split = %q", cfg.Split)
	}
	if cfg.RunDir != "/tmp/runs" {
		t.Errorf("RunDir = %q", cfg.RunDir)
	}
	if cfg.CacheDir != "/tmp/cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
	if cfg.MaxTurns != 12 {
		t.Errorf("MaxTurns = %d", cfg.MaxTurns)
	}
	if cfg.MaxToolCalls != 33 {
		t.Errorf("MaxToolCalls = %d", cfg.MaxToolCalls)
	}
	if cfg.Model != "claude-x" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Embedding.Provider != "gemini" {
		t.Errorf("Embedding.Provider = %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("Embedding.Dimensions = %d", cfg.Embedding.Dimensions)
	}
}

func TestApplyEnvIgnoresMalformedInts(t *testing.T) {
	t.Setenv("LOCATEVAL_MAX_TURNS", "not-a-number")

	cfg := Default()
	before := cfg.MaxTurns
	cfg = applyEnv(cfg)
	if cfg.MaxTurns != before {
		t.Errorf("applyEnv MaxTurns = %d, want unchanged %d", cfg.MaxTurns, before)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
output: json
split: dev
verbose: true
max_instances: 25
embedding:
  provider: gemini
  dimensions: 768
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFromPath(configPath)
	if err != nil {
		t.Fatalf("loadFromPath() error = %v", err)
	}

	if cfg.Output != "json" {
		t.Errorf("loadFromPath Output = %q, want %q", cfg.Output, "json")
	}
	if cfg.Split != "dev" {
		t.Errorf("loadFromPath Split = %q, want %q", cfg.Split, "dev")
	}
	if cfg.MaxInstances != 25 {
		t.Errorf("loadFromPath MaxInstances = %d, want 25", cfg.MaxInstances)
	}
	if cfg.Embedding.Provider != "gemini" {
		t.Errorf("loadFromPath Embedding.Provider = %q, want gemini", cfg.Embedding.Provider)
	}
}

func TestLoadFromPathEmptyPathReturnsNil(t *testing.T) {
	cfg, err := loadFromPath("")
	if cfg != nil || err != nil {
		t.Errorf("loadFromPath(\"\") = %v, %v; want nil, nil", cfg, err)
	}
}

func TestLoadFromPathNotExists(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg != nil {
		t.Error("loadFromPath for nonexistent file should return nil config")
	}
	if err == nil {
		t.Error("loadFromPath for nonexistent file should return error")
	}
}

func TestLoadFromPathInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{{{invalid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFromPath(configPath)
	if err == nil {
		t.Error("loadFromPath for invalid YAML should return error")
	}
	if cfg != nil {
		t.Error("loadFromPath for invalid YAML should return nil config")
	}
}

func clearLocatevalEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOCATEVAL_CONFIG", "LOCATEVAL_SPLIT", "LOCATEVAL_RUN_DIR", "LOCATEVAL_CACHE_DIR",
		"LOCATEVAL_OUTPUT", "LOCATEVAL_VERBOSE", "LOCATEVAL_MAX_INSTANCES", "LOCATEVAL_MAX_TURNS",
		"LOCATEVAL_MAX_TOOL_CALLS", "LOCATEVAL_MODEL", "LOCATEVAL_VARIANTS",
		"LOCATEVAL_EMBEDDING_PROVIDER", "LOCATEVAL_EMBEDDING_DIMENSIONS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadWithFlagOverrides(t *testing.T) {
	clearLocatevalEnv(t)

	overrides := &Config{Output: "json", Split: "dev", Verbose: true}

	cfg, err := Load(overrides)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "json" || cfg.Split != "dev" || !cfg.Verbose {
		t.Errorf("Load with overrides = %+v", cfg)
	}
}

func TestLoadNilOverridesReturnsDefaults(t *testing.T) {
	clearLocatevalEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "table" {
		t.Errorf("Load nil Output = %q, want %q", cfg.Output, "table")
	}
}

func TestLoadEnvOverridesApply(t *testing.T) {
	clearLocatevalEnv(t)
	t.Setenv("LOCATEVAL_OUTPUT", "json")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "json" {
		t.Errorf("Load env override Output = %q, want json", cfg.Output)
	}
}

func TestProjectConfigPathUsesOverrideEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom.yaml")
	t.Setenv(envConfigOverride, configPath)

	if got := projectConfigPath(); got != configPath {
		t.Fatalf("projectConfigPath() = %q, want %q", got, configPath)
	}
}

func TestProjectConfigPathDefaultFromCwd(t *testing.T) {
	t.Setenv(envConfigOverride, "")
	got := projectConfigPath()
	cwd, _ := os.Getwd()
	expected := filepath.Join(cwd, ".locateval", "config.yaml")
	if got != expected {
		t.Errorf("projectConfigPath() = %q, want %q", got, expected)
	}
}

func TestProjectConfigPathWhitespaceOnlyOverride(t *testing.T) {
	t.Setenv(envConfigOverride, "  \t  ")
	got := projectConfigPath()
	cwd, _ := os.Getwd()
	expected := filepath.Join(cwd, ".locateval", "config.yaml")
	if got != expected {
		t.Errorf("projectConfigPath() with whitespace = %q, want %q", got, expected)
	}
}

func TestLoadWithProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
output: yaml
split: dev
max_tool_calls: 200
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	clearLocatevalEnv(t)
	t.Setenv(envConfigOverride, configPath)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Load with project config Output = %q, want %q", cfg.Output, "yaml")
	}
	if cfg.Split != "dev" {
		t.Errorf("Load with project config Split = %q, want %q", cfg.Split, "dev")
	}
	if cfg.MaxToolCalls != 200 {
		t.Errorf("Load with project config MaxToolCalls = %d, want 200", cfg.MaxToolCalls)
	}
}

func TestHomeConfigPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".locateval", "config.yaml")
	if got := homeConfigPath(); got != want {
		t.Errorf("homeConfigPath() = %q, want %q", got, want)
	}
}
