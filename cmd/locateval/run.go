package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentloc/locateval/internal/agentsvc"
	"github.com/agentloc/locateval/internal/aggregate"
	"github.com/agentloc/locateval/internal/config"
	"github.com/agentloc/locateval/internal/dataset"
	"github.com/agentloc/locateval/internal/embedding"
	"github.com/agentloc/locateval/internal/formatter"
	"github.com/agentloc/locateval/internal/obslog"
	"github.com/agentloc/locateval/internal/runner"
	"github.com/agentloc/locateval/internal/storage"
	"github.com/agentloc/locateval/internal/workspace"
)

const datasetEndpoint = "https://datasets-server.huggingface.co/rows"

var runFlags struct {
	split              string
	maxInstances       int
	maxTurns           int
	maxToolCalls       int
	model              string
	runDir             string
	skipAgent1         bool
	skipAgent2         bool
	instances          []string
	embeddingProvider  string
	embeddingDimension int
	runtimeCommand     string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate agent variants against the dataset",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runFlags.split, "split", "", "Dataset split (dev|test)")
	runCmd.Flags().IntVar(&runFlags.maxInstances, "max-instances", 0, "Cap the number of instances evaluated (0 = no cap)")
	runCmd.Flags().IntVar(&runFlags.maxTurns, "max-turns", 0, "Cap conversation turns per agent session")
	runCmd.Flags().IntVar(&runFlags.maxToolCalls, "max-tool-calls", 0, "Cap tool invocations per agent session")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "Model identifier passed to the agent service")
	runCmd.Flags().StringVar(&runFlags.runDir, "run-dir", "", "Directory under which this run's output is written")
	runCmd.Flags().BoolVar(&runFlags.skipAgent1, "skip-agent1", false, "Skip the ops-only variant")
	runCmd.Flags().BoolVar(&runFlags.skipAgent2, "skip-agent2", false, "Skip the ops-plus-search variant")
	runCmd.Flags().StringSliceVar(&runFlags.instances, "instance", nil, "Restrict the run to specific instance ids (repeatable)")
	runCmd.Flags().StringVar(&runFlags.embeddingProvider, "embedding-provider", "", "Embedding provider for the search variant (gemini|openai)")
	runCmd.Flags().IntVar(&runFlags.embeddingDimension, "embedding-dimensions", 0, "Embedding dimensionality (768|1536|3072)")
	runCmd.Flags().StringVar(&runFlags.runtimeCommand, "runtime-command", "", "Override the agent-service binary to shell out to")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	obslog.Init(cfg.Verbose, cfg.Output == "json")
	defer obslog.Sync()

	cfg.Variants = gateEmbeddingVariant(cfg, os.Getenv)

	correlationID := uuid.NewString()
	obslog.Infof("starting run %s split=%s variants=%v", correlationID, cfg.Split, cfg.Variants)

	if GetDryRun() {
		fmt.Printf("would evaluate split=%s variants=%v max_instances=%d\n", cfg.Split, cfg.Variants, cfg.MaxInstances)
		return nil
	}

	runTimestamp := time.Now().UTC().Format("20060102T150405Z")
	runPath := filepath.Join(cfg.RunDir, runTimestamp)
	eventsDir := filepath.Join(runPath, "events")
	if err := os.MkdirAll(eventsDir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	metricsFile, err := os.Create(filepath.Join(runPath, "metrics.jsonl"))
	if err != nil {
		return fmt.Errorf("create metrics log: %w", err)
	}
	defer metricsFile.Close()

	cache := storage.NewFileCache(cfg.CacheDir)
	ds := dataset.New(datasetEndpoint, cache)

	ws := workspace.New(
		filepath.Join(cfg.CacheDir, "repos"),
		filepath.Join(cfg.CacheDir, "worktrees"),
		2*time.Minute,
	)

	tc, err := agentsvc.ResolveToolchain(agentsvc.ResolveToolchainOptions{
		FlagValues: agentsvc.Toolchain{RuntimeCommand: runFlags.runtimeCommand},
		FlagSet:    agentsvc.ToolchainFlagSet{RuntimeCommand: runFlags.runtimeCommand != ""},
	})
	if err != nil {
		return fmt.Errorf("resolve agent toolchain: %w", err)
	}

	r := runner.New(cfg, ds, ws, tc, eventsDir, metricsFile)
	r.InstanceFilter = runFlags.instances

	metrics, err := r.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run evaluation: %w", err)
	}

	summary := aggregate.Summarize(runTimestamp, cfg.Split, time.Now().UTC(), metrics)

	summaryFile, err := os.Create(filepath.Join(runPath, "summary.json"))
	if err != nil {
		return aggregate.WrapWriteError(err)
	}
	jsonl := formatter.NewJSONLFormatter()
	jsonl.Pretty = true
	if err := jsonl.FormatSummary(summaryFile, &summary); err != nil {
		summaryFile.Close()
		return aggregate.WrapWriteError(err)
	}
	if err := summaryFile.Close(); err != nil {
		return aggregate.WrapWriteError(err)
	}

	fmt.Printf("run written to %s\n", runPath)
	return renderSummary(os.Stdout, &summary, GetOutput())
}

func buildConfig() (*config.Config, error) {
	flagCfg := &config.Config{
		Split:        runFlags.split,
		RunDir:       runFlags.runDir,
		Output:       GetOutput(),
		Verbose:      GetVerbose(),
		MaxInstances: runFlags.maxInstances,
		MaxTurns:     runFlags.maxTurns,
		MaxToolCalls: runFlags.maxToolCalls,
		Model:        runFlags.model,
	}

	if runFlags.embeddingProvider != "" || runFlags.embeddingDimension != 0 {
		flagCfg.Embedding = config.EmbeddingConfig{
			Provider:   runFlags.embeddingProvider,
			Dimensions: runFlags.embeddingDimension,
		}
	}

	cfg, err := config.Load(flagCfg)
	if err != nil {
		return nil, err
	}

	cfg.Variants = selectedVariants(cfg.Variants)
	return cfg, nil
}

func selectedVariants(base []string) []string {
	var out []string
	for _, v := range base {
		switch {
		case v == "ops-only" && runFlags.skipAgent1:
			continue
		case v == "ops-plus-search" && runFlags.skipAgent2:
			continue
		}
		out = append(out, v)
	}
	return out
}

// gateEmbeddingVariant drops "ops-plus-search" from variants when the
// configured embedding provider has no credential in the environment,
// warning rather than aborting the run (§6): the provider only backs that
// variant's semantic-search tool, so the rest of the run can proceed
// without it. getenv is injected so the check is testable without mutating
// the process environment.
func gateEmbeddingVariant(cfg *config.Config, getenv func(string) string) []string {
	hasSearch := false
	for _, v := range cfg.Variants {
		if v == "ops-plus-search" {
			hasSearch = true
			break
		}
	}
	if !hasSearch {
		return cfg.Variants
	}

	provider := embedding.Provider(cfg.Embedding.Provider)
	envVar := embedding.CredentialEnvVar(provider)
	if envVar == "" {
		obslog.Warnf("unrecognized embedding provider %q; disabling ops-plus-search variant", cfg.Embedding.Provider)
		return dropVariant(cfg.Variants, "ops-plus-search")
	}
	if getenv(envVar) != "" {
		return cfg.Variants
	}

	obslog.Warnf("embedding credential %s not set for provider %q; disabling ops-plus-search variant", envVar, provider)
	return dropVariant(cfg.Variants, "ops-plus-search")
}

func dropVariant(variants []string, drop string) []string {
	var out []string
	for _, v := range variants {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
