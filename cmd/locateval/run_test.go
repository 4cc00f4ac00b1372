package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloc/locateval/internal/config"
)

func TestSelectedVariants(t *testing.T) {
	runFlags.skipAgent1 = false
	runFlags.skipAgent2 = false
	defer func() {
		runFlags.skipAgent1 = false
		runFlags.skipAgent2 = false
	}()

	out := selectedVariants([]string{"ops-only", "ops-plus-search"})
	assert.Equal(t, []string{"ops-only", "ops-plus-search"}, out)

	runFlags.skipAgent2 = true
	out = selectedVariants([]string{"ops-only", "ops-plus-search"})
	assert.Equal(t, []string{"ops-only"}, out)
}

func TestGateEmbeddingVariant_CredentialPresent(t *testing.T) {
	cfg := &config.Config{
		Variants:  []string{"ops-only", "ops-plus-search"},
		Embedding: config.EmbeddingConfig{Provider: "openai"},
	}
	out := gateEmbeddingVariant(cfg, func(string) string { return "sk-test" })
	assert.Equal(t, []string{"ops-only", "ops-plus-search"}, out)
}

func TestGateEmbeddingVariant_CredentialMissing(t *testing.T) {
	cfg := &config.Config{
		Variants:  []string{"ops-only", "ops-plus-search"},
		Embedding: config.EmbeddingConfig{Provider: "gemini"},
	}
	out := gateEmbeddingVariant(cfg, func(string) string { return "" })
	require.Len(t, out, 1)
	assert.Equal(t, "ops-only", out[0])
}

func TestGateEmbeddingVariant_UnrecognizedProvider(t *testing.T) {
	cfg := &config.Config{
		Variants:  []string{"ops-only", "ops-plus-search"},
		Embedding: config.EmbeddingConfig{Provider: "anthropic"},
	}
	out := gateEmbeddingVariant(cfg, func(string) string { return "anything" })
	require.Len(t, out, 1)
	assert.Equal(t, "ops-only", out[0])
}

func TestGateEmbeddingVariant_NoSearchVariantConfigured(t *testing.T) {
	cfg := &config.Config{
		Variants:  []string{"ops-only"},
		Embedding: config.EmbeddingConfig{Provider: "gemini"},
	}
	out := gateEmbeddingVariant(cfg, func(string) string { return "" })
	assert.Equal(t, []string{"ops-only"}, out)
}
