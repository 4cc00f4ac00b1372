// Package embedding prices the embedding calls the ops-plus-search variant's
// semantic-search tool makes against an external provider. The index
// implementation itself is out of scope (§1, §6); this package only prices
// what that external collaborator bills, so a run's cost totals stay
// accurate without the core needing to know how the index is built.
package embedding

import "fmt"

// Provider identifies an embedding API the semantic-search tool can be
// backed by.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// CredentialEnvVar returns the environment variable the named provider's
// client library expects its API key in, or "" for an unrecognized
// provider. §6 disables the ops-plus-search variant rather than aborting
// the run when this variable is unset, since the embedding call only
// backs that variant's semantic-search tool.
func CredentialEnvVar(provider Provider) string {
	switch provider {
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// Dimensions are the supported embedding vector sizes, per §6's
// --embedding-dimensions flag.
const (
	Dims768  = 768
	Dims1536 = 1536
	Dims3072 = 3072
)

// PriceTable maps a (provider, dimensions) pair to a USD-per-1000-tokens
// rate. §9 resolves the open question "pricing uses a fixed constant in
// the source" by making the table configurable rather than hardcoded: a
// caller loads this from Config.Embedding.Pricing, falling back to
// DefaultPriceTable when unset.
type PriceTable map[Provider]map[int]float64

// DefaultPriceTable is the compiled-in fallback, used when a run's
// configuration carries no explicit override.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		ProviderGemini: {
			Dims768:  0.000025,
			Dims1536: 0.000025,
			Dims3072: 0.000025,
		},
		ProviderOpenAI: {
			Dims768:  0.00002,
			Dims1536: 0.00002,
			Dims3072: 0.00013,
		},
	}
}

// Pricer looks up the per-1K-token rate for a provider/dimension pair and
// turns a token count into a cost.
type Pricer struct {
	table PriceTable
}

// NewPricer constructs a Pricer from table, falling back to
// DefaultPriceTable for any (provider, dims) pair the caller's table
// leaves unset.
func NewPricer(table PriceTable) *Pricer {
	merged := DefaultPriceTable()
	for provider, byDims := range table {
		if merged[provider] == nil {
			merged[provider] = make(map[int]float64, len(byDims))
		}
		for dims, price := range byDims {
			merged[provider][dims] = price
		}
	}
	return &Pricer{table: merged}
}

// RatePer1K returns the USD-per-1000-tokens rate for provider at dims.
func (p *Pricer) RatePer1K(provider Provider, dims int) (float64, error) {
	byDims, ok := p.table[provider]
	if !ok {
		return 0, fmt.Errorf("%w: provider %q", ErrUnknownProvider, provider)
	}
	rate, ok := byDims[dims]
	if !ok {
		return 0, fmt.Errorf("%w: %q at %d dimensions", ErrUnknownDimensions, provider, dims)
	}
	return rate, nil
}

// Cost returns the USD cost of embedding tokenCount tokens with provider at
// dims.
func (p *Pricer) Cost(provider Provider, dims, tokenCount int) (float64, error) {
	rate, err := p.RatePer1K(provider, dims)
	if err != nil {
		return 0, err
	}
	return (float64(tokenCount) / 1000.0) * rate, nil
}
