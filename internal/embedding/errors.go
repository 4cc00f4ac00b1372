package embedding

import "errors"

// Sentinel errors for the embedding package.
var (
	// ErrUnknownProvider is returned when a pricer has no entry for the
	// requested provider at all.
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrUnknownDimensions is returned when a provider exists but the
	// requested dimension count has no price entry.
	ErrUnknownDimensions = errors.New("unknown embedding dimensions for provider")
)
