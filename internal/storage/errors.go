package storage

import "errors"

// Sentinel errors for the storage package. Using sentinels instead of
// ad-hoc fmt.Errorf allows callers to match with errors.Is.
var (
	// ErrCacheMiss is returned by Cache.Get when no payload is stored for
	// the requested key.
	ErrCacheMiss = errors.New("storage: cache miss")

	// ErrCacheCorrupt is returned by Cache.Get when the stored payload
	// fails its integrity check. The caller should treat this the same
	// as a miss and re-fetch.
	ErrCacheCorrupt = errors.New("storage: cached payload is corrupt")
)
