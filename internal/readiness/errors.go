package readiness

import "errors"

// Cache-state sentinels. These are expected, non-fatal signals: the
// caller falls back to on-demand assembly or shows a loading state.
var (
	// ErrCacheMiss means nothing is cached for the (user, tube).
	ErrCacheMiss = errors.New("readiness: cache miss")

	// ErrCacheExpired means a bundle is cached but past its validity.
	ErrCacheExpired = errors.New("readiness: cache expired")

	// ErrStitchNotReady means the cached bundle fails the completeness
	// check and must not be served.
	ErrStitchNotReady = errors.New("readiness: stitch not ready")

	// ErrStalePreparation means an in-flight preparation finished after
	// its tube was invalidated; the result was discarded.
	ErrStalePreparation = errors.New("readiness: preparation superseded by invalidation")
)
