package domain

import "errors"

// Error taxonomy. Callers classify with errors.Is; nothing above the
// provider adapters ever sees a raw vendor error.
var (
	// ErrProviderUnavailable marks a transient provider failure that
	// survived the adapter's retry budget (outage, open breaker).
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited is returned when a call could not acquire provider
	// budget within its bounded wait. A delay signal, not a hard failure.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInstrument marks a non-retryable rejection (unknown or
	// delisted symbol) and propagates to the caller.
	ErrInvalidInstrument = errors.New("invalid instrument")

	// ErrInsufficientData means no sub-score was computable for an
	// instrument. It excludes the instrument from ranking and is not an
	// application error.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDataUnavailable is the only failure callers ever see: no live
	// entry, recomputation failed, and the last known-good entry is past
	// the hard staleness floor.
	ErrDataUnavailable = errors.New("data unavailable")
)
