package provider

import (
	"context"
	"time"

	"github.com/wonho/pulserank/internal/domain"
)

// RawPayload is the tagged variant an adapter returns: one data class,
// one provider, one retrieval. Vendor response shapes are decoded into
// loosely-typed records here and never travel past the normalizer.
type RawPayload struct {
	Class       domain.DataClass
	Provider    string
	RetrievedAt time.Time
	TTL         time.Duration
	Records     []RawRecord
}

// RawRecord holds one instrument's raw fields as the vendor named them.
// Values keep vendor types (string, float64, bool, nil); the normalizer
// owns coercion. Symbol is empty for market-level payloads (macro).
type RawRecord struct {
	Symbol string
	Fields map[string]interface{}
}

// Adapter is the contract every provider adapter satisfies. Adapters are
// stateless aside from their rate budget and breaker.
type Adapter interface {
	// Class returns the data class this adapter serves.
	Class() domain.DataClass

	// Provider returns the provider id for snapshot attribution.
	Provider() string

	// FreshnessTTL returns the freshness class of this provider's data.
	FreshnessTTL() time.Duration

	// Fetch retrieves raw data for a batch of symbols. Transient
	// failures are retried inside; the error taxonomy of
	// internal/domain is all that escapes.
	Fetch(ctx context.Context, symbols []string) (*RawPayload, error)
}

type priorityKey struct{}

// Priority marks whether a fetch serves a foreground request or a
// background refresh. Background work gets a shorter budget wait so it
// yields to foreground demand.
type Priority int

const (
	Foreground Priority = iota
	Background
)

// WithPriority tags the context with a fetch priority.
func WithPriority(ctx context.Context, p Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFrom reads the fetch priority off the context, defaulting to
// foreground.
func PriorityFrom(ctx context.Context) Priority {
	if p, ok := ctx.Value(priorityKey{}).(Priority); ok {
		return p
	}
	return Foreground
}
