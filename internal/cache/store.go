package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/logger"
)

// Clock abstracts time so staleness policy is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ComputeFunc produces a fresh value for a cache key.
type ComputeFunc func(ctx context.Context) (interface{}, error)

// Recorder receives cache events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Hit(endpoint string)
	Miss(endpoint string)
	StaleServe(endpoint string, age time.Duration)
	Fill(endpoint string, ok bool)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) Hit(string)                       {}
func (NopRecorder) Miss(string)                      {}
func (NopRecorder) StaleServe(string, time.Duration) {}
func (NopRecorder) Fill(string, bool)                {}

// Result is a cache read outcome. Stale means the value outlived its
// TTL and is served because a recompute failed; AsOf is always the time
// the value was actually computed.
type Result struct {
	Value interface{}
	Stale bool
	AsOf  time.Time
}

type entry struct {
	value     interface{}
	createdAt time.Time
	ttl       time.Duration
	compute   ComputeFunc
}

func (e *entry) age(now time.Time) time.Duration { return now.Sub(e.createdAt) }
func (e *entry) fresh(now time.Time) bool        { return e.age(now) < e.ttl }

// Options configures a Store.
type Options struct {
	// RefreshAhead is the fraction of TTL after which an entry becomes
	// due for background refresh. Must be in (0, 1).
	RefreshAhead float64
	// MaxStaleFactor caps stale serving at MaxStaleFactor * TTL past
	// creation. Must be > 1.
	MaxStaleFactor float64
	// Clock defaults to wall time.
	Clock Clock
	// Recorder defaults to NopRecorder.
	Recorder Recorder
}

// Store is the result cache. Expired entries are not dropped on read;
// they stay as the stale fallback until MaxStaleFactor*TTL.
//
// Fills run through singleflight, so any number of concurrent misses on
// one key produce exactly one computation. A fill runs on a context
// detached from the triggering request; a caller that gives up waiting
// falls back to stale-or-error while the fill completes for the next
// caller.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	group    singleflight.Group
	clock    Clock
	ahead    float64
	maxStale float64
	rec      Recorder
	logger   *logger.Logger
}

// NewStore creates a Store.
func NewStore(opts Options, log *logger.Logger) (*Store, error) {
	if opts.RefreshAhead <= 0 || opts.RefreshAhead >= 1 {
		return nil, fmt.Errorf("cache: refresh-ahead fraction %v out of (0,1)", opts.RefreshAhead)
	}
	if opts.MaxStaleFactor <= 1 {
		return nil, fmt.Errorf("cache: max stale factor %v must exceed 1", opts.MaxStaleFactor)
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}

	return &Store{
		entries:  make(map[string]*entry),
		clock:    opts.Clock,
		ahead:    opts.RefreshAhead,
		maxStale: opts.MaxStaleFactor,
		rec:      opts.Recorder,
		logger:   log,
	}, nil
}

// GetOrCompute returns the cached value for key, computing it when
// missing or expired. compute is remembered per key so the background
// refresh sweep can rerun it later.
func (s *Store) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (*Result, error) {
	now := s.clock.Now()
	ep := endpointOf(key)

	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		e.compute = compute
	}
	s.mu.Unlock()

	if ok && e.fresh(now) {
		s.rec.Hit(ep)
		return &Result{Value: e.value, AsOf: e.createdAt}, nil
	}
	s.rec.Miss(ep)

	value, err := s.fill(ctx, key, ttl, compute, false)
	if err != nil {
		return s.fallback(key, ep, err)
	}

	s.mu.RLock()
	asOf := now
	if cur, ok := s.entries[key]; ok {
		asOf = cur.createdAt
	}
	s.mu.RUnlock()

	return &Result{Value: value, AsOf: asOf}, nil
}

// fill runs compute under singleflight. The computation itself is
// detached from the caller's context: an abandoned wait must not cancel
// a fill other callers are sharing. force recomputes even when the
// entry is still fresh; refresh-ahead runs before the TTL expires.
func (s *Store) fill(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc, force bool) (interface{}, error) {
	detached := context.WithoutCancel(ctx)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		now := s.clock.Now()

		// Another caller may have filled the entry while this one
		// queued behind the flight.
		s.mu.RLock()
		e, ok := s.entries[key]
		s.mu.RUnlock()
		if !force && ok && e.fresh(now) {
			return e.value, nil
		}

		value, err := compute(detached)
		if err != nil {
			s.rec.Fill(endpointOf(key), false)
			return nil, err
		}

		s.store(key, value, ttl, compute)
		s.rec.Fill(endpointOf(key), true)
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fallback serves the last known-good value after a failed fill, up to
// the hard staleness floor. Past the floor the failure surfaces.
func (s *Store) fallback(key, ep string, cause error) (*Result, error) {
	now := s.clock.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if ok && e.value != nil {
		age := e.age(now)
		if float64(age) <= s.maxStale*float64(e.ttl) {
			s.rec.StaleServe(ep, age)
			s.logger.WithFields(map[string]interface{}{
				"key": key,
				"age": age.String(),
			}).Warn("Serving stale cache entry after failed refresh")
			return &Result{Value: e.value, Stale: true, AsOf: e.createdAt}, nil
		}
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, cause)
}

func (s *Store) store(key string, value interface{}, ttl time.Duration, compute ComputeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{
		value:     value,
		createdAt: s.clock.Now(),
		ttl:       ttl,
		compute:   compute,
	}
}

// Invalidate removes exact keys regardless of TTL.
func (s *Store) Invalidate(keys ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range keys {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// InvalidatePrefix removes every key under a namespace prefix, e.g. all
// ranked views after a universe membership change.
func (s *Store) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RefreshDue returns the keys whose age has crossed the refresh-ahead
// fraction of their TTL but not the staleness floor. Entries past the
// floor are not worth refreshing here; the next foreground read handles
// them.
func (s *Store) RefreshDue() []string {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []string
	for key, e := range s.entries {
		age := float64(e.age(now))
		if age >= s.ahead*float64(e.ttl) && age <= s.maxStale*float64(e.ttl) {
			due = append(due, key)
		}
	}
	return due
}

// Refresh recomputes one tracked key in place. A failed refresh leaves
// the existing entry untouched.
func (s *Store) Refresh(ctx context.Context, key string) error {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.compute == nil {
		return fmt.Errorf("cache: key %q not tracked", key)
	}

	_, err := s.fill(ctx, key, e.ttl, e.compute, true)
	return err
}

// Len reports the number of tracked entries, stale ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys lists tracked keys for the admin surface.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// endpointOf strips the hash part of a fingerprinted key for metric
// labels, keeping label cardinality bounded.
func endpointOf(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
