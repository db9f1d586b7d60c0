package collector

import (
	"sync"
	"time"

	"github.com/wonho/pulserank/internal/domain"
)

// SnapshotCache holds the latest snapshot per instrument and data class.
// Snapshots are immutable; an update replaces the pointer, and older
// retrievals never overwrite newer ones regardless of arrival order
// (REST backfill racing the websocket stream).
type SnapshotCache struct {
	mu    sync.RWMutex
	snaps map[domain.DataClass]map[string]*domain.Snapshot
}

// NewSnapshotCache creates an empty snapshot cache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		snaps: make(map[domain.DataClass]map[string]*domain.Snapshot),
	}
}

// Put stores a snapshot unless a newer one for the same symbol and class
// is already present. Returns whether the snapshot was accepted.
func (c *SnapshotCache) Put(snap *domain.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	byClass, ok := c.snaps[snap.Class]
	if !ok {
		byClass = make(map[string]*domain.Snapshot)
		c.snaps[snap.Class] = byClass
	}

	if existing, ok := byClass[snap.Symbol]; ok {
		if !snap.RetrievedAt.After(existing.RetrievedAt) {
			return false
		}
	}

	byClass[snap.Symbol] = snap
	return true
}

// Get returns the latest snapshot for a symbol and class, if any.
func (c *SnapshotCache) Get(class domain.DataClass, symbol string) (*domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snaps[class][symbol]
	return snap, ok
}

// GetFresh returns the latest snapshot only if it is inside its TTL.
func (c *SnapshotCache) GetFresh(class domain.DataClass, symbol string, now time.Time) (*domain.Snapshot, bool) {
	snap, ok := c.Get(class, symbol)
	if !ok || snap.Expired(now) {
		return nil, false
	}
	return snap, true
}

// Remove drops all snapshots for a symbol, used on delisting.
func (c *SnapshotCache) Remove(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, byClass := range c.snaps {
		delete(byClass, symbol)
	}
}

// PruneOlderThan drops snapshots retrieved before the cutoff. Expired
// snapshots linger on purpose as the stale fallback; this reclaims the
// ones too old to ever serve again.
func (c *SnapshotCache) PruneOlderThan(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, byClass := range c.snaps {
		for symbol, snap := range byClass {
			if snap.RetrievedAt.Before(cutoff) {
				delete(byClass, symbol)
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of cached snapshots for a class.
func (c *SnapshotCache) Len(class domain.DataClass) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.snaps[class])
}
