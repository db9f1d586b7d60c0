package domain

import (
	"fmt"
	"time"
)

// DataClass identifies one class of provider data.
type DataClass string

const (
	ClassQuotes       DataClass = "quotes"
	ClassFundamentals DataClass = "fundamentals"
	ClassNews         DataClass = "news"
	ClassSentiment    DataClass = "sentiment"
	ClassMacro        DataClass = "macro"
)

// AllClasses lists every data class in a stable order.
func AllClasses() []DataClass {
	return []DataClass{ClassQuotes, ClassFundamentals, ClassNews, ClassSentiment, ClassMacro}
}

// Snapshot is the canonical, normalized record of one provider retrieval
// for one instrument. Snapshots are immutable once created; a new
// retrieval produces a new snapshot version.
//
// Fields absent from the maps are null: the value was missing, malformed
// or non-finite at the provider and was dropped at the normalize boundary.
type Snapshot struct {
	Symbol      string        `json:"symbol"`
	Class       DataClass     `json:"class"`
	Provider    string        `json:"provider"`
	RetrievedAt time.Time     `json:"retrieved_at"`
	TTL         time.Duration `json:"ttl"`

	Numbers map[string]float64 `json:"numbers,omitempty"`
	Strings map[string]string  `json:"strings,omitempty"`
}

// Version identifies this snapshot for ScoreRecord traceability.
func (s *Snapshot) Version() string {
	return fmt.Sprintf("%s:%s:%d", s.Class, s.Provider, s.RetrievedAt.UnixNano())
}

// Number returns a numeric field; ok is false when the field is null.
func (s *Snapshot) Number(name string) (float64, bool) {
	if s == nil || s.Numbers == nil {
		return 0, false
	}
	v, ok := s.Numbers[name]
	return v, ok
}

// String returns a string field; ok is false when the field is null.
func (s *Snapshot) String(name string) (string, bool) {
	if s == nil || s.Strings == nil {
		return "", false
	}
	v, ok := s.Strings[name]
	return v, ok
}

// Expired reports whether the snapshot is past its freshness TTL at now.
func (s *Snapshot) Expired(now time.Time) bool {
	return now.Sub(s.RetrievedAt) > s.TTL
}

// SnapshotSet is the fixed set of per-class snapshots one scoring run
// computes from. Entries may be nil when the class could not be fetched;
// the scoring engine treats a nil snapshot as all fields null.
type SnapshotSet struct {
	Quotes       *Snapshot
	Fundamentals *Snapshot
	News         *Snapshot
	Sentiment    *Snapshot
}

// Get returns the snapshot for a class, nil if absent.
func (ss SnapshotSet) Get(class DataClass) *Snapshot {
	switch class {
	case ClassQuotes:
		return ss.Quotes
	case ClassFundamentals:
		return ss.Fundamentals
	case ClassNews:
		return ss.News
	case ClassSentiment:
		return ss.Sentiment
	}
	return nil
}

// Versions lists the versions of all present snapshots.
func (ss SnapshotSet) Versions() []string {
	var versions []string
	for _, s := range []*Snapshot{ss.Quotes, ss.Fundamentals, ss.News, ss.Sentiment} {
		if s != nil {
			versions = append(versions, s.Version())
		}
	}
	return versions
}

// Oldest returns the earliest retrieval time among present snapshots.
// The zero time is returned when the set is empty.
func (ss SnapshotSet) Oldest() time.Time {
	var oldest time.Time
	for _, s := range []*Snapshot{ss.Quotes, ss.Fundamentals, ss.News, ss.Sentiment} {
		if s == nil {
			continue
		}
		if oldest.IsZero() || s.RetrievedAt.Before(oldest) {
			oldest = s.RetrievedAt
		}
	}
	return oldest
}
