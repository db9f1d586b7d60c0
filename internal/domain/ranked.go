package domain

import "time"

// RankParams are the request parameters a ranked view was produced for.
type RankParams struct {
	Timeframe Timeframe `json:"timeframe"`
	Sector    string    `json:"sector,omitempty"`
	Theme     string    `json:"theme,omitempty"`
	Limit     int       `json:"limit"`
}

// RankedEntry is one row of a ranked view.
type RankedEntry struct {
	Rank int `json:"rank"` // 1-based
	ScoreRecord
}

// RankedResult is an ordered, parameterized view over ScoreRecords.
type RankedResult struct {
	Params  RankParams    `json:"params"`
	Entries []RankedEntry `json:"entries"`

	// AsOf is the oldest contributing ScoreRecord's ComputedAt, not the
	// newest: the view is only as fresh as its stalest row.
	AsOf time.Time `json:"as_of"`

	// Excluded counts instruments dropped for insufficient data, so a
	// client can surface coverage without N/A rows.
	Excluded int `json:"excluded"`
}

// Top returns the first n entries.
func (r *RankedResult) Top(n int) []RankedEntry {
	if n > len(r.Entries) {
		n = len(r.Entries)
	}
	return r.Entries[:n]
}
