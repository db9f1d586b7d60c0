package domain

import "time"

// SubScore is one named, weighted component of the composite score.
type SubScore struct {
	// Value is the sub-score in [0, 100]. Meaningless when Active is false.
	Value float64 `json:"value"`

	// NominalWeight is the catalog weight before renormalization.
	NominalWeight float64 `json:"nominal_weight"`

	// Weight is the contributed weight after renormalizing across active
	// sub-scores so active weights always sum to 100.
	Weight float64 `json:"weight"`

	// Active is false when a required input field was null; inactive
	// sub-scores contribute nothing rather than counting as zero.
	Active bool `json:"active"`
}

// ScoreRecord is the composite score for one instrument, derived from a
// fixed set of snapshot versions.
type ScoreRecord struct {
	Symbol       string              `json:"symbol"`
	Total        float64             `json:"total"` // [0, 100]
	SubScores    map[string]SubScore `json:"sub_scores"`
	SnapshotRefs []string            `json:"snapshot_refs"`

	// ComputedAt is the oldest contributing snapshot's retrieval time:
	// the record is only as fresh as its stalest input.
	ComputedAt time.Time `json:"computed_at"`
}

// ActiveWeightSum returns the sum of renormalized weights of active
// sub-scores. It must equal 100 for every valid record.
func (r *ScoreRecord) ActiveWeightSum() float64 {
	var sum float64
	for _, s := range r.SubScores {
		if s.Active {
			sum += s.Weight
		}
	}
	return sum
}

// SubScoreValue returns a sub-score value, with ok false when the
// sub-score is absent or inactive.
func (r *ScoreRecord) SubScoreValue(name string) (float64, bool) {
	s, exists := r.SubScores[name]
	if !exists || !s.Active {
		return 0, false
	}
	return s.Value, true
}
