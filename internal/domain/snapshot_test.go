package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_NumberNullability(t *testing.T) {
	s := &Snapshot{
		Symbol:  "AAA",
		Class:   ClassQuotes,
		Numbers: map[string]float64{"last": 101.5},
	}

	v, ok := s.Number("last")
	assert.True(t, ok)
	assert.Equal(t, 101.5, v)

	_, ok = s.Number("volume")
	assert.False(t, ok, "absent field must read as null")

	var nilSnap *Snapshot
	_, ok = nilSnap.Number("last")
	assert.False(t, ok, "nil snapshot must read as all-null")
}

func TestSnapshotSet_Oldest(t *testing.T) {
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	set := SnapshotSet{
		Quotes:       &Snapshot{Class: ClassQuotes, RetrievedAt: base.Add(30 * time.Second)},
		Fundamentals: &Snapshot{Class: ClassFundamentals, RetrievedAt: base},
		Sentiment:    &Snapshot{Class: ClassSentiment, RetrievedAt: base.Add(time.Minute)},
	}

	assert.Equal(t, base, set.Oldest(), "freshness is bounded by the stalest input")
}

func TestSnapshotSet_OldestEmpty(t *testing.T) {
	assert.True(t, SnapshotSet{}.Oldest().IsZero())
}

func TestSnapshotSet_Versions(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	set := SnapshotSet{
		Quotes: &Snapshot{Class: ClassQuotes, Provider: "marketfeed", RetrievedAt: at},
	}

	versions := set.Versions()
	assert.Len(t, versions, 1)
	assert.Contains(t, versions[0], "quotes:marketfeed:")
}

func TestSnapshot_Expired(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	s := &Snapshot{RetrievedAt: at, TTL: time.Minute}

	assert.False(t, s.Expired(at.Add(59*time.Second)))
	assert.True(t, s.Expired(at.Add(61*time.Second)))
}

func TestScoreRecord_ActiveWeightSum(t *testing.T) {
	r := &ScoreRecord{
		SubScores: map[string]SubScore{
			"momentum":  {Value: 80, Weight: 60, Active: true},
			"liquidity": {Value: 50, Weight: 40, Active: true},
			"quality":   {Weight: 999, Active: false}, // inactive weight must not count
		},
	}

	assert.InDelta(t, 100.0, r.ActiveWeightSum(), 1e-9)
}

func TestInstrument_HasTheme(t *testing.T) {
	inst := Instrument{Symbol: "AAA", Themes: []string{"ai", "semis"}}

	assert.True(t, inst.HasTheme("AI"))
	assert.False(t, inst.HasTheme("ev"))
}

func TestParseTimeframe(t *testing.T) {
	assert.Equal(t, TimeframePosition, ParseTimeframe("position"))
	assert.Equal(t, TimeframeSwing, ParseTimeframe("swing"))
	assert.Equal(t, TimeframeSwing, ParseTimeframe(""))
	assert.Equal(t, TimeframeSwing, ParseTimeframe("intraday"))
}
