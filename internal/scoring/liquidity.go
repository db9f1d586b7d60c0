package scoring

import (
	"math"

	"github.com/wonho/pulserank/internal/domain"
)

// liquidityScore rates current volume against the instrument's own
// 20-day average. Both volume and avg_volume_20d are required inputs.
func liquidityScore(set domain.SnapshotSet, _ domain.Timeframe) (float64, bool) {
	q := set.Quotes

	volume, ok := q.Number("volume")
	if !ok {
		return 0, false
	}
	avgVolume, ok := q.Number("avg_volume_20d")
	if !ok || avgVolume <= 0 {
		return 0, false
	}

	// Log of relative volume: 1x average is neutral, 3x saturates high,
	// a dead tape saturates low.
	relVol := volume / avgVolume
	if relVol <= 0 {
		return 0, false
	}
	return tanhScale(math.Log(relVol)), true
}
