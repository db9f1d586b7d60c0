package scoring

import "github.com/wonho/pulserank/internal/domain"

// momentumScore rates trailing price momentum over the view's horizon.
//
// Swing blends the 5-day and 1-month returns; position blends 1-month
// and 3-month. Both returns for the horizon are required inputs: if
// either is null the sub-score is inactive, it is never assumed flat.
func momentumScore(set domain.SnapshotSet, tf domain.Timeframe) (float64, bool) {
	q := set.Quotes

	var shortRet, longRet float64
	var shortOK, longOK bool

	switch tf {
	case domain.TimeframePosition:
		shortRet, shortOK = q.Number("return_1m")
		longRet, longOK = q.Number("return_3m")
	default: // swing
		shortRet, shortOK = q.Number("return_5d")
		longRet, longOK = q.Number("return_1m")
	}

	if !shortOK || !longOK {
		return 0, false
	}

	// Returns are fractions (0.12 = +12%). The 3x gain saturates around
	// +/-50% blended return.
	blend := 0.6*shortRet + 0.4*longRet
	return tanhScale(3 * blend), true
}
