package scoring

import "github.com/wonho/pulserank/internal/domain"

// qualityScore rates fundamentals health. ROE is the required input;
// debt ratio and net margin refine the score when present but their
// absence leaves them out of the average entirely, it does not zero them.
func qualityScore(set domain.SnapshotSet, _ domain.Timeframe) (float64, bool) {
	f := set.Fundamentals

	roe, ok := f.Number("roe")
	if !ok {
		return 0, false
	}

	// ROE in percent; 10% is the neutral line.
	components := []float64{tanhScale((roe - 10) / 10)}

	if debt, ok := f.Number("debt_ratio"); ok {
		// Debt-to-equity of 1 is neutral, lower is better.
		components = append(components, tanhScale(1-debt))
	}

	if margin, ok := f.Number("margin"); ok {
		// Net margin in percent; 5% is the neutral line.
		components = append(components, tanhScale((margin-5)/10))
	}

	var sum float64
	for _, c := range components {
		sum += c
	}
	return sum / float64(len(components)), true
}
