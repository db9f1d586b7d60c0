package scoring

import "github.com/wonho/pulserank/internal/domain"

// sentimentScore blends social sentiment with news impact. The social
// score is the required input; bullish ratio and headline impact join
// the blend when present, with the internal weights renormalized over
// whichever components exist.
//
// Documented exception to the no-null-as-zero rule: when a news snapshot
// is present but article_count_24h is null, the count is treated as zero
// articles. An empty wire page genuinely means no coverage, unlike a
// missing ratio.
func sentimentScore(set domain.SnapshotSet, _ domain.Timeframe) (float64, bool) {
	s := set.Sentiment

	social, ok := s.Number("social_score")
	if !ok {
		return 0, false
	}

	type component struct {
		value  float64
		weight float64
	}

	// social_score is -1..1 with 0 neutral.
	components := []component{{value: tanhScale(1.5 * social), weight: 0.6}}

	if bull, ok := s.Number("bullish_ratio"); ok {
		// bullish_ratio is 0..1 with 0.5 neutral.
		components = append(components, component{value: tanhScale(3 * (bull - 0.5)), weight: 0.2})
	}

	if n := set.News; n != nil {
		count, ok := n.Number("article_count_24h")
		if !ok {
			count = 0
		}
		if impact, ok := n.Number("headline_impact"); ok && count > 0 {
			// headline_impact is -1..1 averaged over the day's articles.
			components = append(components, component{value: tanhScale(1.5 * impact), weight: 0.2})
		}
	}

	var value, weightSum float64
	for _, c := range components {
		value += c.value * c.weight
		weightSum += c.weight
	}
	return value / weightSum, true
}
