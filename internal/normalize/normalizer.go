package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/internal/provider"
	"github.com/wonho/pulserank/pkg/logger"
)

// Normalizer converts raw provider payloads into canonical snapshots.
// This is the defensive boundary: nothing downstream ever sees a vendor
// field name, a string-typed number, or an unchecked NaN/Inf. A value
// that cannot be coerced is left null, never guessed.
type Normalizer struct {
	logger *logger.Logger
}

// New creates a normalizer.
func New(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// fieldMaps translate vendor field names to the canonical schema, one
// table per data class. A vendor field missing from its table is dropped.
var fieldMaps = map[domain.DataClass]map[string]string{
	domain.ClassQuotes: {
		"last":         "last",
		"price":        "last", // stream frames use "price"
		"open":         "open",
		"prevClose":    "prev_close",
		"high":         "high",
		"low":          "low",
		"volume":       "volume",
		"avgVolume20d": "avg_volume_20d",
		"chg1d":        "return_1d",
		"chg5d":        "return_5d",
		"chg1m":        "return_1m",
		"chg3m":        "return_3m",
		"vol20d":       "volatility_20d",
	},
	domain.ClassFundamentals: {
		"peRatio":        "pe",
		"pbRatio":        "pb",
		"returnOnEquity": "roe",
		"debtToEquity":   "debt_ratio",
		"netMargin":      "margin",
		"epsGrowth":      "eps_growth",
	},
	domain.ClassNews: {
		"articleCount": "article_count_24h",
		"impact":       "headline_impact",
		"topHeadline":  "top_headline",
	},
	domain.ClassSentiment: {
		"score":    "social_score",
		"messages": "message_volume",
		"bullPct":  "bullish_ratio",
	},
	domain.ClassMacro: {
		"regime":       "regime",
		"riskAppetite": "risk_appetite",
	},
}

// stringFields lists the canonical fields that carry text, not numbers.
var stringFields = map[string]bool{
	"top_headline": true,
	"regime":       true,
}

// Normalize maps one raw payload into canonical snapshots, one per
// record. Records without a symbol (macro) get the empty symbol.
func (n *Normalizer) Normalize(raw *provider.RawPayload) ([]*domain.Snapshot, error) {
	fieldMap, ok := fieldMaps[raw.Class]
	if !ok {
		return nil, fmt.Errorf("no canonical schema for data class %q", raw.Class)
	}

	snapshots := make([]*domain.Snapshot, 0, len(raw.Records))

	for _, record := range raw.Records {
		snap := &domain.Snapshot{
			Symbol:      record.Symbol,
			Class:       raw.Class,
			Provider:    raw.Provider,
			RetrievedAt: raw.RetrievedAt,
			TTL:         raw.TTL,
			Numbers:     make(map[string]float64),
			Strings:     make(map[string]string),
		}

		for vendorName, value := range record.Fields {
			canonical, mapped := fieldMap[vendorName]
			if !mapped {
				continue
			}

			if stringFields[canonical] {
				if s, ok := coerceString(value); ok {
					snap.Strings[canonical] = s
				}
				continue
			}

			if v, ok := coerceNumber(value); ok {
				snap.Numbers[canonical] = v
			} else if value != nil {
				n.logger.WithFields(map[string]interface{}{
					"class":  raw.Class,
					"symbol": record.Symbol,
					"field":  vendorName,
					"value":  value,
				}).Debug("Dropped uncoercible field value")
			}
		}

		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}

// coerceNumber turns a loosely-typed vendor value into a finite float64.
// NaN, Inf, vendor placeholders and garbage all fail closed to null.
func coerceNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceString accepts only non-empty strings.
func coerceString(value interface{}) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
