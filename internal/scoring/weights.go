package scoring

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Sub-score names. The catalog is fixed; weights are policy.
const (
	SubMomentum  = "momentum"
	SubLiquidity = "liquidity"
	SubQuality   = "quality"
	SubSentiment = "sentiment"
)

// Weights holds the nominal weight of each sub-score. Nominal weights
// must sum to 100; renormalization across active sub-scores happens at
// scoring time.
type Weights struct {
	Momentum  float64 `yaml:"momentum" json:"momentum"`
	Liquidity float64 `yaml:"liquidity" json:"liquidity"`
	Quality   float64 `yaml:"quality" json:"quality"`
	Sentiment float64 `yaml:"sentiment" json:"sentiment"`
}

// weightsFile is the on-disk policy document.
type weightsFile struct {
	Weights Weights `yaml:"weights"`
}

// DefaultWeights returns the built-in nominal weights.
func DefaultWeights() Weights {
	return Weights{
		Momentum:  35,
		Liquidity: 20,
		Quality:   25,
		Sentiment: 20,
	}
}

// LoadWeights reads a YAML weights policy. Unknown fields fail fast so a
// typo in the policy file cannot silently fall back to defaults.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, fmt.Errorf("read weights policy: %w", err)
	}

	var file weightsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return Weights{}, fmt.Errorf("parse weights policy: %w", err)
	}

	if err := file.Weights.Validate(); err != nil {
		return Weights{}, err
	}

	return file.Weights, nil
}

// Validate checks the nominal weights sum to 100 and none is negative.
func (w Weights) Validate() error {
	for name, v := range w.byName() {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}

	sum := w.Momentum + w.Liquidity + w.Quality + w.Sentiment
	if math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("nominal weights must sum to 100, got %.4f", sum)
	}
	return nil
}

func (w Weights) byName() map[string]float64 {
	return map[string]float64{
		SubMomentum:  w.Momentum,
		SubLiquidity: w.Liquidity,
		SubQuality:   w.Quality,
		SubSentiment: w.Sentiment,
	}
}
