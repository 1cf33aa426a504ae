package features

import (
	_ "embed"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

//go:embed coefficients.yaml
var coefficientsYAML []byte

var defaultCoefficients = mustParseTable(coefficientsYAML)

type coefficientTable struct {
	Intercept float64 `yaml:"intercept"`
	Weights   []struct {
		Feature string  `yaml:"feature"`
		Weight  float64 `yaml:"weight"`
	} `yaml:"weights"`
}

// ParseTable decodes a YAML coefficient table into intercept-first form.
// The weights must name the features in vector order.
func ParseTable(data []byte) ([]float64, error) {
	var t coefficientTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse coefficient table: %w", err)
	}
	names := Names()
	if len(t.Weights) != len(names) {
		return nil, fmt.Errorf("%w: table has %d weights, want %d", ErrFeatureLengthMismatch, len(t.Weights), len(names))
	}
	coefficients := make([]float64, 0, len(names)+1)
	coefficients = append(coefficients, t.Intercept)
	for i, w := range t.Weights {
		if w.Feature != names[i] {
			return nil, fmt.Errorf("coefficient %d is for %q, want %q", i, w.Feature, names[i])
		}
		coefficients = append(coefficients, w.Weight)
	}
	return coefficients, nil
}

func mustParseTable(data []byte) []float64 {
	c, err := ParseTable(data)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultCoefficients returns a copy of the built-in intercept-first table.
func DefaultCoefficients() []float64 {
	return append([]float64(nil), defaultCoefficients...)
}

// Correlator maps a feature vector to a force estimate with a fixed
// linear model.
type Correlator struct {
	coefficients []float64
}

// NewCorrelator returns a correlator over intercept-first coefficients.
func NewCorrelator(coefficients []float64) (*Correlator, error) {
	if len(coefficients) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", ErrFeatureLengthMismatch)
	}
	return &Correlator{coefficients: append([]float64(nil), coefficients...)}, nil
}

// DefaultCorrelator uses the built-in table.
func DefaultCorrelator() *Correlator {
	return &Correlator{coefficients: DefaultCoefficients()}
}

// Evaluate returns coefficients[0] + sum(features[i] * coefficients[i+1]).
func (c *Correlator) Evaluate(set *Set) (float64, error) {
	values := set.Values()
	if len(values) != len(c.coefficients)-1 {
		return 0, fmt.Errorf("%w: got %d features, model takes %d", ErrFeatureLengthMismatch, len(values), len(c.coefficients)-1)
	}
	force := c.coefficients[0] + floats.Dot(values, c.coefficients[1:])
	logger.WithField("force", force).Debug("Force evaluated")
	return force, nil
}
