package features

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"kick-analytics/codec"
	"kick-analytics/impact"
)

var logger = logrus.WithField("component", "features")

var (
	// ErrEmptyWindow is returned when there are no samples to reduce.
	ErrEmptyWindow = errors.New("empty feature window")
	// ErrFeatureLengthMismatch is returned when a feature vector does not
	// fit the coefficient table.
	ErrFeatureLengthMismatch = errors.New("feature count does not match coefficient table")
)

type feature struct {
	name   string
	single func(*series) float64
	double func(a, b *series) float64
}

// table is the feature order the coefficient table is fitted against.
var table = []feature{
	{name: "mean", single: mean},
	{name: "kurtosis", single: kurtosis},
	{name: "max", single: maximum},
	{name: "min", single: minimum},
	{name: "skewness", single: skewness},
	{name: "standard_deviation", single: stdDev},
	{name: "average_deviation", single: averageDeviation},
	{name: "rms_amplitude", single: rmsAmplitude},
	{name: "spectral_energy", single: spectralEnergy},
	{name: "pearson_correlation", double: pearson},
	{name: "spearman_correlation", double: spearman},
	{name: "kendall_correlation", double: kendall},
	{name: "covariance", double: covariance},
	{name: "spectral_standard_deviation", single: spectralStdDev},
	{name: "spectral_centroid", single: spectralCentroid},
	{name: "spectral_skewness", single: spectralSkewness},
	{name: "spectral_kurtosis", single: spectralKurtosis},
	{name: "spectral_crest", single: spectralCrest},
	{name: "irregularity_k", single: irregularityK},
	{name: "irregularity_j", single: irregularityJ},
	{name: "spectral_flatness", single: spectralFlatness},
	{name: "spectral_smoothness", single: spectralSmoothness},
	{name: "rmssd", single: rmssd},
	{name: "mean_abs_first_difference", single: meanAbsFirstDiff},
	{name: "mean_abs_second_difference", single: meanAbsSecondDiff},
	{name: "zero_crossing_rate", single: zeroCrossingRate},
}

// Names returns the feature names in vector order.
func Names() []string {
	names := make([]string, len(table))
	for i, f := range table {
		names[i] = f.name
	}
	return names
}

// Extract computes every feature over three equally long axis series.
// Single-axis features are averaged over the axes, double-axis features
// over the three axis pairs.
func Extract(x, y, z []float64) (*Set, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyWindow
	}
	if len(y) != n || len(z) != n {
		return nil, fmt.Errorf("%w: axis lengths %d/%d/%d", ErrEmptyWindow, len(x), len(y), len(z))
	}

	axes := [3]*series{newSeries(x), newSeries(y), newSeries(z)}
	pairs := [3][2]*series{{axes[0], axes[1]}, {axes[0], axes[2]}, {axes[1], axes[2]}}

	set := NewSet()
	for _, f := range table {
		sum := 0.0
		if f.single != nil {
			for _, a := range axes {
				sum += finite(f.single(a))
			}
		} else {
			for _, p := range pairs {
				sum += finite(f.double(p[0], p[1]))
			}
		}
		set.Add(f.name, sum/3)
	}
	logger.WithField("samples", n).Debug("Features extracted")
	return set, nil
}

// ExtractRegion computes the features of the inclusive sample range r, with
// each axis in g.
func ExtractRegion(samples []codec.Sample, r impact.Region) (*Set, error) {
	if r.Start < 0 || r.End >= len(samples) || r.Start > r.End {
		return nil, fmt.Errorf("%w: region %s outside %d samples", ErrEmptyWindow, r, len(samples))
	}
	window := samples[r.Start : r.End+1]
	x := make([]float64, len(window))
	y := make([]float64, len(window))
	z := make([]float64, len(window))
	for i, s := range window {
		x[i], y[i], z[i] = s.G()
	}
	return Extract(x, y, z)
}
