package analytics

import (
	"errors"
	"fmt"
	"math"

	"kick-analytics/codec"
	"kick-analytics/features"
	"kick-analytics/impact"
)

// MinImpactPeak is the smallest single-axis acceleration, in g, that counts
// as an impact. A ball at rest reads 1 g on one axis.
const MinImpactPeak = 2.0

var (
	// ErrCaptureNotSealed is returned for a capture still being filled.
	ErrCaptureNotSealed = errors.New("capture is not sealed")
	// ErrNoImpact is returned when a capture holds no impact region.
	ErrNoImpact = errors.New("no impact found in capture")
)

// Result is the outcome of analysing one capture.
type Result struct {
	Force    float64        `json:"force"` // N
	Region   impact.Region  `json:"region"`
	Regions  int            `json:"regions"`
	Peak     float64        `json:"peak"` // g
	Samples  int            `json:"samples"`
	DataType codec.DataType `json:"data_type"`
	Features *features.Set  `json:"features"`
}

// Analyze locates the strongest impact in a sealed capture and estimates its
// force.
func Analyze(c *codec.Capture, correlator *features.Correlator) (*Result, error) {
	if !c.Sealed() {
		return nil, ErrCaptureNotSealed
	}
	samples := c.Samples()
	mags := impact.Magnitudes(samples)
	regions := impact.FindRegions(mags)
	if len(regions) == 0 {
		return nil, ErrNoImpact
	}

	best, bestPeak := regions[0], peak(mags, regions[0])
	for _, r := range regions[1:] {
		if p := peak(mags, r); p > bestPeak {
			best, bestPeak = r, p
		}
	}
	if bestPeak < MinImpactPeak {
		return nil, fmt.Errorf("%w: peak %.2f g in %s", ErrNoImpact, bestPeak, best)
	}

	set, err := features.ExtractRegion(samples, best)
	if err != nil {
		return nil, fmt.Errorf("extract features of %s: %w", best, err)
	}
	force, err := correlator.Evaluate(set)
	if err != nil {
		return nil, err
	}
	return &Result{
		Force:    force,
		Region:   best,
		Regions:  len(regions),
		Peak:     bestPeak,
		Samples:  len(samples),
		DataType: c.DataType(),
		Features: set,
	}, nil
}

// peak is the largest single-axis magnitude inside r.
func peak(mags [][3]float64, r impact.Region) float64 {
	p := 0.0
	for _, m := range mags[r.Start : r.End+1] {
		p = math.Max(p, math.Max(m[0], math.Max(m[1], m[2])))
	}
	return p
}
