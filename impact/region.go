// Package impact locates the part of a capture that holds the actual impact.
package impact

import (
	"fmt"
	"math"
	"sort"

	"kick-analytics/codec"
)

// Fixed filter constants.
const (
	smoothingPasses = 5
	riseExponent    = 1.41
	averageWindow   = 16
	thresholdDiv    = 2
	tailDiv         = 10
)

// Region is an inclusive index range [Start, End] into a capture.
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the region.
func (r Region) Len() int { return r.End - r.Start + 1 }

func (r Region) String() string { return fmt.Sprintf("[%d, %d]", r.Start, r.End) }

// Magnitudes returns the per-axis absolute acceleration in g.
func Magnitudes(samples []codec.Sample) [][3]float64 {
	out := make([][3]float64, len(samples))
	for i, s := range samples {
		x, y, z := s.G()
		out[i] = [3]float64{math.Abs(x), math.Abs(y), math.Abs(z)}
	}
	return out
}

// FindRegions returns the non-overlapping impact regions of a 3-axis
// magnitude series, ordered by start. The input is not modified.
func FindRegions(series [][3]float64) []Region {
	n := len(series)
	if n < 2 {
		return nil
	}
	v := make([][3]float64, n)
	enhanceEdges(v, series)
	for pass := 0; pass < smoothingPasses; pass++ {
		smooth(v)
	}
	f, maxVal := collapse(v)

	threshold := maxVal / thresholdDiv
	regions := threshold1D(f, threshold)
	low := threshold / tailDiv
	for i := range regions {
		regions[i] = refine(f, regions[i], low)
	}
	return merge(regions)
}

// enhanceEdges weights every interior value of src by how much it differs
// from its neighbours and stores the result in dst. Neighbours are always
// read from the unfiltered series.
func enhanceEdges(dst, src [][3]float64) {
	copy(dst, src)
	for i := 1; i < len(src)-1; i++ {
		for j := 0; j < 3; j++ {
			diff := math.Abs(src[i][j]-src[i-1][j]) + math.Abs(src[i][j]-src[i+1][j])
			dst[i][j] = math.Abs(src[i][j] * diff)
		}
	}
}

// smooth favours sustained rises: rises build momentum, and a dip smaller
// than the momentum is filled back in.
func smooth(v [][3]float64) {
	for j := 0; j < 3; j++ {
		m := 0.0
		for i := 1; i < len(v); i++ {
			switch d := v[i][j] - v[i-1][j]; {
			case d > 0:
				m += math.Pow(d, riseExponent)
			case d < 0:
				if fall := -d; m > fall {
					v[i][j] += fall
					m -= math.Sqrt(fall)
				}
			}
		}
	}
}

// collapse keeps the largest axis per index.
func collapse(v [][3]float64) ([]float64, float64) {
	f := make([]float64, len(v))
	maxVal := 0.0
	for i, row := range v {
		f[i] = math.Max(row[0], math.Max(row[1], row[2]))
		maxVal = math.Max(maxVal, f[i])
	}
	return f, maxVal
}

func threshold1D(f []float64, threshold float64) []Region {
	var (
		regions []Region
		inside  bool
		start   int
	)
	for i, x := range f {
		switch {
		case !inside && x > threshold:
			inside = true
			start = max(i-1, 0)
		case inside && x < threshold:
			inside = false
			regions = append(regions, Region{Start: start, End: i})
		}
	}
	if inside {
		regions = append(regions, Region{Start: start, End: len(f) - 1})
	}
	return regions
}

// refine widens r to the quiet level on both sides, then adds the original
// width again as margin after the end.
func refine(f []float64, r Region, low float64) Region {
	width := r.End - r.Start
	last := len(f) - 1

	start := r.Start
	for start > 0 && f[start] > low {
		start--
	}

	end := r.End
	for end < last && movingAverage(f, end) >= low {
		end++
	}
	end = min(end+width, last)
	return Region{Start: start, End: end}
}

func movingAverage(f []float64, center int) float64 {
	from := max(center-averageWindow/2, 0)
	to := min(center+averageWindow/2, len(f))
	sum := 0.0
	for _, x := range f[from:to] {
		sum += x
	}
	return sum / float64(to-from)
}

// merge joins overlapping regions, scanning from the last one backwards.
// A merge can grow a region past its new right neighbour, so the scan
// repeats until nothing changes.
func merge(regions []Region) []Region {
	sort.SliceStable(regions, func(a, b int) bool { return regions[a].Start < regions[b].Start })
	for merged := true; merged; {
		merged = false
		for i := len(regions) - 1; i > 0; i-- {
			prev, cur := &regions[i-1], regions[i]
			if prev.End >= cur.Start {
				prev.End = max(prev.End, cur.End)
				regions = append(regions[:i], regions[i+1:]...)
				merged = true
			}
		}
	}
	return regions
}
