package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"kick-analytics/codec"
)

func mean(s *series) float64     { return stat.Mean(s.values, nil) }
func kurtosis(s *series) float64 { return stat.ExKurtosis(s.values, nil) }
func maximum(s *series) float64  { return floats.Max(s.values) }
func minimum(s *series) float64  { return floats.Min(s.values) }
func skewness(s *series) float64 { return stat.Skew(s.values, nil) }
func stdDev(s *series) float64   { return stat.StdDev(s.values, nil) }

func averageDeviation(s *series) float64 {
	m := stat.Mean(s.values, nil)
	sum := 0.0
	for _, v := range s.values {
		sum += math.Abs(v - m)
	}
	return sum / float64(len(s.values))
}

func rmsAmplitude(s *series) float64 {
	return math.Sqrt(floats.Dot(s.values, s.values) / float64(len(s.values)))
}

// rmssd is the root mean square of successive differences between the
// intervals separating local maxima, in seconds.
func rmssd(s *series) float64 {
	peaks := localMaxima(s.values)
	if len(peaks) < 3 {
		return 0
	}
	intervals := make([]float64, len(peaks)-1)
	for i := range intervals {
		intervals[i] = float64(peaks[i+1]-peaks[i]) * codec.SamplePeriod
	}
	sum := 0.0
	for i := 1; i < len(intervals); i++ {
		d := intervals[i] - intervals[i-1]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(intervals)-1))
}

func localMaxima(values []float64) []int {
	var peaks []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] > values[i-1] && values[i] >= values[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func meanAbsFirstDiff(s *series) float64 {
	n := len(s.values)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += math.Abs(s.values[i] - s.values[i-1])
	}
	return sum / float64(n-1)
}

func meanAbsSecondDiff(s *series) float64 {
	n := len(s.values)
	if n < 3 {
		return 0
	}
	sum := 0.0
	for i := 2; i < n; i++ {
		sum += math.Abs(s.values[i] - 2*s.values[i-1] + s.values[i-2])
	}
	return sum / float64(n-2)
}

// zeroCrossingRate is the fraction of samples whose sign differs from the
// previous sample's.
func zeroCrossingRate(s *series) float64 {
	n := len(s.values)
	crossings := 0
	for i := 1; i < n; i++ {
		if (s.values[i] >= 0) != (s.values[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(n)
}
