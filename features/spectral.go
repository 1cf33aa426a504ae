package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spectral features treat amps as bin weights and freqs as bin positions.

// dbFloor bounds the log amplitude used by spectral smoothness.
const dbFloor = -96.0

func spectralEnergy(s *series) float64 {
	return floats.Dot(s.amps, s.amps) / float64(len(s.amps))
}

func spectralCentroid(s *series) float64 {
	total := floats.Sum(s.amps)
	if total == 0 {
		return 0
	}
	return floats.Dot(s.freqs, s.amps) / total
}

// spectralMoment returns the amplitude-weighted central moment of order k.
func spectralMoment(s *series, k float64) float64 {
	total := floats.Sum(s.amps)
	if total == 0 {
		return 0
	}
	c := spectralCentroid(s)
	sum := 0.0
	for i, a := range s.amps {
		sum += math.Pow(s.freqs[i]-c, k) * a
	}
	return sum / total
}

func spectralStdDev(s *series) float64 {
	return math.Sqrt(spectralMoment(s, 2))
}

func spectralSkewness(s *series) float64 {
	sd := spectralStdDev(s)
	if sd == 0 {
		return 0
	}
	return spectralMoment(s, 3) / math.Pow(sd, 3)
}

func spectralKurtosis(s *series) float64 {
	sd := spectralStdDev(s)
	if sd == 0 {
		return 0
	}
	return spectralMoment(s, 4)/math.Pow(sd, 4) - 3
}

func spectralCrest(s *series) float64 {
	m := stat.Mean(s.amps, nil)
	if m == 0 {
		return 0
	}
	return floats.Max(s.amps) / m
}

// irregularityK sums how far each bin departs from the mean of itself and
// its neighbours.
func irregularityK(s *series) float64 {
	a := s.amps
	sum := 0.0
	for i := 1; i < len(a)-1; i++ {
		sum += math.Abs(a[i] - (a[i-1]+a[i]+a[i+1])/3)
	}
	return sum
}

// irregularityJ is the squared bin-to-bin difference relative to the
// spectrum's energy.
func irregularityJ(s *series) float64 {
	a := s.amps
	energy := floats.Dot(a, a)
	if energy == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(a)-1; i++ {
		d := a[i] - a[i+1]
		sum += d * d
	}
	return sum / energy
}

// spectralFlatness is the geometric over the arithmetic mean of the
// non-zero bins.
func spectralFlatness(s *series) float64 {
	var nonZero []float64
	for _, a := range s.amps {
		if a > 0 {
			nonZero = append(nonZero, a)
		}
	}
	if len(nonZero) == 0 {
		return 0
	}
	return stat.GeometricMean(nonZero, nil) / stat.Mean(nonZero, nil)
}

func spectralSmoothness(s *series) float64 {
	db := make([]float64, len(s.amps))
	for i, a := range s.amps {
		if a > 0 {
			db[i] = math.Max(20*math.Log10(a), dbFloor)
		} else {
			db[i] = dbFloor
		}
	}
	sum := 0.0
	for i := 1; i < len(db)-1; i++ {
		sum += math.Abs(db[i] - (db[i-1]+db[i]+db[i+1])/3)
	}
	return sum
}
