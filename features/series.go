package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

// series is one axis of an impact window together with the derived data
// several features share.
type series struct {
	values []float64
	// amps and freqs are |Re| and |Im| of each DFT bin.
	amps  []float64
	freqs []float64
	ranks []float64
}

func newSeries(values []float64) *series {
	s := &series{values: values}
	s.amps, s.freqs = spectrum(values)
	s.ranks = rank(values)
	return s
}

// spectrum runs a full-length complex DFT over real input.
func spectrum(values []float64) (amps, freqs []float64) {
	n := len(values)
	seq := make([]complex128, n)
	for i, v := range values {
		seq[i] = complex(v, 0)
	}
	coeff := fourier.NewCmplxFFT(n).Coefficients(nil, seq)
	amps = make([]float64, n)
	freqs = make([]float64, n)
	for k, c := range coeff {
		amps[k] = math.Abs(real(c))
		freqs[k] = math.Abs(imag(c))
	}
	return amps, freqs
}

// rank returns 1-based ranks, ties getting the average of their positions.
func rank(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = r
		}
		i = j + 1
	}
	return ranks
}

// finite maps NaN and infinities to zero so undefined statistics of short
// or constant windows still yield a usable vector.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
