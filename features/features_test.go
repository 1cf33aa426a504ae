package features

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"kick-analytics/codec"
	"kick-analytics/impact"
)

const eps = 1e-9

func TestSetOrder(t *testing.T) {
	s := NewSet()
	s.Add("b", 1)
	s.Add("a", 2)
	s.Add("b", 3)

	assert.Equal(t, []string{"b", "a"}, s.Names())
	assert.Equal(t, []float64{3, 2}, s.Values())
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	_, ok = s.Get("c")
	assert.False(t, ok)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"b":3,"a":2}`, string(b))
}

func TestNamesMatchTable(t *testing.T) {
	names := Names()
	require.Len(t, names, 26)
	assert.Equal(t, "mean", names[0])
	assert.Equal(t, "zero_crossing_rate", names[25])
	assert.Len(t, DefaultCoefficients(), 27)
}

func TestExtractKnownValues(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	z := []float64{4, 3, 2, 1}

	set, err := Extract(x, y, z)
	require.NoError(t, err)
	assert.Equal(t, Names(), set.Names())

	get := func(name string) float64 {
		v, ok := set.Get(name)
		require.True(t, ok, name)
		return v
	}
	assert.InDelta(t, 10.0/3, get("mean"), eps)
	assert.InDelta(t, 16.0/3, get("max"), eps)
	assert.InDelta(t, 4.0/3, get("min"), eps)
	assert.InDelta(t, -1.0/3, get("pearson_correlation"), eps)
	assert.InDelta(t, -1.0/3, get("spearman_correlation"), eps)
	assert.InDelta(t, -1.0/3, get("kendall_correlation"), eps)
	assert.InDelta(t, 4.0/3, get("mean_abs_first_difference"), eps)
	assert.InDelta(t, 0, get("mean_abs_second_difference"), eps)
	assert.InDelta(t, 0, get("zero_crossing_rate"), eps)
	for _, v := range set.Values() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
}

func TestExtractConstantWindowIsFinite(t *testing.T) {
	c := []float64{1, 1, 1}
	set, err := Extract(c, c, c)
	require.NoError(t, err)
	for i, v := range set.Values() {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), set.Names()[i])
	}
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract(nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyWindow)
	_, err = Extract([]float64{1, 2}, []float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestExtractRegion(t *testing.T) {
	samples := make([]codec.Sample, 10)
	for i := range samples {
		samples[i] = codec.Sample{X: int16(i * 100), Y: 2048, Z: -2048}
	}
	set, err := ExtractRegion(samples, impact.Region{Start: 2, End: 5})
	require.NoError(t, err)
	mean, _ := set.Get("mean")
	// x averages 350 counts over the window, y and z cancel.
	assert.InDelta(t, 350.0/codec.CountsPerG/3, mean, eps)

	_, err = ExtractRegion(samples, impact.Region{Start: 5, End: 10})
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestRank(t *testing.T) {
	assert.Equal(t, []float64{3.5, 1, 3.5, 2}, rank([]float64{3, 1, 3, 2}))
}

func TestKendallTies(t *testing.T) {
	a := &series{values: []float64{1, 2, 2, 3}}
	b := &series{values: []float64{1, 2, 3, 4}}
	// 5 concordant pairs, one tie in a only.
	assert.InDelta(t, 5/math.Sqrt(5*6), kendall(a, b), eps)
	// stat.Kendall is tau-a and scores the tied pair as concordant.
	assert.InDelta(t, 1.0, stat.Kendall(a.values, b.values, nil), eps)

	flat := &series{values: []float64{2, 2, 2, 2}}
	assert.Zero(t, kendall(flat, b))
	assert.InDelta(t, 1.0, stat.Kendall(flat.values, b.values, nil), eps)
}

func TestSpectrum(t *testing.T) {
	amps, freqs := spectrum([]float64{1, 1, 1, 1})
	assert.InDeltaSlice(t, []float64{4, 0, 0, 0}, amps, eps)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, freqs, eps)

	// x[n] = sin(pi n / 2) puts -2i in bin 1 and 2i in bin 3.
	amps, freqs = spectrum([]float64{0, 1, 0, -1})
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, amps, eps)
	assert.InDeltaSlice(t, []float64{0, 2, 0, 2}, freqs, eps)
}

func TestRMSSD(t *testing.T) {
	s := &series{values: []float64{0, 1, 0, 1, 0, 0, 0, 1, 0}}
	assert.InDelta(t, 2*codec.SamplePeriod, rmssd(s), eps)
	assert.Equal(t, 0.0, rmssd(&series{values: []float64{0, 1, 0}}))
}

func TestCorrelatorEvaluate(t *testing.T) {
	c, err := NewCorrelator([]float64{1, 2, 3})
	require.NoError(t, err)

	s := NewSet()
	s.Add("a", 1)
	s.Add("b", 2)
	force, err := c.Evaluate(s)
	require.NoError(t, err)
	assert.Equal(t, 9.0, force)

	s.Add("c", 4)
	_, err = c.Evaluate(s)
	assert.ErrorIs(t, err, ErrFeatureLengthMismatch)

	_, err = NewCorrelator(nil)
	assert.ErrorIs(t, err, ErrFeatureLengthMismatch)
}

func TestCorrelatorDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	x, y, z := make([]float64, 128), make([]float64, 128), make([]float64, 128)
	for i := range x {
		x[i], y[i], z[i] = rng.NormFloat64(), rng.NormFloat64()*2, 1+rng.NormFloat64()
	}
	c := DefaultCorrelator()

	first, err := Extract(x, y, z)
	require.NoError(t, err)
	want, err := c.Evaluate(first)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		set, err := Extract(x, y, z)
		require.NoError(t, err)
		got, err := c.Evaluate(set)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(want), math.Float64bits(got))
	}
}

func TestParseTable(t *testing.T) {
	_, err := ParseTable([]byte("intercept: 1\nweights:\n  - {feature: mean, weight: 1}\n"))
	assert.ErrorIs(t, err, ErrFeatureLengthMismatch)

	_, err = ParseTable([]byte("intercept: [oops"))
	assert.Error(t, err)

	c, err := ParseTable(coefficientsYAML)
	require.NoError(t, err)
	assert.Equal(t, DefaultCoefficients(), c)
}
