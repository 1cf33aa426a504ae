package impact

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kick-analytics/codec"
)

func quietSeries(n int) [][3]float64 {
	s := make([][3]float64, n)
	for i := range s {
		fi := float64(i)
		s[i] = [3]float64{
			0.02 * math.Abs(math.Sin(fi*0.7)),
			0.03 * math.Abs(math.Cos(fi*0.3)),
			1 + 0.01*math.Sin(fi*1.3),
		}
	}
	return s
}

func TestFindRegionsTooShort(t *testing.T) {
	assert.Empty(t, FindRegions(nil))
	assert.Empty(t, FindRegions([][3]float64{{1, 2, 3}}))
}

func TestFindRegionsFlat(t *testing.T) {
	s := make([][3]float64, 50)
	for i := range s {
		s[i] = [3]float64{0, 0, 1}
	}
	// Only interior samples are weighted: the end samples keep their value
	// while everything between them drops to zero.
	assert.Equal(t, []Region{{Start: 0, End: 10}, {Start: 48, End: 49}}, FindRegions(s))
}

func TestEnhanceEdges(t *testing.T) {
	src := [][3]float64{{1, 0, 2}, {3, 0, 2}, {2, 0, 2}, {5, 0, 2}}
	dst := make([][3]float64, len(src))
	enhanceEdges(dst, src)
	// 3*(|3-1|+|3-2|) = 9 and 2*(|2-3|+|2-5|) = 8: the second weight uses the
	// unweighted 3, not the 9 written before it.
	assert.Equal(t, [][3]float64{{1, 0, 2}, {9, 0, 0}, {8, 0, 0}, {5, 0, 2}}, dst)
	assert.Equal(t, [3]float64{3, 0, 2}, src[1], "source untouched")
}

func TestFindRegionsSingleImpact(t *testing.T) {
	s := quietSeries(300)
	for i := 100; i <= 105; i++ {
		s[i] = [3]float64{3, 4.8, 6}
	}
	orig := append([][3]float64(nil), s...)

	regions := FindRegions(s)
	require.Len(t, regions, 1)
	r := regions[0]
	assert.LessOrEqual(t, r.Start, 100)
	assert.GreaterOrEqual(t, r.End, 105)
	assert.Less(t, r.End, len(s))
	assert.Equal(t, orig, s, "input must not be modified")
}

func TestFindRegionsInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(400)
		s := make([][3]float64, n)
		for i := range s {
			for j := 0; j < 3; j++ {
				s[i][j] = rng.Float64()
				if rng.Intn(40) == 0 {
					s[i][j] *= 20
				}
			}
		}
		regions := FindRegions(s)
		for i, r := range regions {
			assert.GreaterOrEqual(t, r.Start, 0)
			assert.LessOrEqual(t, r.Start, r.End)
			assert.Less(t, r.End, n)
			if i > 0 {
				assert.Less(t, regions[i-1].End, r.Start, "regions overlap")
			}
		}
	}
}

func TestFindRegionsDeterministic(t *testing.T) {
	s := quietSeries(200)
	s[80] = [3]float64{9, 9, 9}
	assert.Equal(t, FindRegions(s), FindRegions(s))
}

func TestThreshold1D(t *testing.T) {
	assert.Equal(t, []Region{{Start: 1, End: 4}}, threshold1D([]float64{0, 1, 5, 5, 1, 0}, 2.5))
	assert.Equal(t, []Region{{Start: 1, End: 3}}, threshold1D([]float64{0, 0, 5, 5}, 2.5))
	assert.Equal(t, []Region{{Start: 0, End: 1}}, threshold1D([]float64{5, 0}, 2.5))
	assert.Empty(t, threshold1D([]float64{1, 1, 1}, 2.5))
}

func TestMerge(t *testing.T) {
	assert.Equal(t,
		[]Region{{0, 8}, {10, 12}},
		merge([]Region{{0, 5}, {3, 8}, {10, 12}}))
	assert.Equal(t,
		[]Region{{0, 20}},
		merge([]Region{{0, 20}, {5, 6}, {10, 12}}))
	assert.Equal(t,
		[]Region{{0, 4}, {5, 9}},
		merge([]Region{{5, 9}, {0, 4}}))
}

func TestRefine(t *testing.T) {
	f := make([]float64, 60)
	for i := 20; i <= 24; i++ {
		f[i] = 10
	}
	f[19], f[25] = 2, 2
	r := refine(f, Region{Start: 19, End: 25}, 0.5)
	assert.Equal(t, 18, r.Start)
	// the window-16 average stays above 0.5 until index 33, then width 6 is added
	assert.Equal(t, 39, r.End)
}

func TestMagnitudes(t *testing.T) {
	m := Magnitudes([]codec.Sample{{X: -2048, Y: 1024, Z: 0}})
	assert.Equal(t, [][3]float64{{1, 0.5, 0}}, m)
	assert.Equal(t, 3, Region{Start: 2, End: 4}.Len())
}
