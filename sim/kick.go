package sim

import (
	"math"
	"math/rand"

	"kick-analytics/codec"
)

const (
	impactLength = 14   // samples
	impactDecay  = 0.35 // per sample
	restNoise    = 6    // counts
)

// Kick synthesizes n samples of a ball at rest that is kicked a quarter of
// the way in. peak is the strongest axis acceleration in g.
func Kick(n int, peak float64, rng *rand.Rand) []codec.Sample {
	samples := make([]codec.Sample, n)
	at := n / 4
	phase := [3]float64{2.1, 4.2, 0}
	gain := [3]float64{0.8, 0.55, 1}
	for i := range samples {
		x := noise(rng)
		y := noise(rng)
		z := codec.CountsPerG + noise(rng)
		if k := i - at; k >= 0 && k < impactLength {
			amp := peak * codec.CountsPerG * math.Exp(-impactDecay*float64(k))
			x += amp * gain[0] * math.Cos(float64(k)*1.3+phase[0])
			y += amp * gain[1] * math.Cos(float64(k)*1.3+phase[1])
			z += amp * gain[2] * math.Cos(float64(k)*1.3+phase[2])
		}
		samples[i] = codec.Sample{
			Time: float64(i) * codec.SamplePeriod,
			X:    clamp(x),
			Y:    clamp(y),
			Z:    clamp(z),
		}
	}
	return samples
}

func noise(rng *rand.Rand) float64 {
	return float64(rng.Intn(2*restNoise+1) - restNoise)
}

func clamp(v float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
}
