package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func pearson(a, b *series) float64 { return stat.Correlation(a.values, b.values, nil) }

func spearman(a, b *series) float64 { return stat.Correlation(a.ranks, b.ranks, nil) }

func covariance(a, b *series) float64 { return stat.Covariance(a.values, b.values, nil) }

// kendall computes tau-b, which corrects for ties in either series.
// stat.Kendall is tau-a and counts tied pairs as concordant, so a flat
// axis would read as perfectly correlated.
func kendall(a, b *series) float64 {
	x, y := a.values, b.values
	var concordant, discordant, tiesX, tiesY float64
	for i := 0; i < len(x); i++ {
		for j := i + 1; j < len(x); j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return 0
	}
	return (concordant - discordant) / denom
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
