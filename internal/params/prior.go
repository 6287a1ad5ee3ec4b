package params

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is a univariate distribution over one parameter. The distuv
// distributions satisfy it directly.
type Prior interface {
	Rand() float64
	LogProb(x float64) float64
	Mean() float64
}

// GaussianPrior returns a normal prior carrying its own seeded source, so
// draws replay identically for a given seed.
func GaussianPrior(mu, sigma float64, seed uint64) Prior {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewPCG(seed, seed)}
}

// UniformPrior returns a flat prior over [lo, hi] carrying its own seeded
// source.
func UniformPrior(lo, hi float64, seed uint64) Prior {
	return distuv.Uniform{Min: lo, Max: hi, Src: rand.NewPCG(seed, seed)}
}
