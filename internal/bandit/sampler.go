package bandit

import (
	"math"
	"math/rand"
	"sync"
)

// BetaSampler returns a Sampler drawing true Beta variates. Beta(a,b)
// is generated as Ga/(Ga+Gb) from two Gamma draws (Marsaglia-Tsang for
// shape >= 1, boosted below 1).
func BetaSampler() Sampler {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(rand.Int63()))
	return func(alpha, beta float64) float64 {
		mu.Lock()
		defer mu.Unlock()
		ga := sampleGamma(rng, alpha)
		gb := sampleGamma(rng, beta)
		if ga+gb == 0 {
			return 0.5
		}
		return ga / (ga + gb)
	}
}

func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape <= 0 {
		return 0
	}
	if shape < 1 {
		// Boost: Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)
	for {
		x := rng.NormFloat64()
		v := 1.0 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
