package pmi

import "math"

// DefaultEpsilon matches the smoothing used by common topic-coherence toolkits.
const DefaultEpsilon = 1e-12

// Calculator handles PMI (Pointwise Mutual Information) calculations over document counts.
type Calculator struct {
	epsilon float64 // smoothing added to the joint probability
}

// NewCalculator creates a new PMI calculator with the given epsilon
func NewCalculator(epsilon float64) *Calculator {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &Calculator{epsilon: epsilon}
}

// PMI calculates the pointwise mutual information between two tokens
//
// PMI(a,b) = log((P(a,b) + ε) / (P(a) * P(b)))
//
// Where:
//   - P(a,b) = N_ab / N, documents containing both a and b
//   - P(a), P(b) = N_a / N, N_b / N
//   - ε = smoothing constant (default 1e-12)
func (c *Calculator) PMI(nAB, nA, nB, N int64) float64 {
	if N == 0 || nA == 0 || nB == 0 {
		return 0
	}
	n := float64(N)
	pAB := float64(nAB)/n + c.epsilon
	pA := float64(nA) / n
	pB := float64(nB) / n
	return math.Log(pAB / (pA * pB))
}

// NPMI calculates normalized PMI (range: -1 to 1)
// NPMI(a,b) = PMI(a,b) / -log(P(a,b) + ε)
//
// Tokens that never co-occur score -1; tokens that always co-occur score 1.
func (c *Calculator) NPMI(nAB, nA, nB, N int64) float64 {
	if N == 0 || nA == 0 || nB == 0 {
		return 0
	}
	if nAB == 0 {
		return -1
	}
	pAB := float64(nAB)/float64(N) + c.epsilon
	denom := -math.Log(pAB)
	if denom <= 0 {
		return 1
	}
	v := c.PMI(nAB, nA, nB, N) / denom
	return clamp(v, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
