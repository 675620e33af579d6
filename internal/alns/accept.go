package alns

import (
	"math"
	"math/rand"
)

// better reports whether objective a beats b under the given direction. All
// comparisons in the engine go through here; Objective() itself never flips
// signs.
func better(a, b float64, dir Direction) bool {
	if dir == Minimize {
		return a < b
	}
	return a > b
}

// SimulatedAnnealing is the accept/reject criterion between a candidate and
// the best-known objective. Improvements are always accepted; a worse
// candidate is accepted with probability exp(gain/T). The temperature cools
// on every call, improvements included.
type SimulatedAnnealing struct {
	Temperature float64
	Cooling     float64
	rng         *rand.Rand
}

// NewSimulatedAnnealing builds the criterion; non-positive arguments fall
// back to T=1.0 and cooling 0.995.
func NewSimulatedAnnealing(temp, cooling float64, rng *rand.Rand) *SimulatedAnnealing {
	if temp <= 0 {
		temp = 1.0
	}
	if cooling <= 0 || cooling >= 1 {
		cooling = 0.995
	}
	return &SimulatedAnnealing{Temperature: temp, Cooling: cooling, rng: rng}
}

// Accept decides whether newObj replaces bestObj under dir.
func (sa *SimulatedAnnealing) Accept(newObj, bestObj float64, dir Direction) bool {
	gain := newObj - bestObj
	if dir == Minimize {
		gain = -gain
	}
	accepted := gain > 0 || sa.rng.Float64() < math.Exp(gain/(sa.Temperature+1e-9))
	sa.Temperature *= sa.Cooling
	return accepted
}
