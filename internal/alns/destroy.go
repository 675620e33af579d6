package alns

import (
	"math/rand"
	"sort"
)

// DestroyFunc removes a controlled amount of structure from a design,
// returning a new destroyed copy. The caller's solution is never mutated.
type DestroyFunc func(state *DesignSolution, rng *rand.Rand) *DesignSolution

// NewRandomRemoval builds the random-removal destroy operator: it samples
// floor((numPorts-1)*degree) distinct ports, queues each as unassigned and
// removes it from its owning route when one can spare it. Routes already at
// the minimum length are skipped rather than violated; empty routes are
// purged afterwards.
func NewRandomRemoval(degree float64) DestroyFunc {
	if degree <= 0 {
		degree = 0.05
	}
	return func(state *DesignSolution, rng *rand.Rand) *DesignSolution {
		out := state.Copy()
		// floor((numPorts-1)*degree) reaches zero on small instances, which
		// would leave every iteration a no-op; we depart from the plain floor
		// and always remove at least one port.
		n := int(float64(out.net.NumPorts-1) * degree)
		if n < 1 {
			n = 1
		}
		perm := rng.Perm(out.net.NumPorts)
		for _, node := range perm[:min(n, len(perm))] {
			out.Unassigned = append(out.Unassigned, node)
			if rs := out.FindRouteSolution(node); rs != nil {
				rs.RemoveNode(node)
			}
		}
		out.PurgeEmptyRoutes()
		return out
	}
}

// NewCostBasedRemoval lifts CostBasedDestroyRoute to a design-level operator:
// it picks one route at random whose length can spare the removals, strips
// its highest fixed-cost ports and queues them as unassigned. A design with
// no such route passes through unchanged.
func NewCostBasedRemoval(rate float64) DestroyFunc {
	if rate <= 0 || rate >= 1 {
		rate = 0.3
	}
	return func(state *DesignSolution, rng *rand.Rand) *DesignSolution {
		out := state.Copy()
		var eligible []int
		for i, rs := range out.Routes {
			n := int(float64(rs.Len()) * rate)
			if n > 0 && rs.Len()-n >= out.net.MinLength {
				eligible = append(eligible, i)
			}
		}
		if len(eligible) == 0 {
			return out
		}
		i := eligible[rng.Intn(len(eligible))]
		removed, updated := CostBasedDestroyRoute(out.net, out.Routes[i], rate)
		out.Routes[i] = updated
		out.Unassigned = append(out.Unassigned, removed...)
		out.PurgeEmptyRoutes()
		return out
	}
}

// CostBasedDestroyRoute removes the floor(len*rate) highest fixed-cost ports
// from a single route, returning the removed ports and the updated route.
func CostBasedDestroyRoute(net *NetworkData, rs *RouteSolution, rate float64) ([]int, *RouteSolution) {
	out := rs.Copy()
	n := int(float64(out.Len()) * rate)
	if n <= 0 {
		return nil, out
	}
	ranked := append([]int(nil), out.Route...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return net.FixedCost[ranked[i]] > net.FixedCost[ranked[j]]
	})
	removed := ranked[:n]
	for _, node := range removed {
		out.RemoveNode(node)
	}
	return append([]int(nil), removed...), out
}
