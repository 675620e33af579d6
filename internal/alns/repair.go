package alns

import (
	"math"
	"math/rand"
)

// RepairFunc reinserts every unassigned node back into the design. Repair may
// mutate its argument (which is already a destroyed copy) and must never drop
// a node: on exhaustion a node opens a new single-node route.
type RepairFunc func(state *DesignSolution, rng *rand.Rand) *DesignSolution

// GreedyRepair shuffles the unassigned nodes and inserts each at the cheapest
// feasible position across every route, by the classic insertion delta
// d[pred][n] + d[n][succ] - d[pred][succ]. First position at the minimum wins.
func GreedyRepair(state *DesignSolution, rng *rand.Rand) *DesignSolution {
	rng.Shuffle(len(state.Unassigned), func(i, j int) {
		state.Unassigned[i], state.Unassigned[j] = state.Unassigned[j], state.Unassigned[i]
	})
	for len(state.Unassigned) > 0 {
		node := state.Unassigned[0]
		state.Unassigned = state.Unassigned[1:]
		bestInsert(node, state)
	}
	state.Update()
	return state
}

// bestInsert scans every route and insertion position for node. When no
// feasible slot exists anywhere the node starts a brand-new route.
func bestInsert(node int, d *DesignSolution) {
	bestCost := math.MaxFloat64
	var bestRoute *RouteSolution
	bestPos := -1
	for _, rs := range d.Routes {
		if !canInsert(d.net, rs) {
			continue
		}
		n := rs.Len()
		if n == 0 {
			continue
		}
		for pos := 0; pos <= n; pos++ {
			pred := rs.Route[(pos-1+n)%n]
			succ := rs.Route[pos%n]
			if pred == node || succ == node {
				continue // would collapse as a consecutive duplicate
			}
			c := d.net.Dist[pred][node] + d.net.Dist[node][succ] - d.net.Dist[pred][succ]
			if c < bestCost {
				bestCost = c
				bestRoute = rs
				bestPos = pos
			}
		}
	}
	if bestRoute == nil {
		d.Routes = append(d.Routes, NewRouteSolution(d.net, []int{node}))
		return
	}
	route := make([]int, 0, bestRoute.Len()+1)
	route = append(route, bestRoute.Route[:bestPos]...)
	route = append(route, node)
	route = append(route, bestRoute.Route[bestPos:]...)
	bestRoute.Update(route)
}

func canInsert(net *NetworkData, rs *RouteSolution) bool {
	return rs.Len()+1 <= net.MaxLength
}

// RandomRepair assigns each unassigned node to a uniformly random route with
// capacity, at a random non-collapsing position. No cost minimization; this
// operator preserves exploration diversity.
func RandomRepair(state *DesignSolution, rng *rand.Rand) *DesignSolution {
	for len(state.Unassigned) > 0 {
		node := state.Unassigned[0]
		state.Unassigned = state.Unassigned[1:]
		candidates := make([]*RouteSolution, 0, len(state.Routes))
		for _, rs := range state.Routes {
			if rs.Len() > 0 && canInsert(state.net, rs) {
				candidates = append(candidates, rs)
			}
		}
		if len(candidates) == 0 {
			state.Routes = append(state.Routes, NewRouteSolution(state.net, []int{node}))
			continue
		}
		rs := candidates[rng.Intn(len(candidates))]
		n := rs.Len()
		pos, placed := 0, false
		for _, try := range rng.Perm(n + 1) {
			pred := rs.Route[(try-1+n)%n]
			succ := rs.Route[try%n]
			if pred != node && succ != node {
				pos, placed = try, true
				break
			}
		}
		if !placed {
			state.Routes = append(state.Routes, NewRouteSolution(state.net, []int{node}))
			continue
		}
		route := make([]int, 0, n+1)
		route = append(route, rs.Route[:pos]...)
		route = append(route, node)
		route = append(route, rs.Route[pos:]...)
		rs.Update(route)
	}
	state.Update()
	return state
}

// DistanceGreedy repairs a single ordered port list by scanning its boundary
// pairs and inserting each removed port where the boundary delta is smallest.
// It is the route-level counterpart of GreedyRepair, used when an operator
// destroys and repairs one route in isolation.
type DistanceGreedy struct {
	Net *NetworkData
}

// Repair inserts each removed port into route at the cheapest boundary.
func (g DistanceGreedy) Repair(route []int, removed []int) []int {
	out := append([]int(nil), route...)
	for _, node := range removed {
		if len(out) == 0 {
			out = append(out, node)
			continue
		}
		bestPos, bestCost := -1, math.MaxFloat64
		n := len(out)
		for pos := 0; pos <= n; pos++ {
			pred := out[(pos-1+n)%n]
			succ := out[pos%n]
			if pred == node || succ == node {
				continue
			}
			c := g.Net.Dist[pred][node] + g.Net.Dist[node][succ] - g.Net.Dist[pred][succ]
			if c < bestCost {
				bestCost, bestPos = c, pos
			}
		}
		if bestPos < 0 {
			continue // node already bounds every slot; it is present in the route
		}
		out = append(out[:bestPos], append([]int{node}, out[bestPos:]...)...)
	}
	return out
}

// DistanceGreedyRepair is the state-level wrapper over DistanceGreedy: each
// unassigned node goes to the route with the cheapest boundary insertion.
func DistanceGreedyRepair(state *DesignSolution, rng *rand.Rand) *DesignSolution {
	g := DistanceGreedy{Net: state.net}
	for len(state.Unassigned) > 0 {
		node := state.Unassigned[0]
		state.Unassigned = state.Unassigned[1:]
		bestDelta := math.MaxFloat64
		var target *RouteSolution
		for _, rs := range state.Routes {
			if !canInsert(state.net, rs) {
				continue
			}
			if delta, ok := cheapestBoundary(state.net, rs.Route, node); ok && delta < bestDelta {
				bestDelta, target = delta, rs
			}
		}
		if target == nil {
			state.Routes = append(state.Routes, NewRouteSolution(state.net, []int{node}))
			continue
		}
		target.Update(g.Repair(target.Route, []int{node}))
	}
	state.Update()
	return state
}

func cheapestBoundary(net *NetworkData, route []int, node int) (float64, bool) {
	n := len(route)
	if n == 0 {
		return 0, false
	}
	best, found := math.MaxFloat64, false
	for pos := 0; pos <= n; pos++ {
		pred := route[(pos-1+n)%n]
		succ := route[pos%n]
		if pred == node || succ == node {
			continue
		}
		c := net.Dist[pred][node] + net.Dist[node][succ] - net.Dist[pred][succ]
		if c < best {
			best, found = c, true
		}
	}
	return best, found
}
