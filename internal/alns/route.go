package alns

// absentTime is the sentinel transport time for a port the route never calls.
const absentTime = 1e8

// PortCall is one scheduled call in a route cycle.
type PortCall struct {
	Port    int     `json:"port"`
	Call    int     `json:"call"` // occurrence index of this port within the route
	Arrival float64 `json:"arrival"`
}

// RouteSolution is one service route: an ordered cyclic port-call sequence
// plus its derived schedule, cost decomposition and per-OD utility. The
// closing edge from the last port back to the first is implicit, never stored.
type RouteSolution struct {
	net   *NetworkData
	Route []int

	RoundTripTime float64
	PortCalls     []PortCall
	Utility       map[int]float64 // od index -> utility, for ODs served by this route
	Cost          float64
	CoverCost     float64
	TravelCost    float64
	// TravelDistance multiplies the same (time-unit) matrix by DefaultSpeed,
	// matching the established convention even though the result is not a
	// true distance.
	TravelDistance float64

	ttMemo map[[2]int]float64
	spMemo map[[2]int][]int
}

// NewRouteSolution builds a route solution over net. A nil or empty route
// yields zero metrics, not an error.
func NewRouteSolution(net *NetworkData, route []int) *RouteSolution {
	rs := &RouteSolution{net: net}
	rs.Update(route)
	return rs
}

func (rs *RouteSolution) Len() int { return len(rs.Route) }

// RemoveNode removes the first occurrence of node and recomputes everything.
func (rs *RouteSolution) RemoveNode(node int) {
	for i, p := range rs.Route {
		if p == node {
			rs.Update(append(rs.Route[:i], rs.Route[i+1:]...))
			return
		}
	}
}

// Update replaces the route, collapsing consecutive duplicates (including the
// cyclic wrap pair), and fully recomputes all derived fields. Routes are short
// so a full recompute beats incremental patching for correctness.
func (rs *RouteSolution) Update(route []int) {
	rs.Route = collapseCycle(route)
	rs.ttMemo = map[[2]int]float64{}
	rs.spMemo = map[[2]int][]int{}
	rs.RoundTripTime = 0
	rs.PortCalls = nil
	rs.Utility = map[int]float64{}
	rs.Cost, rs.CoverCost, rs.TravelCost, rs.TravelDistance = 0, 0, 0, 0
	n := len(rs.Route)
	if n == 0 {
		return
	}

	calls := make([]PortCall, n)
	occ := map[int]int{}
	t := 0.0
	for i, p := range rs.Route {
		if i > 0 {
			t += rs.net.Dist[rs.Route[i-1]][p]
		}
		calls[i] = PortCall{Port: p, Call: occ[p], Arrival: t}
		occ[p]++
		rs.CoverCost += rs.net.FixedCost[p]
	}
	rs.RoundTripTime = t + rs.net.Dist[rs.Route[n-1]][rs.Route[0]]
	rs.PortCalls = calls

	for i := 0; i < n; i++ {
		edge := rs.net.Dist[rs.Route[i]][rs.Route[(i+1)%n]]
		rs.TravelCost += edge * rs.net.UnitTravelCost
		rs.TravelDistance += edge * rs.net.DefaultSpeed
	}
	rs.Cost = rs.CoverCost + rs.TravelCost

	for k, od := range rs.net.ODPairs {
		if occ[od.Origin] == 0 || occ[od.Destination] == 0 || od.Origin == od.Destination {
			continue
		}
		rs.Utility[k] = rs.net.Utility(k, rs.TransportTime(od.Origin, od.Destination))
	}
}

// TransportTime returns the minimum transport time from any call at o to any
// call at d, wrapping through the cycle when d precedes o. Returns a large
// sentinel when either port is absent. Memoized per route instance; the memo
// resets on every Update.
func (rs *RouteSolution) TransportTime(o, d int) float64 {
	key := [2]int{o, d}
	if v, ok := rs.ttMemo[key]; ok {
		return v
	}
	best := absentTime
	for _, co := range rs.PortCalls {
		if co.Port != o {
			continue
		}
		for _, cd := range rs.PortCalls {
			if cd.Port != d {
				continue
			}
			var t float64
			if cd.Arrival >= co.Arrival {
				t = cd.Arrival - co.Arrival
			} else {
				t = rs.RoundTripTime - (co.Arrival - cd.Arrival)
			}
			if t < best {
				best = t
			}
		}
	}
	rs.ttMemo[key] = best
	return best
}

// Subpath returns the contiguous port sub-sequence from an occurrence of o to
// an occurrence of d with minimum transport time, wrapping around the cycle
// when needed. Ties break toward fewer calls. Nil when either port is absent.
func (rs *RouteSolution) Subpath(o, d int) []int {
	key := [2]int{o, d}
	if v, ok := rs.spMemo[key]; ok {
		return v
	}
	n := len(rs.Route)
	bestTime := absentTime
	bestLen := -1
	var best []int
	for i := 0; i < n; i++ {
		if rs.Route[i] != o {
			continue
		}
		for j := 0; j < n; j++ {
			if rs.Route[j] != d {
				continue
			}
			var t float64
			if rs.PortCalls[j].Arrival >= rs.PortCalls[i].Arrival {
				t = rs.PortCalls[j].Arrival - rs.PortCalls[i].Arrival
			} else {
				t = rs.RoundTripTime - (rs.PortCalls[i].Arrival - rs.PortCalls[j].Arrival)
			}
			hops := ((j-i)%n + n) % n
			if t < bestTime-1e-12 || (t < bestTime+1e-12 && (bestLen < 0 || hops+1 < bestLen)) {
				sub := make([]int, 0, hops+1)
				for s := 0; s <= hops; s++ {
					sub = append(sub, rs.Route[(i+s)%n])
				}
				bestTime, bestLen, best = t, hops+1, sub
			}
		}
	}
	rs.spMemo[key] = best
	return best
}

// Copy returns an independent deep copy sharing the NetworkData reference.
func (rs *RouteSolution) Copy() *RouteSolution {
	return NewRouteSolution(rs.net, append([]int(nil), rs.Route...))
}

// collapseCycle drops repeated consecutive entries, treating the sequence as
// a cycle so a leading/trailing duplicate pair also collapses.
func collapseCycle(route []int) []int {
	out := make([]int, 0, len(route))
	for _, p := range route {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
