package alns

import (
	"fmt"
	"math"
	"strings"
)

// DesignSolution is the full multi-route network plan: the route set, its
// cover/transit bookkeeping, the OD candidate-path table and the aggregate
// cost/utility/demand economics.
type DesignSolution struct {
	net     *NetworkData
	ObjType Objective

	Routes     []*RouteSolution
	hashes     map[string]int
	Unassigned []int

	CoverNodes   map[int]int // port -> number of routes calling it
	TransitNodes map[int]int // port -> extra visits beyond the first route

	// pairPaths indexes candidates by ordered port pair; these are the
	// building blocks for transfer merges. Paths is the OD-indexed view over
	// the same path objects.
	pairPaths map[[2]int][]*CandidatePath
	pathKeys  map[[2]int]map[string]struct{}
	Paths     map[int][]*CandidatePath

	TotalCost       float64
	TotalCoverCost  float64
	TotalTravelCost float64
	TotalUtility    map[int]float64
	TotalCaptured   map[int]float64
}

// NewDesignSolution creates an empty design for net. An empty objective falls
// back to the instance objective; anything else invalid is rejected.
func NewDesignSolution(net *NetworkData, obj Objective) (*DesignSolution, error) {
	if obj == "" {
		obj = net.Objective
	}
	if !obj.valid() {
		return nil, fmt.Errorf("design: invalid objective %q", obj)
	}
	d := &DesignSolution{net: net, ObjType: obj}
	d.Initialize()
	return d, nil
}

// Direction returns the optimization sense of this design's objective.
func (d *DesignSolution) Direction() Direction { return d.ObjType.Direction() }

// Initialize resets the design to empty.
func (d *DesignSolution) Initialize() {
	d.Routes = nil
	d.hashes = map[string]int{}
	d.Unassigned = nil
	d.CoverNodes = map[int]int{}
	d.TransitNodes = map[int]int{}
	d.pairPaths = map[[2]int][]*CandidatePath{}
	d.pathKeys = map[[2]int]map[string]struct{}{}
	d.Paths = map[int][]*CandidatePath{}
	d.TotalCost, d.TotalCoverCost, d.TotalTravelCost = 0, 0, 0
	d.TotalUtility = map[int]float64{}
	d.TotalCaptured = map[int]float64{}
}

// AddRouteSolution registers a route: a no-op when the route is empty or an
// identical sequence is already present. Otherwise it updates cover/transit
// counts, extends the candidate-path table and recomputes the aggregates.
func (d *DesignSolution) AddRouteSolution(rs *RouteSolution) {
	if rs == nil || rs.Len() == 0 {
		return
	}
	h := routeHash(rs.Route)
	if _, dup := d.hashes[h]; dup {
		return
	}
	d.hashes[h] = len(d.Routes)
	d.Routes = append(d.Routes, rs)
	for _, p := range distinctPorts(rs.Route) {
		d.CoverNodes[p]++
		if d.CoverNodes[p] >= 2 {
			d.TransitNodes[p] = d.CoverNodes[p] - 1
		}
	}
	d.updatePathList(rs)
	d.updateDesignMetrics()
}

// updatePathList extends the candidate set for a newly added route: direct
// sub-paths between every ordered pair of its ports, then transfer merges
// through transit nodes the route calls at. This is a greedy incremental
// enumeration, not an exhaustive search; the candidate set only grows as
// routes are added.
func (d *DesignSolution) updatePathList(rs *RouteSolution) {
	ports := distinctPorts(rs.Route)
	for _, o := range ports {
		for _, dst := range ports {
			if o == dst {
				continue
			}
			sub := rs.Subpath(o, dst)
			if len(sub) < 2 {
				continue
			}
			d.addPath(newDirectPath(d.net, sub, rs.TransportTime(o, dst)))
		}
	}
	for _, od := range d.net.ODPairs {
		o, dst := od.Origin, od.Destination
		if o == dst {
			continue
		}
		for _, v := range ports {
			if v == o || v == dst || d.TransitNodes[v] == 0 {
				continue
			}
			heads := d.pairPaths[[2]int{o, v}]
			tails := d.pairPaths[[2]int{v, dst}]
			for _, pa := range heads {
				for _, pb := range tails {
					if pa.Transits+pb.Transits+1 > d.net.MaxTransits {
						continue
					}
					d.addPath(pa.Merge(*pb, d.net))
				}
			}
		}
	}
}

// addPath stores the path unless an identical arc sequence is already known
// for its port pair. Registered demand pairs also get the OD-indexed view.
func (d *DesignSolution) addPath(p CandidatePath) {
	pair := [2]int{p.OD.Origin, p.OD.Destination}
	if d.pathKeys[pair] == nil {
		d.pathKeys[pair] = map[string]struct{}{}
	}
	k := p.key()
	if _, seen := d.pathKeys[pair][k]; seen {
		return
	}
	d.pathKeys[pair][k] = struct{}{}
	stored := &p
	d.pairPaths[pair] = append(d.pairPaths[pair], stored)
	if odk, ok := d.net.ODIndex(p.OD.Origin, p.OD.Destination); ok {
		d.Paths[odk] = append(d.Paths[odk], stored)
	}
}

// updateDesignMetrics resums costs over the route set and recomputes the
// demand-capture economics. Costs are always a full resum, never incremental,
// so they cannot drift. Choice probabilities use a logit model with a unit
// outside option: P(path) = exp(u) / (1 + Σ exp(u')).
func (d *DesignSolution) updateDesignMetrics() {
	d.TotalCost, d.TotalCoverCost, d.TotalTravelCost = 0, 0, 0
	for _, rs := range d.Routes {
		d.TotalCost += rs.Cost
		d.TotalCoverCost += rs.CoverCost
		d.TotalTravelCost += rs.TravelCost
	}
	d.TotalUtility = map[int]float64{}
	d.TotalCaptured = map[int]float64{}
	for k := range d.net.ODPairs {
		paths := d.Paths[k]
		if len(paths) == 0 {
			continue
		}
		maxU := math.Inf(-1)
		denom := 1.0
		for _, p := range paths {
			if p.Utility > maxU {
				maxU = p.Utility
			}
			denom += math.Exp(p.Utility)
		}
		captured := 0.0
		for _, p := range paths {
			p.ChoiceProb = math.Exp(p.Utility) / denom
			p.CapturedDemand = d.net.Demand[k] * p.ChoiceProb
			captured += p.CapturedDemand
		}
		d.TotalUtility[k] = maxU
		d.TotalCaptured[k] = captured
	}
}

// FindRouteSolution returns the first route calling at node whose length
// exceeds the minimum, so removals never push a route below the floor.
// Returns nil when no route qualifies.
func (d *DesignSolution) FindRouteSolution(node int) *RouteSolution {
	for _, rs := range d.Routes {
		if rs.Len() <= d.net.MinLength {
			continue
		}
		for _, p := range rs.Route {
			if p == node {
				return rs
			}
		}
	}
	return nil
}

// Objective returns the aggregate tracked by ObjType. No sign flip is applied
// here; callers compare through better() with the design's Direction.
func (d *DesignSolution) Objective() float64 {
	switch d.ObjType {
	case ObjectiveUtility:
		total := 0.0
		for _, u := range d.TotalUtility {
			total += u
		}
		return total
	case ObjectiveDemand:
		total := 0.0
		for _, c := range d.TotalCaptured {
			total += c
		}
		return total
	default:
		return d.TotalCost
	}
}

// Update rebuilds all bookkeeping from the current route set: empty routes
// are purged, duplicates collapse, and the candidate-path table is
// re-enumerated route by route. Unassigned nodes survive the rebuild.
func (d *DesignSolution) Update() {
	routes := d.Routes
	unassigned := d.Unassigned
	d.Initialize()
	d.Unassigned = unassigned
	for _, rs := range routes {
		d.AddRouteSolution(rs)
	}
	d.updateDesignMetrics()
}

// PurgeEmptyRoutes drops zero-length routes and rebuilds bookkeeping.
func (d *DesignSolution) PurgeEmptyRoutes() {
	kept := d.Routes[:0]
	for _, rs := range d.Routes {
		if rs.Len() > 0 {
			kept = append(kept, rs)
		}
	}
	d.Routes = kept
	d.Update()
}

// Copy returns a deep, independent copy: fresh route solutions and a freshly
// rebuilt candidate-path table, so destroy/repair never alias the incumbent.
func (d *DesignSolution) Copy() *DesignSolution {
	out := &DesignSolution{net: d.net, ObjType: d.ObjType}
	out.Initialize()
	for _, rs := range d.Routes {
		out.AddRouteSolution(rs.Copy())
	}
	out.Unassigned = append([]int(nil), d.Unassigned...)
	out.updateDesignMetrics()
	return out
}

func routeHash(route []int) string {
	var b strings.Builder
	for i, p := range route {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", p)
	}
	return b.String()
}

func distinctPorts(route []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(route))
	for _, p := range route {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
