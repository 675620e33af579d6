package alns

import (
	"math"
	"testing"
)

func TestEmptyDesignZeroObjective(t *testing.T) {
	net := unitNetwork(t, 5)
	for _, obj := range []Objective{ObjectiveCost, ObjectiveUtility, ObjectiveDemand} {
		d, err := NewDesignSolution(net, obj)
		if err != nil {
			t.Fatalf("NewDesignSolution(%s): %v", obj, err)
		}
		if d.TotalCost != 0 || d.Objective() != 0 {
			t.Fatalf("%s: empty design should have zero aggregates, got cost=%v obj=%v", obj, d.TotalCost, d.Objective())
		}
	}
}

func TestInvalidObjectiveRejected(t *testing.T) {
	net := unitNetwork(t, 5)
	if _, err := NewDesignSolution(net, Objective("Profit")); err == nil {
		t.Fatal("expected error for invalid objective")
	}
}

func TestCostAdditivity(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveCost)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	d.AddRouteSolution(NewRouteSolution(net, []int{2, 3, 4}))
	sum := 0.0
	for _, rs := range d.Routes {
		sum += rs.Cost
	}
	if math.Abs(d.TotalCost-sum) > 1e-9 {
		t.Fatalf("cost additivity: total %v, sum %v", d.TotalCost, sum)
	}
}

func TestAddRouteSolutionDedup(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveCost)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	if len(d.Routes) != 1 {
		t.Fatalf("dedup: got %d routes want 1", len(d.Routes))
	}
	d.AddRouteSolution(NewRouteSolution(net, nil))
	if len(d.Routes) != 1 {
		t.Fatalf("empty route should be a no-op, got %d routes", len(d.Routes))
	}
}

func TestFindRouteSolutionMinLengthFloor(t *testing.T) {
	net := unitNetwork(t, 5) // MinLength 2
	d, _ := NewDesignSolution(net, ObjectiveCost)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1}))    // at the floor
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2})) // above it
	rs := d.FindRouteSolution(0)
	if rs == nil || rs.Len() <= net.MinLength {
		t.Fatalf("expected the longer route, got %v", rs)
	}
	if got := d.FindRouteSolution(4); got != nil {
		t.Fatalf("port 4 is unrouted, got %v", got.Route)
	}
}

func TestCoverAndTransitCounts(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveCost)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	d.AddRouteSolution(NewRouteSolution(net, []int{1, 3, 4}))
	if d.CoverNodes[1] != 2 {
		t.Fatalf("cover count for shared port: got %d want 2", d.CoverNodes[1])
	}
	if d.TransitNodes[1] != 1 {
		t.Fatalf("transit count for shared port: got %d want 1", d.TransitNodes[1])
	}
	if _, ok := d.TransitNodes[0]; ok {
		t.Fatalf("port 0 is on one route only, should not be a transit node")
	}
}

func TestDirectCandidatePaths(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveUtility)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	k, _ := net.ODIndex(0, 2)
	paths := d.Paths[k]
	if len(paths) == 0 {
		t.Fatal("expected a direct candidate path for OD (0,2)")
	}
	p := paths[0]
	if !p.Direct || p.Transits != 0 {
		t.Fatalf("expected direct zero-transit path, got %+v", p)
	}
	// utility = 5 - t, travel time 0->2 is 2h
	if math.Abs(p.Utility-3) > 1e-9 {
		t.Fatalf("direct path utility: got %v want 3", p.Utility)
	}
}

func TestTransferPathThroughTransitNode(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveDemand)
	// OD (1,3): route A serves 1, route B serves 3, port 2 is shared.
	d.AddRouteSolution(NewRouteSolution(net, []int{1, 2, 0}))
	d.AddRouteSolution(NewRouteSolution(net, []int{2, 3, 4}))
	k, _ := net.ODIndex(1, 3)
	var transfer *CandidatePath
	for _, p := range d.Paths[k] {
		if !p.Direct {
			transfer = p
			break
		}
	}
	if transfer == nil {
		t.Fatalf("expected a transfer path for OD (1,3), got %d paths", len(d.Paths[k]))
	}
	if transfer.Transits != 1 {
		t.Fatalf("transfer count: got %d want 1", transfer.Transits)
	}
}

func TestTransferCapRespected(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveDemand)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1}))
	d.AddRouteSolution(NewRouteSolution(net, []int{1, 2}))
	d.AddRouteSolution(NewRouteSolution(net, []int{2, 3}))
	d.AddRouteSolution(NewRouteSolution(net, []int{3, 4}))
	for k, paths := range d.Paths {
		for _, p := range paths {
			if p.Transits > net.MaxTransits {
				t.Fatalf("od %d: path exceeds transfer cap: %d > %d", k, p.Transits, net.MaxTransits)
			}
		}
	}
}

func TestMaxUtilityNotSum(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveUtility)
	k, _ := net.ODIndex(0, 2)
	d.addPath(CandidatePath{OD: ODPair{0, 2}, Direct: true, Arcs: []Arc{{0, 2}}, Utility: 2.0})
	d.addPath(CandidatePath{OD: ODPair{0, 2}, Direct: true, Arcs: []Arc{{0, 1}, {1, 2}}, Utility: 3.0})
	d.updateDesignMetrics()
	if math.Abs(d.TotalUtility[k]-3.0) > 1e-9 {
		t.Fatalf("total utility should be the max, got %v", d.TotalUtility[k])
	}
}

func TestLogitCapturedDemand(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveDemand)
	k, _ := net.ODIndex(0, 2)
	d.addPath(CandidatePath{OD: ODPair{0, 2}, Direct: true, Arcs: []Arc{{0, 2}}, Utility: 1.0})
	d.updateDesignMetrics()
	wantProb := math.Exp(1) / (1 + math.Exp(1))
	p := d.Paths[k][0]
	if math.Abs(p.ChoiceProb-wantProb) > 1e-9 {
		t.Fatalf("choice probability: got %v want %v", p.ChoiceProb, wantProb)
	}
	if math.Abs(d.TotalCaptured[k]-net.Demand[k]*wantProb) > 1e-9 {
		t.Fatalf("captured demand: got %v want %v", d.TotalCaptured[k], net.Demand[k]*wantProb)
	}
}

func TestDesignCopyIsDeep(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveCost)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	cp := d.Copy()
	cp.Routes[0].RemoveNode(1)
	cp.Update()
	if d.Routes[0].Len() != 3 {
		t.Fatalf("incumbent mutated through copy: %v", d.Routes[0].Route)
	}
	if cp.TotalCost >= d.TotalCost {
		t.Fatalf("copy cost should differ after mutation: %v vs %v", cp.TotalCost, d.TotalCost)
	}
}

func TestPurgeEmptyRoutes(t *testing.T) {
	net := unitNetwork(t, 5)
	d, _ := NewDesignSolution(net, ObjectiveCost)
	d.AddRouteSolution(NewRouteSolution(net, []int{0, 1, 2}))
	d.AddRouteSolution(NewRouteSolution(net, []int{3, 4}))
	d.Routes[1].Update(nil)
	d.PurgeEmptyRoutes()
	if len(d.Routes) != 1 {
		t.Fatalf("purge: got %d routes want 1", len(d.Routes))
	}
	sum := 0.0
	for _, rs := range d.Routes {
		sum += rs.Cost
	}
	if math.Abs(d.TotalCost-sum) > 1e-9 {
		t.Fatalf("aggregates stale after purge: %v vs %v", d.TotalCost, sum)
	}
}
