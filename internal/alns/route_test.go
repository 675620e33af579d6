package alns

import (
	"math"
	"testing"
)

// unitNetwork builds a small instance with an all-ones distance matrix.
func unitNetwork(t *testing.T, numPorts int) *NetworkData {
	t.Helper()
	dist := make([][]float64, numPorts)
	for i := range dist {
		dist[i] = make([]float64, numPorts)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = 1
			}
		}
	}
	fixed := make([]float64, numPorts)
	for i := range fixed {
		fixed[i] = float64(i + 1)
	}
	ods := []ODPair{{Origin: 0, Destination: 2}, {Origin: 1, Destination: 3}}
	nod := len(ods)
	consts, pref, eps := make([]float64, nod), make([]float64, nod), make([]float64, nod)
	for k := range ods {
		consts[k] = 5
		pref[k] = -1
	}
	net, err := NewNetworkData(NetworkInput{
		Dist:       dist,
		ODPairs:    ods,
		Demand:     []float64{100, 50},
		FixedCost:  fixed,
		Constants:  consts,
		Preference: pref,
		Varepsilon: eps,
		NumRoutes:   2,
		MinLength:   2,
		MaxLength:   4,
		MaxTransits: 2,
	})
	if err != nil {
		t.Fatalf("NewNetworkData: %v", err)
	}
	return net
}

func TestRoundTripTimeUnitTriangle(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2})
	if rs.RoundTripTime != 3 {
		t.Fatalf("round trip: got %v want 3", rs.RoundTripTime)
	}
	if len(rs.PortCalls) != 3 {
		t.Fatalf("port calls: got %d want 3", len(rs.PortCalls))
	}
	if rs.PortCalls[2].Arrival != 2 {
		t.Fatalf("arrival at third call: got %v want 2", rs.PortCalls[2].Arrival)
	}
}

func TestUpdateCollapsesConsecutiveDuplicates(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 0, 1, 1, 2, 0})
	for i := 0; i < rs.Len(); i++ {
		if rs.Route[i] == rs.Route[(i+1)%rs.Len()] {
			t.Fatalf("consecutive duplicate at %d in %v", i, rs.Route)
		}
	}
}

func TestUpdateIdempotent(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2, 3})
	cost, rtt, util := rs.Cost, rs.RoundTripTime, rs.Utility[0]
	rs.Update(rs.Route)
	if rs.Cost != cost || rs.RoundTripTime != rtt || rs.Utility[0] != util {
		t.Fatalf("derived fields changed on no-op update: cost %v->%v rtt %v->%v util %v->%v",
			cost, rs.Cost, rtt, rs.RoundTripTime, util, rs.Utility[0])
	}
}

func TestTransportTimeRoundTripLaw(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2, 3})
	fwd := rs.TransportTime(1, 3)
	back := rs.TransportTime(3, 1)
	if math.Abs(fwd+back-rs.RoundTripTime) > 1e-9 {
		t.Fatalf("round trip law: %v + %v != %v", fwd, back, rs.RoundTripTime)
	}
}

func TestTransportTimeAbsentPortSentinel(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2})
	if got := rs.TransportTime(0, 4); got != absentTime {
		t.Fatalf("absent port: got %v want sentinel", got)
	}
}

func TestSubpathWrapsAround(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2, 3})
	sub := rs.Subpath(3, 0)
	if len(sub) != 2 || sub[0] != 3 || sub[1] != 0 {
		t.Fatalf("wrap subpath: got %v want [3 0]", sub)
	}
	sub = rs.Subpath(0, 2)
	if len(sub) != 3 || sub[0] != 0 || sub[2] != 2 {
		t.Fatalf("forward subpath: got %v want [0 1 2]", sub)
	}
}

func TestRemoveNodeRecomputes(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2, 3})
	before := rs.Cost
	rs.RemoveNode(1)
	if rs.Len() != 3 {
		t.Fatalf("length after removal: got %d want 3", rs.Len())
	}
	if rs.Cost >= before {
		t.Fatalf("cost should drop after removing a port: %v -> %v", before, rs.Cost)
	}
	if got := rs.TransportTime(0, 1); got != absentTime {
		t.Fatalf("memo not reset after mutation: got %v", got)
	}
}

func TestEmptyRouteZeroMetrics(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, nil)
	if rs.Cost != 0 || rs.RoundTripTime != 0 || rs.Len() != 0 {
		t.Fatalf("empty route should be all-zero: %+v", rs)
	}
}

func TestCostDecomposition(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2})
	wantCover := net.FixedCost[0] + net.FixedCost[1] + net.FixedCost[2]
	if rs.CoverCost != wantCover {
		t.Fatalf("cover cost: got %v want %v", rs.CoverCost, wantCover)
	}
	wantTravel := 3 * net.UnitTravelCost
	if rs.TravelCost != wantTravel {
		t.Fatalf("travel cost: got %v want %v", rs.TravelCost, wantTravel)
	}
	if rs.Cost != wantCover+wantTravel {
		t.Fatalf("cost: got %v want %v", rs.Cost, wantCover+wantTravel)
	}
	if rs.TravelDistance != 3*net.DefaultSpeed {
		t.Fatalf("travel distance: got %v want %v", rs.TravelDistance, 3*net.DefaultSpeed)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	net := unitNetwork(t, 5)
	rs := NewRouteSolution(net, []int{0, 1, 2})
	cp := rs.Copy()
	cp.RemoveNode(1)
	if rs.Len() != 3 {
		t.Fatalf("original mutated via copy: %v", rs.Route)
	}
	if cp.Len() != 2 {
		t.Fatalf("copy length: got %d want 2", cp.Len())
	}
}
