// Package alns implements the adaptive large neighborhood search engine for
// liner-shipping network design: the immutable problem instance, the
// route/design solution model with demand-capture economics, destroy/repair
// operators, and the simulated-annealing driver loop.
package alns

import (
	"fmt"
	"math"
)

// Objective selects which aggregate the engine optimizes.
type Objective string

const (
	ObjectiveCost    Objective = "Cost"
	ObjectiveUtility Objective = "Utility"
	ObjectiveDemand  Objective = "Demand"
)

// Direction is the optimization sense implied by the objective.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

// Direction returns Minimize for cost and Maximize otherwise.
func (o Objective) Direction() Direction {
	if o == ObjectiveCost {
		return Minimize
	}
	return Maximize
}

func (o Objective) valid() bool {
	return o == ObjectiveCost || o == ObjectiveUtility || o == ObjectiveDemand
}

// ODPair is an origin/destination transport-demand pair of port ids.
type ODPair struct {
	Origin      int
	Destination int
}

// NetworkInput carries raw construction data for a problem instance.
type NetworkInput struct {
	Dist       [][]float64 // symmetric, in hours
	ODPairs    []ODPair
	Demand     []float64 // indexed like ODPairs
	FixedCost  []float64 // per port
	Constants  []float64 // utility intercept per OD
	Preference []float64 // utility slope per OD (per hour)
	Varepsilon []float64 // utility noise term per OD

	NumRoutes      int
	MinLength      int
	MaxLength      int
	UnitTravelCost float64
	DefaultSpeed   float64
	MaxTransits    int
	Objective      Objective
}

// NetworkData is the shared problem instance. It is immutable after
// construction and may be shared by reference across concurrent solver runs.
type NetworkData struct {
	NumPorts  int
	NumODs    int
	NumRoutes int

	Dist      [][]float64
	ODPairs   []ODPair
	Demand    []float64
	FixedCost []float64

	Constants  []float64
	Preference []float64
	Varepsilon []float64

	MinLength      int
	MaxLength      int
	UnitTravelCost float64
	DefaultSpeed   float64
	MaxTransits    int
	Objective      Objective

	odIndex map[ODPair]int
}

// NewNetworkData validates the input and builds an immutable instance.
// Structurally invalid input fails here, never deep inside an iteration.
func NewNetworkData(in NetworkInput) (*NetworkData, error) {
	np := len(in.Dist)
	if np == 0 {
		return nil, fmt.Errorf("network: zero ports")
	}
	for i, row := range in.Dist {
		if len(row) != np {
			return nil, fmt.Errorf("network: distance matrix row %d has %d entries, want %d", i, len(row), np)
		}
	}
	for i := 0; i < np; i++ {
		for j := i + 1; j < np; j++ {
			if math.Abs(in.Dist[i][j]-in.Dist[j][i]) > 1e-9 {
				return nil, fmt.Errorf("network: distance matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
	if len(in.FixedCost) != np {
		return nil, fmt.Errorf("network: fixedCost has %d entries, want %d", len(in.FixedCost), np)
	}
	nod := len(in.ODPairs)
	odIndex := make(map[ODPair]int, nod)
	for k, od := range in.ODPairs {
		if od.Origin < 0 || od.Origin >= np || od.Destination < 0 || od.Destination >= np {
			return nil, fmt.Errorf("network: od pair %d references invalid port (%d,%d)", k, od.Origin, od.Destination)
		}
		if _, dup := odIndex[od]; dup {
			return nil, fmt.Errorf("network: duplicate od pair (%d,%d)", od.Origin, od.Destination)
		}
		odIndex[od] = k
	}
	if len(in.Demand) != nod {
		return nil, fmt.Errorf("network: demand has %d entries, want %d", len(in.Demand), nod)
	}
	for name, s := range map[string][]float64{"constants": in.Constants, "preference": in.Preference, "varepsilon": in.Varepsilon} {
		if len(s) != nod {
			return nil, fmt.Errorf("network: %s has %d entries, want %d", name, len(s), nod)
		}
	}
	if in.MinLength < 1 || in.MaxLength < in.MinLength {
		return nil, fmt.Errorf("network: invalid route length bounds [%d,%d]", in.MinLength, in.MaxLength)
	}
	if in.NumRoutes < 1 {
		return nil, fmt.Errorf("network: numRoutes must be >= 1")
	}
	obj := in.Objective
	if obj == "" {
		obj = ObjectiveCost
	}
	if !obj.valid() {
		return nil, fmt.Errorf("network: invalid objective %q", in.Objective)
	}
	unit := in.UnitTravelCost
	if unit <= 0 {
		unit = 1
	}
	speed := in.DefaultSpeed
	if speed <= 0 {
		speed = 35
	}
	maxTr := in.MaxTransits
	if maxTr < 0 {
		maxTr = 0
	}
	return &NetworkData{
		NumPorts:       np,
		NumODs:         nod,
		NumRoutes:      in.NumRoutes,
		Dist:           in.Dist,
		ODPairs:        in.ODPairs,
		Demand:         in.Demand,
		FixedCost:      in.FixedCost,
		Constants:      in.Constants,
		Preference:     in.Preference,
		Varepsilon:     in.Varepsilon,
		MinLength:      in.MinLength,
		MaxLength:      in.MaxLength,
		UnitTravelCost: unit,
		DefaultSpeed:   speed,
		MaxTransits:    maxTr,
		Objective:      obj,
		odIndex:        odIndex,
	}, nil
}

// Utility evaluates the linear-in-time choice utility of OD k at travel time t.
func (n *NetworkData) Utility(k int, t float64) float64 {
	return n.Constants[k] + n.Preference[k]*t + n.Varepsilon[k]
}

// ODIndex returns the index of the (o,d) demand pair, if registered.
func (n *NetworkData) ODIndex(o, d int) (int, bool) {
	k, ok := n.odIndex[ODPair{Origin: o, Destination: d}]
	return k, ok
}
