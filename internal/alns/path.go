package alns

import (
	"fmt"
	"strings"
)

// Arc is one sailing leg of a candidate path.
type Arc struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// CandidatePath is one possible itinerary for an OD pair given the current
// route set: either a direct sub-path of a single route or a merged transfer
// path through a transit node.
type CandidatePath struct {
	OD             ODPair
	Direct         bool
	Arcs           []Arc
	Transits       int
	TravelTime     float64
	Utility        float64
	ChoiceProb     float64
	CapturedDemand float64
}

// newDirectPath builds a direct candidate from a contiguous route sub-path.
// utility is left at zero unless (o,d) is a registered demand pair.
func newDirectPath(net *NetworkData, sub []int, travelTime float64) CandidatePath {
	arcs := make([]Arc, 0, len(sub)-1)
	for i := 0; i+1 < len(sub); i++ {
		arcs = append(arcs, Arc{From: sub[i], To: sub[i+1]})
	}
	p := CandidatePath{
		OD:         ODPair{Origin: sub[0], Destination: sub[len(sub)-1]},
		Direct:     true,
		Arcs:       arcs,
		TravelTime: travelTime,
	}
	if k, ok := net.ODIndex(p.OD.Origin, p.OD.Destination); ok {
		p.Utility = net.Utility(k, travelTime)
	}
	return p
}

// Merge joins p (origin→transit) with q (transit→destination) into a transfer
// path. Transit counts sum plus one for the new transfer; callers enforce the
// transit cap and the no-self-transit rule.
func (p CandidatePath) Merge(q CandidatePath, net *NetworkData) CandidatePath {
	arcs := make([]Arc, 0, len(p.Arcs)+len(q.Arcs))
	arcs = append(arcs, p.Arcs...)
	arcs = append(arcs, q.Arcs...)
	out := CandidatePath{
		OD:         ODPair{Origin: p.OD.Origin, Destination: q.OD.Destination},
		Direct:     false,
		Arcs:       arcs,
		Transits:   p.Transits + q.Transits + 1,
		TravelTime: p.TravelTime + q.TravelTime,
	}
	if k, ok := net.ODIndex(out.OD.Origin, out.OD.Destination); ok {
		out.Utility = net.Utility(k, out.TravelTime)
	}
	return out
}

// Copy returns a deep copy of the path.
func (p CandidatePath) Copy() CandidatePath {
	out := p
	out.Arcs = append([]Arc(nil), p.Arcs...)
	return out
}

// key identifies a path by its arc sequence, for dedup within a pair table.
func (p CandidatePath) key() string {
	var b strings.Builder
	for _, a := range p.Arcs {
		fmt.Fprintf(&b, "%d>%d;", a.From, a.To)
	}
	return b.String()
}
