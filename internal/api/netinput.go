package api

import (
	"math"

	"linerd/internal/alns"
	"linerd/internal/model"
)

// buildNetworkInput converts a stored network spec into a solver instance.
// Tenant defaults fill route-length and transfer bounds the spec leaves zero.
func buildNetworkInput(spec model.NetworkIn, d alns.Defaults, objective string) alns.NetworkInput {
	in := alns.NetworkInput{
		Dist:           spec.Dist,
		NumRoutes:      spec.NumRoutes,
		MinLength:      spec.MinRouteLength,
		MaxLength:      spec.MaxRouteLength,
		UnitTravelCost: spec.UnitTravelCost,
		DefaultSpeed:   spec.DefaultSpeed,
		MaxTransits:    spec.MaxTransits,
	}
	if in.MinLength == 0 { in.MinLength = d.MinRouteLength }
	if in.MaxLength == 0 { in.MaxLength = d.MaxRouteLength }
	if in.MaxTransits == 0 { in.MaxTransits = d.MaxTransits }
	obj := objective
	if obj == "" { obj = spec.Objective }
	if obj == "" { obj = d.Objective }
	in.Objective = alns.Objective(obj)

	if len(in.Dist) == 0 && len(spec.Ports) > 0 {
		speed := spec.DefaultSpeed
		if speed <= 0 { speed = 35 }
		n := len(spec.Ports)
		in.Dist = make([][]float64, n)
		for i := range in.Dist {
			in.Dist[i] = make([]float64, n)
			for j := range in.Dist[i] {
				if i == j { continue }
				in.Dist[i][j] = greatCircleNM(spec.Ports[i].Lat, spec.Ports[i].Lng, spec.Ports[j].Lat, spec.Ports[j].Lng) / speed
			}
		}
	}
	for _, p := range spec.Ports {
		in.FixedCost = append(in.FixedCost, p.FixedCost)
	}
	if len(in.FixedCost) == 0 { in.FixedCost = make([]float64, len(in.Dist)) }
	for _, od := range spec.ODPairs {
		in.ODPairs = append(in.ODPairs, alns.ODPair{Origin: od.Origin, Destination: od.Destination})
		in.Demand = append(in.Demand, od.Demand)
		in.Constants = append(in.Constants, od.Constant)
		in.Preference = append(in.Preference, od.Preference)
		in.Varepsilon = append(in.Varepsilon, od.Varepsilon)
	}
	return in
}

// greatCircleNM returns the haversine distance between two coordinates in
// nautical miles.
func greatCircleNM(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusNM = 3440.065
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusNM * math.Asin(math.Sqrt(a))
}
