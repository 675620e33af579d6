package api

import (
	"fmt"

	"linerd/internal/model"
)

func validateDesignRequest(req *model.DesignRequest) error {
	if req.NetworkID == "" {
		return fmt.Errorf("networkId is required")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if req.Cooling != 0 && (req.Cooling <= 0 || req.Cooling >= 1) {
		return fmt.Errorf("cooling must be in (0,1)")
	}
	if req.DegreeOfDestruction != 0 && (req.DegreeOfDestruction <= 0 || req.DegreeOfDestruction > 1) {
		return fmt.Errorf("degreeOfDestruction must be in (0,1]")
	}
	if req.Objective != "" && req.Objective != "Cost" && req.Objective != "Utility" && req.Objective != "Demand" {
		return fmt.Errorf("invalid objective: %s", req.Objective)
	}
	if len(req.DestroyWeights) > 0 && len(req.DestroyWeights) != 2 {
		return fmt.Errorf("destroyWeights must have length 2")
	}
	if len(req.RepairWeights) > 0 && len(req.RepairWeights) != 3 {
		return fmt.Errorf("repairWeights must have length 3")
	}
	return nil
}

func validateNetworkIn(in *model.NetworkIn) error {
	if len(in.Ports) == 0 && len(in.Dist) == 0 {
		return fmt.Errorf("ports or dist is required")
	}
	if len(in.Dist) > 0 && len(in.Ports) > 0 && len(in.Dist) != len(in.Ports) {
		return fmt.Errorf("dist size %d does not match ports %d", len(in.Dist), len(in.Ports))
	}
	if len(in.ODPairs) == 0 {
		return fmt.Errorf("odPairs is required")
	}
	if in.NumRoutes < 1 {
		return fmt.Errorf("numRoutes must be >= 1")
	}
	return nil
}
