package model

// API types for the liner-shipping network design service.

// PortIn is one candidate port in a network submission.
type PortIn struct {
	Name      string  `json:"name,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	FixedCost float64 `json:"fixedCost"`
}

// ODPairIn is one origin/destination demand entry, by port index.
type ODPairIn struct {
	Origin      int     `json:"origin"`
	Destination int     `json:"destination"`
	Demand      float64 `json:"demand"`
	Constant    float64 `json:"constant,omitempty"`
	Preference  float64 `json:"preference,omitempty"`
	Varepsilon  float64 `json:"varepsilon,omitempty"`
}

// NetworkIn is a network creation request. The distance matrix may be given
// directly (in hours) or derived from port coordinates.
type NetworkIn struct {
	TenantID string      `json:"tenantId,omitempty"`
	Name     string      `json:"name,omitempty"`
	Ports    []PortIn    `json:"ports"`
	ODPairs  []ODPairIn  `json:"odPairs"`
	Dist     [][]float64 `json:"dist,omitempty"`

	NumRoutes      int     `json:"numRoutes"`
	MinRouteLength int     `json:"minRouteLength,omitempty"`
	MaxRouteLength int     `json:"maxRouteLength,omitempty"`
	UnitTravelCost float64 `json:"unitTravelCost,omitempty"`
	DefaultSpeed   float64 `json:"defaultSpeed,omitempty"`
	MaxTransits    int     `json:"maxTransits,omitempty"`
	Objective      string  `json:"objective,omitempty"`
}

// NetworkOut is the stored view of a network.
type NetworkOut struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenantId"`
	Name     string    `json:"name,omitempty"`
	NumPorts int       `json:"numPorts"`
	NumODs   int       `json:"numODs"`
	Spec     NetworkIn `json:"spec"`
}

// DesignRequest asks for an ALNS run against a stored network.
type DesignRequest struct {
	TenantID            string    `json:"tenantId,omitempty"`
	NetworkID           string    `json:"networkId"`
	Objective           string    `json:"objective,omitempty"`
	MaxIterations       int       `json:"maxIterations,omitempty"`
	TimeBudgetMs        int       `json:"timeBudgetMs,omitempty"`
	DegreeOfDestruction float64   `json:"degreeOfDestruction,omitempty"`
	InitTemp            float64   `json:"initTemp,omitempty"`
	Cooling             float64   `json:"cooling,omitempty"`
	Seed                int64     `json:"seed,omitempty"`
	DestroyWeights      []float64 `json:"destroyWeights,omitempty"`
	RepairWeights       []float64 `json:"repairWeights,omitempty"`
	// InitialRoutes supplies an externally computed feasible design, e.g.
	// from an exact solver; the engine seeds itself when absent.
	InitialRoutes [][]int `json:"initialRoutes,omitempty"`
}

// PortCallOut is one scheduled call of a planned route.
type PortCallOut struct {
	Port    int     `json:"port"`
	Call    int     `json:"call"`
	Arrival float64 `json:"arrival"`
}

// RoutePlanOut is one planned service route.
type RoutePlanOut struct {
	Index     int           `json:"index"`
	Ports     []int         `json:"ports"`
	PortCalls []PortCallOut `json:"portCalls"`
	CycleTime float64       `json:"cycleTime"`
}

// DesignRun is a stored run with its terminal payload.
type DesignRun struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	NetworkID  string         `json:"networkId"`
	Status     string         `json:"status"` // running, completed, failed
	Objective  string         `json:"objective"`
	TotalCost  float64        `json:"totalCost"`
	BestValue  float64        `json:"bestValue"`
	Routes     []RoutePlanOut `json:"routes"`
	Metrics    map[string]any `json:"metrics,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	FinishedAt string         `json:"finishedAt,omitempty"`
}

// SubscriptionRequest registers a webhook endpoint for run events.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"` // design.completed, design.failed
	Secret   string   `json:"secret"`
}

// Subscription is a stored webhook registration.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
