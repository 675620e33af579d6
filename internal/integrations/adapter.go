package integrations

// NetworkSource defines the minimal interface for external network data
// sources (CSV drops, carrier schedules).
type NetworkSource interface {
	Name() string
	FetchNetwork(cfg map[string]any) (NetworkBatch, error)
}

type NetworkBatch struct {
	Ports   []Port
	Demands []Demand
}

type Port struct {
	Name      string
	Lat       float64
	Lng       float64
	FixedCost float64
}

type Demand struct {
	Origin      int
	Destination int
	Volume      float64
	Constant    float64
	Preference  float64
	Varepsilon  float64
}
