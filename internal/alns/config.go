package alns

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults is the solver configuration surface, loadable from a YAML file and
// overlaid by per-request options. It is an explicit value passed into the
// engine; there is no ambient global configuration.
type Defaults struct {
	MaxIterations       int     `yaml:"maxIterations" json:"maxIterations"`
	TimeBudgetMs        int     `yaml:"timeBudgetMs" json:"timeBudgetMs"`
	DegreeOfDestruction float64 `yaml:"degreeOfDestruction" json:"degreeOfDestruction"`
	InitTemp            float64 `yaml:"initTemp" json:"initTemp"`
	Cooling             float64 `yaml:"cooling" json:"cooling"`
	MaxTransits         int     `yaml:"maxTransits" json:"maxTransits"`
	MinRouteLength      int     `yaml:"minRouteLength" json:"minRouteLength"`
	MaxRouteLength      int     `yaml:"maxRouteLength" json:"maxRouteLength"`
	Objective           string  `yaml:"objective" json:"objective"`
	Seed                int64   `yaml:"seed" json:"seed"`
}

// BuiltinDefaults returns the stock solver defaults.
func BuiltinDefaults() Defaults {
	return Defaults{
		MaxIterations:       500,
		TimeBudgetMs:        1000,
		DegreeOfDestruction: 0.05,
		InitTemp:            1.0,
		Cooling:             0.995,
		MaxTransits:         2,
		MinRouteLength:      2,
		MaxRouteLength:      8,
		Objective:           string(ObjectiveCost),
	}
}

// LoadDefaults reads solver defaults from a YAML file, overlaying the builtin
// values. An empty path returns the builtins unchanged.
func LoadDefaults(path string) (Defaults, error) {
	d := BuiltinDefaults()
	if path == "" {
		return d, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("solver config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("solver config: %w", err)
	}
	if d.Objective != "" && !Objective(d.Objective).valid() {
		return d, fmt.Errorf("solver config: invalid objective %q", d.Objective)
	}
	return d, nil
}

// EngineConfig converts defaults into an engine Config.
func (d Defaults) EngineConfig() Config {
	return Config{
		MaxIterations:       d.MaxIterations,
		TimeLimit:           time.Duration(d.TimeBudgetMs) * time.Millisecond,
		DegreeOfDestruction: d.DegreeOfDestruction,
		InitTemp:            d.InitTemp,
		Cooling:             d.Cooling,
		Seed:                d.Seed,
		Objective:           Objective(d.Objective),
	}
}
