package alns

import (
	"math"
	"math/rand"
	"time"
)

// Config is the flat tuning surface of one engine run. Zero values fall back
// to the documented defaults.
type Config struct {
	MaxIterations       int
	TimeLimit           time.Duration
	DegreeOfDestruction float64 // default 0.05
	InitTemp            float64
	Cooling             float64
	Seed                int64
	DestroyWeights      []float64 // initial weights, aligned with registration order
	RepairWeights       []float64
	Objective           Objective // overrides the instance objective when set
}

// Operator carries the name and adaptive selection state of one registered
// destroy/repair strategy. Weights drive roulette-wheel selection; Score
// accumulates the reward credited across the run.
type Operator struct {
	Name   string
	Weight float64
	Score  float64
}

type destroyEntry struct {
	Operator
	fn DestroyFunc
}

type repairEntry struct {
	Operator
	fn RepairFunc
}

// Engine orchestrates destroy/repair selection, acceptance and best-so-far
// tracking over a single problem instance. One Engine drives one run at a
// time; NetworkData may be shared across engines, solutions may not.
type Engine struct {
	net      *NetworkData
	cfg      Config
	destroys []destroyEntry
	repairs  []repairEntry
	progress ProgressFunc

	best    *DesignSolution
	bestObj float64
}

// WeightSnapshot records operator weights at an iteration boundary.
type WeightSnapshot struct {
	Iteration int       `json:"iteration"`
	Destroy   []float64 `json:"destroy"`
	Repair    []float64 `json:"repair"`
}

// Metrics summarizes one engine run.
type Metrics struct {
	Iterations     int                `json:"iterations"`
	Improvements   int                `json:"improvements"`
	AcceptedWorse  int                `json:"acceptedWorse"`
	DestroySelects map[string]int     `json:"destroySelects"`
	RepairSelects  map[string]int     `json:"repairSelects"`
	BestObjective  float64            `json:"bestObjective"`
	FinalObjective float64            `json:"finalObjective"`
	DestroyWeights map[string]float64 `json:"destroyWeights"`
	RepairWeights  map[string]float64 `json:"repairWeights"`
	Snapshots      []WeightSnapshot   `json:"snapshots,omitempty"`
}

// Result is the terminal payload of a run, keyed per route index.
type Result struct {
	Routes     map[int][]int      `json:"routes"`
	PortCalls  map[int][]PortCall `json:"portCalls"`
	CycleTimes map[int]float64    `json:"cycleTimes"` // rounded to 1 decimal
	TotalCost  float64            `json:"totalCost"`  // rounded to 2 decimals
	Design     *DesignSolution    `json:"-"`
}

// NewEngine builds an engine with the default operator set: random and
// cost-based removal on the destroy side; greedy, distance-greedy and random
// insertion on the repair side. Additional operators may be registered before
// Solve.
func NewEngine(net *NetworkData, cfg Config) *Engine {
	if cfg.DegreeOfDestruction <= 0 {
		cfg.DegreeOfDestruction = 0.05
	}
	if cfg.Objective == "" {
		cfg.Objective = net.Objective
	}
	e := &Engine{net: net, cfg: cfg}
	e.RegisterDestroy("random_removal", NewRandomRemoval(cfg.DegreeOfDestruction))
	e.RegisterDestroy("cost_removal", NewCostBasedRemoval(0.3))
	e.RegisterRepair("greedy", GreedyRepair)
	e.RegisterRepair("distance_greedy", DistanceGreedyRepair)
	e.RegisterRepair("random", RandomRepair)
	return e
}

// RegisterDestroy adds a named destroy operator with unit weight.
func (e *Engine) RegisterDestroy(name string, fn DestroyFunc) {
	e.destroys = append(e.destroys, destroyEntry{Operator: Operator{Name: name, Weight: 1}, fn: fn})
}

// RegisterRepair adds a named repair operator with unit weight.
func (e *Engine) RegisterRepair(name string, fn RepairFunc) {
	e.repairs = append(e.repairs, repairEntry{Operator: Operator{Name: name, Weight: 1}, fn: fn})
}

// Seed builds the naive bootstrap design: one route per planned slot, each a
// random port sample within the length bounds. Callers with a better initial
// solution (e.g. from an exact solver) should use SolveFrom instead.
func (e *Engine) Seed(rng *rand.Rand) *DesignSolution {
	d, _ := NewDesignSolution(e.net, e.cfg.Objective)
	span := e.net.MaxLength - e.net.MinLength + 1
	for r := 0; r < e.net.NumRoutes; r++ {
		length := e.net.MinLength + rng.Intn(span)
		if length > e.net.NumPorts {
			length = e.net.NumPorts
		}
		perm := rng.Perm(e.net.NumPorts)
		d.AddRouteSolution(NewRouteSolution(e.net, perm[:length]))
	}
	return d
}

// Solve runs the full loop from the naive seed.
func (e *Engine) Solve() (Result, Metrics) {
	rng := e.rng()
	return e.run(e.Seed(rng), rng)
}

// SolveFrom runs the loop from externally supplied per-route port sequences,
// e.g. an initial feasible design from an exact solver.
func (e *Engine) SolveFrom(initial [][]int) (Result, Metrics) {
	rng := e.rng()
	d, _ := NewDesignSolution(e.net, e.cfg.Objective)
	for _, route := range initial {
		d.AddRouteSolution(NewRouteSolution(e.net, route))
	}
	if len(d.Routes) == 0 {
		d = e.Seed(rng)
	}
	return e.run(d, rng)
}

func (e *Engine) rng() *rand.Rand {
	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ProgressFunc observes the run; see Engine.run. Used by the service layer to
// stream iteration progress.
type ProgressFunc func(iteration int, bestObjective float64)

// OnProgress sets a progress callback invoked every snapshot interval.
func (e *Engine) OnProgress(fn ProgressFunc) { e.progress = fn }

func (e *Engine) run(curr *DesignSolution, rng *rand.Rand) (Result, Metrics) {
	dir := e.cfg.Objective.Direction()
	if len(e.cfg.DestroyWeights) == len(e.destroys) {
		for i, w := range e.cfg.DestroyWeights {
			e.destroys[i].Weight = w
		}
	}
	if len(e.cfg.RepairWeights) == len(e.repairs) {
		for i, w := range e.cfg.RepairWeights {
			e.repairs[i].Weight = w
		}
	}
	sa := NewSimulatedAnnealing(e.cfg.InitTemp, e.cfg.Cooling, rng)
	best := curr.Copy()
	bestObj := best.Objective()
	e.best, e.bestObj = best, bestObj
	m := Metrics{
		BestObjective:  bestObj,
		DestroySelects: map[string]int{},
		RepairSelects:  map[string]int{},
	}

	budget := e.cfg.TimeLimit
	if budget <= 0 {
		budget = time.Second
	}
	deadline := time.Now().Add(budget)
	const snapshotEvery = 50
	for time.Now().Before(deadline) {
		if e.cfg.MaxIterations > 0 && m.Iterations >= e.cfg.MaxIterations {
			break
		}
		m.Iterations++
		di := rouletteSelect(e.destroyWeights(), rng)
		ri := rouletteSelect(e.repairWeights(), rng)
		m.DestroySelects[e.destroys[di].Name]++
		m.RepairSelects[e.repairs[ri].Name]++

		cand := e.repairs[ri].fn(e.destroys[di].fn(curr, rng), rng)
		obj := cand.Objective()

		if sa.Accept(obj, bestObj, dir) {
			curr = cand
			if better(obj, bestObj, dir) {
				best = cand.Copy()
				bestObj = obj
				e.best, e.bestObj = best, bestObj
				m.Improvements++
				m.BestObjective = bestObj
				e.destroys[di].Weight += 0.1
				e.destroys[di].Score += 0.1
				e.repairs[ri].Weight += 0.1
				e.repairs[ri].Score += 0.1
			} else {
				m.AcceptedWorse++
				e.destroys[di].Weight += 0.01
				e.repairs[ri].Weight += 0.01
			}
		} else {
			e.destroys[di].Weight = math.Max(0.01, e.destroys[di].Weight*0.999)
			e.repairs[ri].Weight = math.Max(0.01, e.repairs[ri].Weight*0.999)
		}

		if m.Iterations%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{
				Iteration: m.Iterations,
				Destroy:   e.destroyWeights(),
				Repair:    e.repairWeights(),
			})
			if e.progress != nil {
				e.progress(m.Iterations, bestObj)
			}
		}
	}

	m.FinalObjective = bestObj
	m.DestroyWeights = map[string]float64{}
	for _, op := range e.destroys {
		m.DestroyWeights[op.Name] = op.Weight
	}
	m.RepairWeights = map[string]float64{}
	for _, op := range e.repairs {
		m.RepairWeights[op.Name] = op.Weight
	}
	return buildResult(best), m
}

// BestSnapshot returns the best design seen so far. It stays valid when a run
// aborts partway, so callers can fall back to the incumbent instead of losing
// the whole run.
func (e *Engine) BestSnapshot() (Result, bool) {
	if e.best == nil {
		return Result{}, false
	}
	return buildResult(e.best), true
}

func (e *Engine) destroyWeights() []float64 {
	out := make([]float64, len(e.destroys))
	for i, op := range e.destroys {
		out[i] = op.Weight
	}
	return out
}

func (e *Engine) repairWeights() []float64 {
	out := make([]float64, len(e.repairs))
	for i, op := range e.repairs {
		out[i] = op.Weight
	}
	return out
}

func buildResult(best *DesignSolution) Result {
	res := Result{
		Routes:     map[int][]int{},
		PortCalls:  map[int][]PortCall{},
		CycleTimes: map[int]float64{},
		Design:     best,
	}
	for i, rs := range best.Routes {
		res.Routes[i] = append([]int(nil), rs.Route...)
		res.PortCalls[i] = append([]PortCall(nil), rs.PortCalls...)
		res.CycleTimes[i] = math.Round(rs.RoundTripTime*10) / 10
	}
	res.TotalCost = math.Round(best.TotalCost*100) / 100
	return res
}

// rouletteSelect picks an index proportionally to its weight.
func rouletteSelect(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
