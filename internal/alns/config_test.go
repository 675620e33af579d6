package alns

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsBuiltin(t *testing.T) {
	d, err := LoadDefaults("")
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	if d.DegreeOfDestruction != 0.05 || d.Cooling != 0.995 || d.Objective != string(ObjectiveCost) {
		t.Fatalf("unexpected builtins: %+v", d)
	}
}

func TestLoadDefaultsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")
	body := "maxIterations: 250\ncooling: 0.9\nobjective: Demand\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := LoadDefaults(path)
	if err != nil {
		t.Fatalf("LoadDefaults: %v", err)
	}
	if d.MaxIterations != 250 || d.Cooling != 0.9 || d.Objective != "Demand" {
		t.Fatalf("overlay not applied: %+v", d)
	}
	// untouched keys keep builtins
	if d.DegreeOfDestruction != 0.05 {
		t.Fatalf("builtin lost: %+v", d)
	}
}

func TestLoadDefaultsRejectsBadObjective(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solver.yaml")
	if err := os.WriteFile(path, []byte("objective: Profit\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadDefaults(path); err == nil {
		t.Fatal("expected error for invalid objective")
	}
}

func TestEngineConfigConversion(t *testing.T) {
	d := BuiltinDefaults()
	d.TimeBudgetMs = 2500
	cfg := d.EngineConfig()
	if cfg.TimeLimit != 2500*time.Millisecond {
		t.Fatalf("time limit: got %v", cfg.TimeLimit)
	}
	if cfg.Objective != ObjectiveCost {
		t.Fatalf("objective: got %v", cfg.Objective)
	}
}

func TestRecordAndGetMetrics(t *testing.T) {
	RecordMetrics("t_test", "net_1", "alns", Metrics{Iterations: 7})
	got := GetMetrics("t_test", "net_1")
	if got["alns"].Iterations != 7 {
		t.Fatalf("metrics store: %+v", got)
	}
	if len(GetMetrics("t_test", "net_other")) != 0 {
		t.Fatal("unexpected metrics for other network")
	}
}
