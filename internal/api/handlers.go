package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"linerd/internal/alns"
	"linerd/internal/metrics"
	"linerd/internal/model"
)

// NetworksHandler handles POST/GET /v1/networks
func (s *Server) NetworksHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
		var in model.NetworkIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if in.TenantID == "" { _, in.TenantID = s.withTenant(r) }
		if err := validateNetworkIn(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid network", err.Error(), r.URL.Path)
			return
		}
		// Fail fast: the instance must construct before it is stored.
		d, _ := s.resolveDefaults(r.Context(), in.TenantID)
		if _, err := alns.NewNetworkData(buildNetworkInput(in, d, "")); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid network", err.Error(), r.URL.Path)
			return
		}
		out, err := s.Store.CreateNetwork(r.Context(), in.TenantID, in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create network failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListNetworks(r.Context(), tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List networks failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// NetworkByIDHandler handles GET /v1/networks/{id}
func (s *Server) NetworkByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/networks/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	id := strings.TrimPrefix(r.URL.Path, "/v1/networks/")
	_, tenant := s.withTenant(r)
	n, err := s.Store.GetNetwork(r.Context(), tenant, id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Network not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DesignHandler handles POST /v1/design: launches an ALNS run and returns its id.
func (s *Server) DesignHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
	var req model.DesignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateDesignRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid design request", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" { _, req.TenantID = s.withTenant(r) }
	network, err := s.Store.GetNetwork(r.Context(), req.TenantID, req.NetworkID)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Network not found", err.Error(), r.URL.Path)
		return
	}
	defaults, _ := s.resolveDefaults(r.Context(), req.TenantID)
	net, err := alns.NewNetworkData(buildNetworkInput(network.Spec, defaults, req.Objective))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid instance", err.Error(), r.URL.Path)
		return
	}
	cfg := defaults.EngineConfig()
	if req.MaxIterations > 0 { cfg.MaxIterations = req.MaxIterations }
	if req.TimeBudgetMs > 0 { cfg.TimeLimit = time.Duration(req.TimeBudgetMs) * time.Millisecond }
	if req.DegreeOfDestruction > 0 { cfg.DegreeOfDestruction = req.DegreeOfDestruction }
	if req.InitTemp > 0 { cfg.InitTemp = req.InitTemp }
	if req.Cooling > 0 { cfg.Cooling = req.Cooling }
	if req.Seed != 0 { cfg.Seed = req.Seed }
	if len(req.DestroyWeights) > 0 { cfg.DestroyWeights = req.DestroyWeights }
	if len(req.RepairWeights) > 0 { cfg.RepairWeights = req.RepairWeights }
	cfg.Objective = net.Objective

	runID := uuid.New().String()
	run := model.DesignRun{
		ID:        runID,
		TenantID:  req.TenantID,
		NetworkID: req.NetworkID,
		Status:    "running",
		Objective: string(net.Objective),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.Store.SaveDesignRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save run failed", err.Error(), r.URL.Path)
		return
	}
	eng := alns.NewEngine(net, cfg)
	eng.OnProgress(func(iter int, best float64) {
		s.Broker.Publish(runID, SSEEvent{Type: "design.progress", Data: map[string]any{"runId": runID, "iteration": iter, "best": best}})
	})
	go s.executeRun(run, eng, req.InitialRoutes)
	writeJSON(w, http.StatusAccepted, map[string]any{"runId": runID, "status": "running"})
}

// executeRun drives the engine to completion and records the terminal state.
func (s *Server) executeRun(run model.DesignRun, eng *alns.Engine, initial [][]int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			run.Status = "failed"
			run.Error = fmt.Sprintf("engine panic: %v", rec)
			run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
			// Fall back to the incumbent so a late defect does not lose the run.
			if res, ok := eng.BestSnapshot(); ok {
				run.Routes = routePlans(res)
				run.TotalCost = res.TotalCost
			}
			_ = s.Store.SaveDesignRun(ctx, run)
			metrics.DesignRuns.WithLabelValues("failed").Inc()
			s.Pub.Emit(ctx, run.TenantID, "design.failed", map[string]any{"runId": run.ID, "error": run.Error})
			s.Broker.Publish(run.ID, SSEEvent{Type: "design.failed", Data: map[string]any{"runId": run.ID, "error": run.Error}})
		}
	}()

	var res alns.Result
	var m alns.Metrics
	if len(initial) > 0 {
		res, m = eng.SolveFrom(initial)
	} else {
		res, m = eng.Solve()
	}
	metrics.EngineIterations.Add(float64(m.Iterations))

	run.Routes = routePlans(res)
	run.Status = "completed"
	run.TotalCost = res.TotalCost
	run.BestValue = m.BestObjective
	run.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	run.Metrics = metricsMap(m)
	_ = s.Store.SaveDesignRun(ctx, run)
	_ = s.Store.SaveRunMetrics(ctx, run.TenantID, run.NetworkID, "alns", run.Metrics)
	alns.RecordMetrics(run.TenantID, run.NetworkID, "alns", m)
	metrics.DesignRuns.WithLabelValues("completed").Inc()

	data := map[string]any{"runId": run.ID, "networkId": run.NetworkID, "objective": run.Objective, "totalCost": run.TotalCost, "bestValue": run.BestValue}
	s.Pub.Emit(ctx, run.TenantID, "design.completed", data)
	s.Broker.Publish(run.ID, SSEEvent{Type: "design.completed", Data: data})
}

func routePlans(res alns.Result) []model.RoutePlanOut {
	var out []model.RoutePlanOut
	// Route indices are contiguous from zero; iterate in order for stable JSON.
	for idx := 0; idx < len(res.Routes); idx++ {
		plan := model.RoutePlanOut{Index: idx, Ports: res.Routes[idx], CycleTime: res.CycleTimes[idx]}
		for _, pc := range res.PortCalls[idx] {
			plan.PortCalls = append(plan.PortCalls, model.PortCallOut{Port: pc.Port, Call: pc.Call, Arrival: pc.Arrival})
		}
		out = append(out, plan)
	}
	return out
}

func metricsMap(m alns.Metrics) map[string]any {
	out := map[string]any{
		"iterations":     m.Iterations,
		"improvements":   m.Improvements,
		"acceptedWorse":  m.AcceptedWorse,
		"bestObjective":  m.BestObjective,
		"finalObjective": m.FinalObjective,
		"destroySelects": m.DestroySelects,
		"repairSelects":  m.RepairSelects,
		"destroyWeights": m.DestroyWeights,
		"repairWeights":  m.RepairWeights,
	}
	if len(m.Snapshots) > 0 { out["weights"] = m.Snapshots }
	return out
}

// resolveDefaults overlays the optional YAML file and the tenant config onto
// the builtin solver defaults.
func (s *Server) resolveDefaults(ctx context.Context, tenant string) (alns.Defaults, error) {
	d, err := alns.LoadDefaults(os.Getenv("SOLVER_CONFIG"))
	if err != nil {
		return d, err
	}
	cfg, err := s.Store.GetDesignConfig(ctx, tenant)
	if err != nil || len(cfg) == 0 {
		return d, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, err
	}
	return d, nil
}

// DesignsHandler handles GET /v1/designs
func (s *Server) DesignsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/designs" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	_, tenant := s.withTenant(r)
	networkID := r.URL.Query().Get("networkId")
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
	items, next, err := s.Store.ListDesignRuns(r.Context(), tenant, networkID, status, cursor, limit)
	if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// DesignByIDHandler handles GET /v1/designs/{id} and /v1/designs/{id}/events/stream
func (s *Server) DesignByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/designs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		// SSE for run events
		if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
		_, tenant := s.withTenant(r)
		if _, err := s.Store.GetDesignRun(r.Context(), tenant, id); err != nil {
			writeProblem(w, 404, "Run not found", err.Error(), r.URL.Path)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		ch := s.Broker.Subscribe(id)
		defer s.Broker.Unsubscribe(id, ch)
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
		notify := r.Context().Done()
		for {
			select {
			case <-notify:
				return
			case evt := <-ch:
				b, _ := json.Marshal(evt.Data)
				fmt.Fprintf(w, "event: %s\n", evt.Type)
				fmt.Fprintf(w, "data: %s\n\n", string(b))
				flusher.Flush()
			case <-time.After(15 * time.Second):
				fmt.Fprintf(w, "event: heartbeat\n")
				fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
				flusher.Flush()
			}
		}
	}
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	_, tenant := s.withTenant(r)
	run, err := s.Store.GetDesignRun(r.Context(), tenant, id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// DesignConfigHandler returns effective solver defaults for the tenant
func (s *Server) DesignConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/design/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	d, err := s.resolveDefaults(r.Context(), p.Tenant)
	if err != nil { writeProblem(w, 500, "Config failed", err.Error(), r.URL.Path); return }
	writeJSON(w, 200, map[string]any{"defaults": d})
}

// Admin get/set solver tenant config
func (s *Server) AdminDesignConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/design/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	switch r.Method {
	case http.MethodGet:
		cfg, _ := s.Store.GetDesignConfig(r.Context(), p.Tenant)
		if cfg == nil { cfg = map[string]any{} }
		writeJSON(w, 200, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct{ Config map[string]any `json:"config"` }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
		if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
		if obj, ok := body.Config["objective"].(string); ok && obj != "" && obj != "Cost" && obj != "Utility" && obj != "Demand" {
			writeProblem(w, 400, "Invalid config", "invalid objective: "+obj, r.URL.Path)
			return
		}
		if err := s.Store.SaveDesignConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
		writeJSON(w, 200, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" { req.TenantID = p.Tenant }
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		p := s.getPrincipal(r)
		if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	if r.Method != http.MethodDelete { w.WriteHeader(405); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
	w.WriteHeader(204)
}

// Admin: webhook deliveries list
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	if r.Method != http.MethodGet { w.WriteHeader(405); return }
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
	if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// Admin run metrics per network and algorithm
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/run-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	networkID := r.URL.Query().Get("networkId")
	if networkID == "" { writeProblem(w, 400, "Missing networkId", "", r.URL.Path); return }
	algo := r.URL.Query().Get("algo")
	// Prefer DB metrics; fallback to in-memory
	items, err := s.Store.ListRunMetrics(r.Context(), p.Tenant, networkID, algo)
	if err != nil || len(items) == 0 {
		ms := alns.GetMetrics(p.Tenant, networkID)
		i2 := []map[string]any{}
		for a, m := range ms {
			if algo != "" && a != algo { continue }
			rec := metricsMap(m)
			rec["algo"] = a
			i2 = append(i2, rec)
		}
		items = i2
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
