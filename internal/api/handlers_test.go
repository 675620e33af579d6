package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer()
	if err != nil { t.Fatalf("NewServer: %v", err) }
	return s
}

func adminReq(method, path string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "admin")
	return req
}

var demoNetwork = []byte(`{
	"name": "demo",
	"dist": [[0,2,3,4],[2,0,2,3],[3,2,0,2],[4,3,2,0]],
	"odPairs": [
		{"origin":0,"destination":2,"demand":100,"constant":5,"preference":-1},
		{"origin":1,"destination":3,"demand":50,"constant":5,"preference":-1}
	],
	"numRoutes": 2,
	"minRouteLength": 2,
	"maxRouteLength": 4
}`)

func createNetwork(t *testing.T, s *Server) string {
	t.Helper()
	rr := httptest.NewRecorder()
	s.NetworksHandler(rr, adminReq(http.MethodPost, "/v1/networks", demoNetwork))
	if rr.Code != http.StatusCreated { t.Fatalf("create network: %d %s", rr.Code, rr.Body.String()) }
	var out struct{ ID string `json:"id"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode network: %v", err) }
	return out.ID
}

func startRun(t *testing.T, s *Server, networkID string, extra map[string]any) string {
	t.Helper()
	body := map[string]any{"networkId": networkID, "maxIterations": 40, "timeBudgetMs": 2000, "seed": 7}
	for k, v := range extra { body[k] = v }
	b, _ := json.Marshal(body)
	rr := httptest.NewRecorder()
	s.DesignHandler(rr, adminReq(http.MethodPost, "/v1/design", b))
	if rr.Code != http.StatusAccepted { t.Fatalf("design: %d %s", rr.Code, rr.Body.String()) }
	var out struct{ RunID string `json:"runId"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode run: %v", err) }
	return out.RunID
}

func waitForRun(t *testing.T, s *Server, runID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rr := httptest.NewRecorder()
		s.DesignByIDHandler(rr, adminReq(http.MethodGet, "/v1/designs/"+runID, nil))
		if rr.Code != 200 { t.Fatalf("get run: %d", rr.Code) }
		var run map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil { t.Fatalf("decode run: %v", err) }
		if st, _ := run["status"].(string); st != "running" {
			return run
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
	return nil
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestNetworksCreateGetList(t *testing.T) {
	s := newTestServer(t)
	id := createNetwork(t, s)
	rr := httptest.NewRecorder()
	s.NetworkByIDHandler(rr, adminReq(http.MethodGet, "/v1/networks/"+id, nil))
	if rr.Code != 200 { t.Fatalf("get network: %d", rr.Code) }
	var n struct {
		NumPorts int `json:"numPorts"`
		NumODs   int `json:"numODs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &n); err != nil { t.Fatalf("decode: %v", err) }
	if n.NumPorts != 4 || n.NumODs != 2 { t.Fatalf("counts: %+v", n) }
	rr = httptest.NewRecorder()
	s.NetworksHandler(rr, adminReq(http.MethodGet, "/v1/networks?limit=5", nil))
	if rr.Code != 200 { t.Fatalf("list networks: %d", rr.Code) }
}

func TestNetworksRejectBadMatrix(t *testing.T) {
	s := newTestServer(t)
	bad := []byte(`{"dist":[[0,1],[2,0]],"odPairs":[{"origin":0,"destination":1,"demand":5}],"numRoutes":1}`)
	rr := httptest.NewRecorder()
	s.NetworksHandler(rr, adminReq(http.MethodPost, "/v1/networks", bad))
	if rr.Code != http.StatusBadRequest { t.Fatalf("asymmetric matrix accepted: %d", rr.Code) }
}

func TestDesignRunLifecycle(t *testing.T) {
	s := newTestServer(t)
	netID := createNetwork(t, s)
	runID := startRun(t, s, netID, nil)
	run := waitForRun(t, s, runID)
	if run["status"] != "completed" { t.Fatalf("run status: %+v", run["error"]) }
	routes, _ := run["routes"].([]any)
	if len(routes) == 0 { t.Fatal("no routes in completed run") }
	metrics, _ := run["metrics"].(map[string]any)
	if metrics["iterations"] == nil { t.Fatalf("missing metrics: %+v", metrics) }
	// list with filters
	rr := httptest.NewRecorder()
	s.DesignsHandler(rr, adminReq(http.MethodGet, "/v1/designs?networkId="+netID+"&status=completed", nil))
	if rr.Code != 200 { t.Fatalf("list designs: %d", rr.Code) }
	var lst struct{ Items []map[string]any `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &lst); err != nil { t.Fatalf("decode list: %v", err) }
	if len(lst.Items) != 1 { t.Fatalf("expected one completed run, got %d", len(lst.Items)) }
}

func TestDesignUnknownNetwork(t *testing.T) {
	s := newTestServer(t)
	b := []byte(`{"networkId":"missing"}`)
	rr := httptest.NewRecorder()
	s.DesignHandler(rr, adminReq(http.MethodPost, "/v1/design", b))
	if rr.Code != http.StatusNotFound { t.Fatalf("missing network: %d", rr.Code) }
}

func TestDesignRejectsViewer(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/design", bytes.NewReader([]byte(`{"networkId":"x"}`)))
	req.Header.Set("X-Tenant-Id", "t_test")
	req.Header.Set("X-Role", "viewer")
	rr := httptest.NewRecorder()
	s.DesignHandler(rr, req)
	if rr.Code != 403 { t.Fatalf("viewer should be forbidden: %d", rr.Code) }
}

func TestDesignConfigOverlay(t *testing.T) {
	s := newTestServer(t)
	put := []byte(`{"config":{"cooling":0.9,"maxIterations":123}}`)
	rr := httptest.NewRecorder()
	s.AdminDesignConfigHandler(rr, adminReq(http.MethodPut, "/v1/admin/design/config", put))
	if rr.Code != 200 { t.Fatalf("put config: %d %s", rr.Code, rr.Body.String()) }
	rr = httptest.NewRecorder()
	s.DesignConfigHandler(rr, adminReq(http.MethodGet, "/v1/design/config", nil))
	if rr.Code != 200 { t.Fatalf("get config: %d", rr.Code) }
	var out struct {
		Defaults struct {
			Cooling       float64 `json:"cooling"`
			MaxIterations int     `json:"maxIterations"`
			InitTemp      float64 `json:"initTemp"`
		} `json:"defaults"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode: %v", err) }
	if out.Defaults.Cooling != 0.9 || out.Defaults.MaxIterations != 123 {
		t.Fatalf("overlay not applied: %+v", out.Defaults)
	}
	if out.Defaults.InitTemp != 1.0 {
		t.Fatalf("builtin lost: %+v", out.Defaults)
	}
}

func TestAdminConfigRejectsBadObjective(t *testing.T) {
	s := newTestServer(t)
	put := []byte(`{"config":{"objective":"Profit"}}`)
	rr := httptest.NewRecorder()
	s.AdminDesignConfigHandler(rr, adminReq(http.MethodPut, "/v1/admin/design/config", put))
	if rr.Code != 400 { t.Fatalf("bad objective accepted: %d", rr.Code) }
}

func TestDesignCompletionEnqueuesWebhook(t *testing.T) {
	s := newTestServer(t)
	subBody := []byte(`{"url":"https://example.invalid/webhook","events":["design.completed"],"secret":"shh"}`)
	rr := httptest.NewRecorder()
	s.SubscriptionsHandler(rr, adminReq(http.MethodPost, "/v1/subscriptions", subBody))
	if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d %s", rr.Code, rr.Body.String()) }

	netID := createNetwork(t, s)
	runID := startRun(t, s, netID, nil)
	run := waitForRun(t, s, runID)
	if run["status"] != "completed" { t.Fatalf("run failed: %v", run["error"]) }

	rr = httptest.NewRecorder()
	s.WebhookDeliveriesHandler(rr, adminReq(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil))
	if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
	var dres struct{ Items []map[string]any `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
	if len(dres.Items) == 0 { t.Fatal("expected at least one delivery") }
	if et, _ := dres.Items[0]["eventType"].(string); et != "design.completed" {
		t.Fatalf("eventType: %+v", dres.Items[0])
	}
}

func TestRunMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	netID := createNetwork(t, s)
	runID := startRun(t, s, netID, nil)
	if run := waitForRun(t, s, runID); run["status"] != "completed" {
		t.Fatalf("run failed: %v", run["error"])
	}
	rr := httptest.NewRecorder()
	s.RunMetricsHandler(rr, adminReq(http.MethodGet, "/v1/admin/run-metrics?networkId="+netID, nil))
	if rr.Code != 200 { t.Fatalf("run metrics: %d", rr.Code) }
	var out struct{ Items []map[string]any `json:"items"` }
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil { t.Fatalf("decode: %v", err) }
	if len(out.Items) == 0 { t.Fatal("expected metrics items") }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
	hdr  http.Header
	buf  bytes.Buffer
	code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func TestDesignEventsSSE(t *testing.T) {
	s := newTestServer(t)
	netID := createNetwork(t, s)
	runID := startRun(t, s, netID, nil)
	waitForRun(t, s, runID)

	sseReq := adminReq(http.MethodGet, "/v1/designs/"+runID+"/events/stream", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sseReq = sseReq.WithContext(ctx)

	rec := &sseRecorder{}
	done := make(chan struct{})
	go func() {
		s.DesignByIDHandler(rec, sseReq)
		close(done)
	}()

	// Give the handler time to subscribe, then publish an event
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish(runID, SSEEvent{Type: "design.progress", Data: map[string]any{"runId": runID, "iteration": 10}})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if bytes.Contains(rec.buf.Bytes(), []byte("event: design.progress")) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !bytes.Contains(rec.buf.Bytes(), []byte("event: design.progress")) {
		t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
	}
	cancel()
	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("handler did not exit after cancel")
	}
}
