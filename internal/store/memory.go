package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"linerd/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	networks map[string]model.NetworkOut // id -> network
	netTen   map[string][]string         // tenant -> network ids
	runs     map[string]model.DesignRun  // id -> run
	runTen   map[string][]string         // tenant -> run ids
	cfg      map[string]map[string]any   // tenant -> solver config
	subs     map[string][]model.Subscription
	// Webhooks queue state
	deliveries         map[string]*memDelivery
	deliveriesByTenant map[string][]string
	metrics            map[string][]map[string]any // tenant/network -> records
}

func NewMemory() *Memory {
	return &Memory{
		networks:           map[string]model.NetworkOut{},
		netTen:             map[string][]string{},
		runs:               map[string]model.DesignRun{},
		runTen:             map[string][]string{},
		cfg:                map[string]map[string]any{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		metrics:            map[string][]map[string]any{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreateNetwork(ctx context.Context, tenantID string, in model.NetworkIn) (model.NetworkOut, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	id := uuid.New().String()
	out := model.NetworkOut{ID: id, TenantID: tenantID, Name: in.Name, NumPorts: len(in.Ports), NumODs: len(in.ODPairs), Spec: in}
	if len(in.Ports) == 0 { out.NumPorts = len(in.Dist) }
	m.networks[id] = out
	m.netTen[tenantID] = append(m.netTen[tenantID], id)
	return out, nil
}

func (m *Memory) GetNetwork(ctx context.Context, tenantID, id string) (model.NetworkOut, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	n, ok := m.networks[id]
	if !ok || n.TenantID != tenantID { return model.NetworkOut{}, ErrNotFound }
	return n, nil
}

func (m *Memory) ListNetworks(ctx context.Context, tenantID, cursor string, limit int) ([]model.NetworkOut, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	ids := m.netTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor { start = i + 1; break }
		}
	}
	if limit <= 0 { limit = 100 }
	out := []model.NetworkOut{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.networks[ids[i]])
		next = ids[i]
	}
	if start+len(out) >= len(ids) { next = "" }
	return out, next, nil
}

func (m *Memory) SaveDesignRun(ctx context.Context, run model.DesignRun) error {
	m.mu.Lock(); defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.runTen[run.TenantID] = append(m.runTen[run.TenantID], run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetDesignRun(ctx context.Context, tenantID, id string) (model.DesignRun, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.TenantID != tenantID { return model.DesignRun{}, ErrNotFound }
	return r, nil
}

func (m *Memory) ListDesignRuns(ctx context.Context, tenantID, networkID, status, cursor string, limit int) ([]model.DesignRun, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	ids := m.runTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor { start = i + 1; break }
		}
	}
	if limit <= 0 { limit = 100 }
	out := []model.DesignRun{}
	var next string
	i := start
	for ; i < len(ids) && len(out) < limit; i++ {
		r := m.runs[ids[i]]
		if networkID != "" && r.NetworkID != networkID { continue }
		if status != "" && r.Status != status { continue }
		out = append(out, r)
		next = ids[i]
	}
	if i >= len(ids) { next = "" }
	return out, next, nil
}

func (m *Memory) GetDesignConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	cfg, ok := m.cfg[tenantID]
	if !ok { return map[string]any{}, nil }
	out := map[string]any{}
	for k, v := range cfg { out[k] = v }
	return out, nil
}

func (m *Memory) SaveDesignConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock(); defer m.mu.Unlock()
	cp := map[string]any{}
	for k, v := range cfg { cp[k] = v }
	m.cfg[tenantID] = cp
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	sub := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], sub)
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType { out = append(out, s); break }
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	subs := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i, s := range subs {
			if s.ID == cursor { start = i + 1; break }
		}
	}
	if limit <= 0 { limit = 100 }
	out := []model.Subscription{}
	var next string
	for i := start; i < len(subs) && len(out) < limit; i++ {
		out = append(out, subs[i])
		next = subs[i].ID
	}
	if start+len(out) >= len(subs) { next = "" }
	return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	subs := m.subs[tenantID]
	for i, s := range subs {
		if s.ID == id {
			m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 50 }
	now := time.Now()
	due := []*memDelivery{}
	for _, d := range m.deliveries {
		if d.Status == "pending" && !d.NextAttemptAt.After(now) { due = append(due, d) }
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	out := []WebhookDelivery{}
	for _, d := range due {
		if len(out) >= limit { break }
		d.Attempts++
		out = append(out, d.WebhookDelivery)
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok { return ErrNotFound }
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	d.LastError = lastError
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt }
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok { return ErrNotFound }
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	ids := m.deliveriesByTenant[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor { start = i + 1; break }
		}
	}
	if limit <= 0 { limit = 100 }
	out := []map[string]any{}
	var next string
	i := start
	for ; i < len(ids) && len(out) < limit; i++ {
		d := m.deliveries[ids[i]]
		if status != "" && d.Status != status { continue }
		out = append(out, map[string]any{
			"id": d.ID, "eventType": d.EventType, "url": d.URL, "status": d.Status,
			"attempts": d.Attempts, "responseCode": d.ResponseCode, "lastError": d.LastError,
		})
		next = d.ID
	}
	if i >= len(ids) { next = "" }
	return out, next, nil
}

func (m *Memory) SaveRunMetrics(ctx context.Context, tenantID, networkID, algo string, metrics map[string]any) error {
	m.mu.Lock(); defer m.mu.Unlock()
	key := tenantID + "/" + networkID
	rec := map[string]any{"algo": algo, "recordedAt": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range metrics { rec[k] = v }
	m.metrics[key] = append(m.metrics[key], rec)
	return nil
}

func (m *Memory) ListRunMetrics(ctx context.Context, tenantID, networkID, algo string) ([]map[string]any, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []map[string]any{}
	for _, rec := range m.metrics[tenantID+"/"+networkID] {
		if algo != "" && rec["algo"] != algo { continue }
		out = append(out, rec)
	}
	return out, nil
}
