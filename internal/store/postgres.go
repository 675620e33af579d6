package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"linerd/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir executes every .sql file in dir in lexical order.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil { return err }
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil { return err }
		if _, err := p.db.Exec(string(body)); err != nil { return err }
	}
	return nil
}

func (p *Postgres) CreateNetwork(ctx context.Context, tenantID string, in model.NetworkIn) (model.NetworkOut, error) {
	id := uuid.New().String()
	spec, err := json.Marshal(in)
	if err != nil { return model.NetworkOut{}, err }
	numPorts := len(in.Ports)
	if numPorts == 0 { numPorts = len(in.Dist) }
	_, err = p.db.ExecContext(ctx, `INSERT INTO networks (id, tenant_id, name, num_ports, num_ods, spec) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, tenantID, nullIfEmpty(in.Name), numPorts, len(in.ODPairs), spec)
	if err != nil { return model.NetworkOut{}, err }
	return p.GetNetwork(ctx, tenantID, id)
}

func (p *Postgres) GetNetwork(ctx context.Context, tenantID, id string) (model.NetworkOut, error) {
	var out model.NetworkOut
	var name sql.NullString
	var spec []byte
	row := p.db.QueryRowContext(ctx, `SELECT id::text, name, num_ports, num_ods, spec FROM networks WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err := row.Scan(&out.ID, &name, &out.NumPorts, &out.NumODs, &spec); err != nil {
		if errors.Is(err, sql.ErrNoRows) { return out, ErrNotFound }
		return out, err
	}
	out.TenantID = tenantID
	out.Name = name.String
	if err := json.Unmarshal(spec, &out.Spec); err != nil { return out, err }
	return out, nil
}

func (p *Postgres) ListNetworks(ctx context.Context, tenantID, cursor string, limit int) ([]model.NetworkOut, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, num_ports, num_ods, spec FROM networks WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, name, num_ports, num_ods, spec FROM networks WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.NetworkOut{}
	var last string
	for rows.Next() {
		var n model.NetworkOut
		var name sql.NullString
		var spec []byte
		if err := rows.Scan(&n.ID, &name, &n.NumPorts, &n.NumODs, &spec); err != nil { return nil, "", err }
		n.TenantID = tenantID
		n.Name = name.String
		if err := json.Unmarshal(spec, &n.Spec); err != nil { return nil, "", err }
		out = append(out, n)
		last = n.ID
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) SaveDesignRun(ctx context.Context, run model.DesignRun) error {
	routes, err := json.Marshal(run.Routes)
	if err != nil { return err }
	metrics, err := json.Marshal(run.Metrics)
	if err != nil { return err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO design_runs (id, tenant_id, network_id, status, objective, total_cost, best_value, routes, metrics, error, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET status=$4, total_cost=$6, best_value=$7, routes=$8, metrics=$9, error=$10, finished_at=$11`,
		run.ID, run.TenantID, run.NetworkID, run.Status, run.Objective, run.TotalCost, run.BestValue, routes, metrics, nullIfEmpty(run.Error), nullIfEmpty(run.FinishedAt))
	return err
}

func (p *Postgres) GetDesignRun(ctx context.Context, tenantID, id string) (model.DesignRun, error) {
	var r model.DesignRun
	var routes, metrics []byte
	var errMsg, finished sql.NullString
	row := p.db.QueryRowContext(ctx, `SELECT id::text, network_id::text, status, objective, total_cost, best_value, routes, metrics, error, created_at::text, finished_at FROM design_runs WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err := row.Scan(&r.ID, &r.NetworkID, &r.Status, &r.Objective, &r.TotalCost, &r.BestValue, &routes, &metrics, &errMsg, &r.CreatedAt, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) { return r, ErrNotFound }
		return r, err
	}
	r.TenantID = tenantID
	r.Error = errMsg.String
	r.FinishedAt = finished.String
	if len(routes) > 0 {
		if err := json.Unmarshal(routes, &r.Routes); err != nil { return r, err }
	}
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &r.Metrics); err != nil { return r, err }
	}
	return r, nil
}

func (p *Postgres) ListDesignRuns(ctx context.Context, tenantID, networkID, status, cursor string, limit int) ([]model.DesignRun, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	q := `SELECT id::text FROM design_runs WHERE tenant_id=$1`
	args := []any{tenantID}
	if networkID != "" {
		args = append(args, networkID)
		q += ` AND network_id=$` + itoa(len(args))
	}
	if status != "" {
		args = append(args, status)
		q += ` AND status=$` + itoa(len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += ` AND id::text > $` + itoa(len(args))
	}
	args = append(args, limit)
	q += ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil { return nil, "", err }
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil { return nil, "", err }
		ids = append(ids, id)
	}
	out := []model.DesignRun{}
	var last string
	for _, id := range ids {
		r, err := p.GetDesignRun(ctx, tenantID, id)
		if err != nil { return nil, "", err }
		out = append(out, r)
		last = id
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) GetDesignConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	var body []byte
	row := p.db.QueryRowContext(ctx, `SELECT cfg FROM design_config WHERE tenant_id=$1`, tenantID)
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) { return map[string]any{}, nil }
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(body, &out); err != nil { return nil, err }
	return out, nil
}

func (p *Postgres) SaveDesignConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	body, err := json.Marshal(cfg)
	if err != nil { return err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO design_config (tenant_id, cfg) VALUES ($1,$2) ON CONFLICT (tenant_id) DO UPDATE SET cfg=$2`, tenantID, body)
	return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	events, err := json.Marshal(req.Events)
	if err != nil { return model.Subscription{}, err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
		id, req.TenantID, req.URL, events, req.Secret)
	if err != nil { return model.Subscription{}, err }
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions WHERE tenant_id=$1`, tenantID)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil { return nil, err }
		s.TenantID = tenantID
		if err := json.Unmarshal(events, &s.Events); err != nil { return nil, err }
		for _, e := range s.Events {
			if e == eventType { out = append(out, s); break }
		}
	}
	return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events); err != nil { return nil, "", err }
		s.TenantID = tenantID
		if err := json.Unmarshal(events, &s.Events); err != nil { return nil, "", err }
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`,
		id, tenantID, subscriptionID, eventType, url, secret, payload)
	return id, err
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 { limit = 50 }
	rows, err := p.db.QueryContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1
		WHERE id IN (SELECT id FROM webhook_deliveries WHERE status='pending' AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1 FOR UPDATE SKIP LOCKED)
		RETURNING id::text, tenant_id, subscription_id::text, event_type, url, secret, payload, status, attempts`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
		out = append(out, d)
	}
	return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), last_error=NULL, response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`, id, nextAttemptAt, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	q := `SELECT id::text, event_type, url, status, attempts, COALESCE(response_code,0), COALESCE(last_error,'') FROM webhook_deliveries WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		args = append(args, status)
		q += ` AND status=$` + itoa(len(args))
	}
	if cursor != "" {
		args = append(args, cursor)
		q += ` AND id::text > $` + itoa(len(args))
	}
	args = append(args, limit)
	q += ` ORDER BY id LIMIT $` + itoa(len(args))
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, eventType, url, st, lastErr string
		var attempts, code int
		if err := rows.Scan(&id, &eventType, &url, &st, &attempts, &code, &lastErr); err != nil { return nil, "", err }
		out = append(out, map[string]any{"id": id, "eventType": eventType, "url": url, "status": st, "attempts": attempts, "responseCode": code, "lastError": lastErr})
		last = id
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) SaveRunMetrics(ctx context.Context, tenantID, networkID, algo string, metrics map[string]any) error {
	body, err := json.Marshal(metrics)
	if err != nil { return err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO run_metrics (id, tenant_id, network_id, algo, metrics) VALUES ($1,$2,$3,$4,$5)`,
		uuid.New().String(), tenantID, networkID, algo, body)
	return err
}

func (p *Postgres) ListRunMetrics(ctx context.Context, tenantID, networkID, algo string) ([]map[string]any, error) {
	q := `SELECT algo, metrics, recorded_at::text FROM run_metrics WHERE tenant_id=$1 AND network_id=$2`
	args := []any{tenantID, networkID}
	if algo != "" {
		args = append(args, algo)
		q += ` AND algo=$3`
	}
	q += ` ORDER BY recorded_at`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var a, recorded string
		var body []byte
		if err := rows.Scan(&a, &body, &recorded); err != nil { return nil, err }
		rec := map[string]any{}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rec); err != nil { return nil, err }
		}
		rec["algo"] = a
		rec["recordedAt"] = recorded
		out = append(out, rec)
	}
	return out, nil
}

// Helpers
func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func itoa(n int) string { return strconv.Itoa(n) }
