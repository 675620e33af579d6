package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"linerd/internal/model"
	"linerd/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3}
	id, err := rs.Memory.EnqueueWebhook(context.Background(), "t1", "", "design.completed", srv.URL, "secret", []byte(`{"id":"evt1"}`))
	if err != nil || id == "" {
		t.Fatalf("enqueue failed: %v", err)
	}

	w.processOnce()

	if gotSig == "" || gotType != "design.completed" {
		t.Fatalf("missing signature/type headers: sig=%q type=%q", gotSig, gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature does not verify over body %q", gotBody)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_Fail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 1}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "t1", "", "design.failed", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) == 0 {
		t.Fatalf("expected fail recorded")
	}
}

func TestWorkerProcessOnce_RetrySchedules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(503) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 5}
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "t1", "", "design.completed", srv.URL, "", []byte(`{}`))
	w.processOnce()
	if len(rs.fails) != 0 {
		t.Fatalf("should not fail before MaxAttempts: %+v", rs.fails)
	}
	if len(rs.marks) != 1 || rs.marks[0].Success {
		t.Fatalf("expected one non-success mark: %+v", rs.marks)
	}
	// rescheduled into the future, not due immediately
	if due, _ := rs.Memory.FetchDueWebhookDeliveries(context.Background(), 10); len(due) != 0 {
		t.Fatal("delivery due again immediately after retry")
	}
}

func TestSignAndVerifyHMAC(t *testing.T) {
	body := []byte(`{"type":"design.completed"}`)
	sig := SignHMAC("shh", body)
	if !VerifyHMAC("shh", body, sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatal("wrong secret accepted")
	}
	if VerifyHMAC("shh", []byte(`{}`), sig) {
		t.Fatal("tampered body accepted")
	}
	if VerifyHMAC("shh", body, "zz") {
		t.Fatal("non-hex signature accepted")
	}
}

func TestPublisherEmitEnqueuesPerSubscription(t *testing.T) {
	m := store.NewMemory()
	p := NewPublisher(m)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := m.CreateSubscription(ctx, subscriptionReq("t1", "design.completed")); err != nil {
			t.Fatalf("sub: %v", err)
		}
	}
	p.Emit(ctx, "t1", "design.completed", map[string]any{"runId": "r1"})
	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	if err != nil || len(due) != 2 {
		t.Fatalf("expected 2 deliveries, got %d (%v)", len(due), err)
	}
	p.Emit(ctx, "t1", "design.failed", nil)
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatal("unsubscribed event enqueued deliveries")
	}
}

func subscriptionReq(tenant, event string) model.SubscriptionRequest {
	return model.SubscriptionRequest{TenantID: tenant, URL: "https://example.invalid/hook", Events: []string{event}, Secret: "s"}
}
