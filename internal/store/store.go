package store

import (
	"context"
	"errors"
	"time"

	"linerd/internal/model"
)

// ErrNotFound is returned when a tenant-scoped lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface used by the API server.
type Store interface {
	// Networks
	CreateNetwork(ctx context.Context, tenantID string, in model.NetworkIn) (model.NetworkOut, error)
	GetNetwork(ctx context.Context, tenantID, id string) (model.NetworkOut, error)
	ListNetworks(ctx context.Context, tenantID, cursor string, limit int) ([]model.NetworkOut, string, error)

	// Design runs
	SaveDesignRun(ctx context.Context, run model.DesignRun) error
	GetDesignRun(ctx context.Context, tenantID, id string) (model.DesignRun, error)
	ListDesignRuns(ctx context.Context, tenantID, networkID, status, cursor string, limit int) ([]model.DesignRun, string, error)

	// Solver config overrides
	GetDesignConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveDesignConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)

	// Run metrics
	SaveRunMetrics(ctx context.Context, tenantID, networkID, algo string, metrics map[string]any) error
	ListRunMetrics(ctx context.Context, tenantID, networkID, algo string) ([]map[string]any, error)
}
