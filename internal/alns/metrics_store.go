package alns

import "sync"

type metricsKey struct {
	Tenant    string
	NetworkID string
	Algo      string
}

var (
	metricsMu    sync.Mutex
	metricsStore = map[metricsKey]Metrics{}
)

// RecordMetrics keeps the latest run metrics per tenant/network/algorithm.
func RecordMetrics(tenant, networkID, algo string, m Metrics) {
	metricsMu.Lock()
	metricsStore[metricsKey{Tenant: tenant, NetworkID: networkID, Algo: algo}] = m
	metricsMu.Unlock()
}

// GetMetrics returns recorded metrics for a tenant/network, keyed by algorithm.
func GetMetrics(tenant, networkID string) map[string]Metrics {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	out := map[string]Metrics{}
	for k, v := range metricsStore {
		if k.Tenant == tenant && k.NetworkID == networkID {
			out[k.Algo] = v
		}
	}
	return out
}
