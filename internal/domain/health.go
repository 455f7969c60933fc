package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// PredictionMetrics is returned by GET /v1/metrics/prediction.
type PredictionMetrics struct {
	TotalCalls   int64   `json:"totalCalls"`
	Succeeded    int64   `json:"succeeded"`
	Empty        int64   `json:"empty"`
	Failed       int64   `json:"failed"`
	FailureRate  float64 `json:"failureRate"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	CacheHitRate float64 `json:"cacheHitRate"`
	CircuitState string  `json:"circuitState"`
	Period       string  `json:"period"`
}
