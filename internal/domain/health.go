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

// GenerationMetrics is returned by GET /v1/metrics/generation.
type GenerationMetrics struct {
	TotalGenerations    int64   `json:"totalGenerations"`
	FailedGenerations   int64   `json:"failedGenerations"`
	ErrorRate           float64 `json:"errorRate"`
	CreditsDeducted     int64   `json:"creditsDeducted"`
	CreditsGranted      int64   `json:"creditsGranted"`
	ExportsSent         int64   `json:"exportsSent"`
	ExportsFailed       int64   `json:"exportsFailed"`
	AvgTokensPerRequest float64 `json:"avgTokensPerRequest"`
	EstimatedCostUsd    float64 `json:"estimatedCostUsd"`
	SessionCacheHitRate float64 `json:"sessionCacheHitRate"`
	Period              string  `json:"period"`
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
