package dtos

const (
	APIStatusOk    = "OK"
	APIStatusError = "ERROR"
)

// APIResponse is the standard envelope for mutation/trigger endpoints.
type APIResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ResponseTime string `json:"response_time,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// ServiceStatus reports one dependency inside the health check response.
type ServiceStatus struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// HealthCheckResponse is returned by GET /healthCheck.
type HealthCheckResponse struct {
	Status   string                   `json:"status"`
	Uptime   string                   `json:"uptime"`
	Services map[string]ServiceStatus `json:"services"`
}

// ReconcileResult counts the outcome of one reconciliation pass.
type ReconcileResult struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ImportResult counts the outcome of a CSV trip import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped_duplicates_or_errors"`
}

// GeocodeStatus reports how many trips still await reverse geocoding.
type GeocodeStatus struct {
	Pending int `json:"pending"`
	Total   int `json:"total"`
}
