package httpserver

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// CronResponse reports a successful workflow tick.
type CronResponse struct {
	Success   bool   `json:"success"`
	Action    string `json:"action"`
	RunID     string `json:"runId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
