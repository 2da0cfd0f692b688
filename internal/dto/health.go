package dto

// HealthResponse is the body of the health, liveness and readiness probes.
// Checks maps each dependency of the readiness probe to "ok" or the error it
// reported.
type HealthResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}
