package dto

import "github.com/eshaffer321/summons-reconcile/internal/adapters/loader"

// StartReconcileRequest is the request body for starting a reconciliation.
// Dates are YYYY-MM-DD; amounts may be numbers or decimal strings.
type StartReconcileRequest struct {
	Source  string         `json:"source"`
	Targets []loader.Entry `json:"targets" binding:"required,min=1"`
	Pool    []loader.Entry `json:"pool"`
}

// StartReconcileResponse is returned when a reconciliation is accepted.
type StartReconcileResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ReconcileStatusResponse represents the current job.
type ReconcileStatusResponse struct {
	JobID     string  `json:"job_id,omitempty"`
	State     string  `json:"state"`
	Progress  float64 `json:"progress"`
	StartedAt *string `json:"started_at,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// MessageResponse carries a human-readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
