package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	ID             string  `json:"id"`
	Source         string  `json:"source"`
	Status         string  `json:"status"`
	TargetCount    int     `json:"target_count"`
	PoolCount      int     `json:"pool_count"`
	MatchedCount   int     `json:"matched_count"`
	UnmatchedCount int     `json:"unmatched_count"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	StartedAt      string  `json:"started_at"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	DurationMs     int64   `json:"duration_ms,omitempty"`
}

// RunListResponse is the response for listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// RecordResponse is one ledger record.
type RecordResponse struct {
	Label  string `json:"label"`
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// MatchResultResponse is the outcome for one target.
type MatchResultResponse struct {
	Target  RecordResponse   `json:"target"`
	Matched bool             `json:"matched"`
	Subset  []RecordResponse `json:"subset"`
}

// RunDetailResponse is a run with its per-target results.
type RunDetailResponse struct {
	RunResponse
	Results []MatchResultResponse `json:"results"`
}
