package dto

import "github.com/eshaffer321/docmatch-backend/internal/application/pipeline"

// StartJobResponse is returned when a background run is started.
type StartJobResponse struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id,omitempty"`
	Status   string `json:"status"`
}

// JobResponse represents a background run's status.
type JobResponse struct {
	JobID       string           `json:"job_id"`
	TenantID    string           `json:"tenant_id,omitempty"`
	Status      string           `json:"status"`
	DryRun      bool             `json:"dry_run"`
	StartedAt   string           `json:"started_at"`
	CompletedAt *string          `json:"completed_at,omitempty"`
	Progress    ProgressResponse `json:"progress"`
	Output      *pipeline.Output `json:"output,omitempty"`
	Error       *string          `json:"error,omitempty"`
}

// ProgressResponse represents real-time progress.
type ProgressResponse struct {
	CurrentPhase string `json:"current_phase"`
	Docs         int    `json:"docs"`
	Txs          int    `json:"txs"`
	Decisions    int    `json:"decisions"`
	LastUpdate   string `json:"last_update"`
}

// JobListResponse lists background runs.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}
