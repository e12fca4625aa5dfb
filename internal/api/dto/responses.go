package dto

import (
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/projector"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// EdgeResponse is one tx-doc link of a group.
type EdgeResponse struct {
	TxID  string `json:"tx_id"`
	DocID string `json:"doc_id"`
}

// GroupResponse represents a persisted match group.
type GroupResponse struct {
	TenantID     string         `json:"tenant_id"`
	GroupID      string         `json:"group_id"`
	State        string         `json:"state"`
	RelationType string         `json:"relation_type"`
	TxIDs        []string       `json:"tx_ids"`
	DocIDs       []string       `json:"doc_ids"`
	Confidence   float64        `json:"confidence"`
	ReasonCodes  []string       `json:"reason_codes"`
	MatchedBy    string         `json:"matched_by"`
	UpdatedAt    string         `json:"updated_at"`
	Edges        []EdgeResponse `json:"edges,omitempty"`
}

// GroupListResponse is a paginated list of groups.
type GroupListResponse struct {
	Groups     []GroupResponse `json:"groups"`
	TotalCount int             `json:"total_count"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
}

// AuditListResponse lists audit records.
type AuditListResponse struct {
	Records []projector.AuditRecord `json:"records"`
	Count   int                     `json:"count"`
}

// StatsResponse holds aggregate statistics.
type StatsResponse struct {
	TotalGroups    int            `json:"total_groups"`
	GroupsByState  map[string]int `json:"groups_by_state"`
	TotalEdges     int            `json:"total_edges"`
	LinkedDocs     int            `json:"linked_docs"`
	PartialDocs    int            `json:"partial_docs"`
	LinkedTxs      int            `json:"linked_txs"`
	AuditRecords   int            `json:"audit_records"`
	HistoryTxCount int            `json:"history_tx_count"`
}

// RunResponse represents a recorded reconciliation run.
type RunResponse struct {
	RunID       string `json:"run_id"`
	TenantID    string `json:"tenant_id,omitempty"`
	EventType   string `json:"event_type"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at"`
	DryRun      bool   `json:"dry_run"`
	Docs        int    `json:"docs"`
	Txs         int    `json:"txs"`
	Accepted    int    `json:"accepted"`
	Suggested   int    `json:"suggested"`
	PrepassHits int    `json:"prepass_hits"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// RunListResponse lists recorded runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// ImportHistoryResponse reports how many transactions were stored.
type ImportHistoryResponse struct {
	Received int `json:"received"`
	Saved    int `json:"saved"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
