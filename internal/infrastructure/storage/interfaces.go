package storage

import (
	"context"
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/projector"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	model.MatchRepository
	HistoryRepository
	GroupRepository
	AuditRepository
	RunRepository
	Close() error
}

// HistoryRepository handles the transaction history used for subscription detection
type HistoryRepository interface {
	// SaveTransactions upserts transactions into the history
	SaveTransactions(ctx context.Context, txs []model.Tx) (int, error)
}

// GroupRepository reads persisted match groups
type GroupRepository interface {
	// ListGroups returns groups matching the given filters with pagination
	ListGroups(ctx context.Context, filters GroupFilters) (*GroupListResult, error)

	// GetGroup retrieves a group with its edges, nil when it does not exist
	GetGroup(ctx context.Context, tenantID, groupID string) (*MatchGroup, error)

	// GetStats returns aggregate statistics for a tenant (empty = all tenants)
	GetStats(ctx context.Context, tenantID string) (*Stats, error)
}

// AuditRepository reads the audit trail
type AuditRepository interface {
	// ListAudit returns audit records, newest first
	ListAudit(ctx context.Context, filters AuditFilters) ([]projector.AuditRecord, error)
}

// RunRepository handles reconciliation run tracking
type RunRepository interface {
	// SaveRun records a finished run
	SaveRun(ctx context.Context, run *RunRecord) error

	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetRun retrieves a run by id, nil when it does not exist
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
}

// GroupFilters defines filters for listing groups
type GroupFilters struct {
	TenantID string           // Filter by tenant (empty = all)
	State    model.MatchState // Filter by state (empty = all)
	TxID     string           // Only groups containing this transaction
	DocID    string           // Only groups containing this document
	Limit    int              // Max results (0 = default 50)
	Offset   int              // Pagination offset
}

// GroupListResult contains paginated group results
type GroupListResult struct {
	Groups     []MatchGroup `json:"groups"`
	TotalCount int          `json:"total_count"`
	Limit      int          `json:"limit"`
	Offset     int          `json:"offset"`
}

// AuditFilters defines filters for listing audit records
type AuditFilters struct {
	TenantID string
	RunID    string
	Limit    int // 0 = default 100
}

// MatchGroup is a persisted decision with its edges.
type MatchGroup struct {
	TenantID     string             `json:"tenant_id"`
	GroupID      string             `json:"group_id"`
	State        model.MatchState   `json:"state"`
	RelationType model.RelationType `json:"relation_type"`
	TxIDs        []string           `json:"tx_ids"`
	DocIDs       []string           `json:"doc_ids"`
	Confidence   float64            `json:"confidence"`
	ReasonCodes  []string           `json:"reason_codes"`
	MatchedBy    model.MatchedBy    `json:"matched_by"`
	Edges        []Edge             `json:"edges,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Edge links one transaction to one document within a group.
type Edge struct {
	TxID  string `json:"tx_id"`
	DocID string `json:"doc_id"`
}

// Stats holds aggregate statistics
type Stats struct {
	GroupsByState  map[model.MatchState]int `json:"groups_by_state"`
	TotalGroups    int                      `json:"total_groups"`
	TotalEdges     int                      `json:"total_edges"`
	LinkedDocs     int                      `json:"linked_docs"`
	PartialDocs    int                      `json:"partial_docs"`
	LinkedTxs      int                      `json:"linked_txs"`
	AuditRecords   int                      `json:"audit_records"`
	HistoryTxCount int                      `json:"history_tx_count"`
}

// RunRecord represents a reconciliation run
type RunRecord struct {
	RunID       string    `json:"run_id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	EventType   string    `json:"event_type,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DryRun      bool      `json:"dry_run"`
	Docs        int       `json:"docs"`
	Txs         int       `json:"txs"`
	Accepted    int       `json:"accepted"`
	Suggested   int       `json:"suggested"`
	PrepassHits int       `json:"prepass_hits"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}
