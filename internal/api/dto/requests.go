package dto

import (
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// ReconcileRequest is the request body for a reconciliation run.
type ReconcileRequest struct {
	TenantID  string              `json:"tenant_id"`
	EventType string              `json:"event_type"` // "batch" (default), "tx_created", "doc_created"
	DryRun    bool                `json:"dry_run"`
	Debug     bool                `json:"debug"`
	Now       *time.Time          `json:"now,omitempty"`
	Docs      []model.Doc         `json:"docs"`
	Txs       []model.Tx          `json:"txs"`
	Limits    *LimitsRequest      `json:"limits,omitempty"`
	Config    *tolerance.Override `json:"config,omitempty"`
}

// LimitsRequest caps the work of a single run. Zero keeps the server default.
type LimitsRequest struct {
	MaxDocs           int `json:"max_docs"`
	MaxTx             int `json:"max_tx"`
	MaxRelationsPerTx int `json:"max_relations_per_tx"`
}

// ToLimits converts the request limits.
func (l *LimitsRequest) ToLimits() tolerance.Limits {
	if l == nil {
		return tolerance.Limits{}
	}
	return tolerance.Limits{
		MaxDocs:           l.MaxDocs,
		MaxTx:             l.MaxTx,
		MaxRelationsPerTx: l.MaxRelationsPerTx,
	}
}

// ImportHistoryRequest is the request body for importing transaction history.
type ImportHistoryRequest struct {
	Txs []model.Tx `json:"txs"`
}
