package projector

import (
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// AuditRecord is the trace of one decision, written whether or not the
// decision was persistable.
type AuditRecord struct {
	TenantID     string             `json:"tenant_id"`
	RunID        string             `json:"run_id,omitempty"`
	GroupID      string             `json:"group_id,omitempty"`
	State        model.MatchState   `json:"state"`
	RelationType model.RelationType `json:"relation_type"`
	TxIDs        []string           `json:"tx_ids"`
	DocIDs       []string           `json:"doc_ids"`
	Confidence   float64            `json:"confidence"`
	ReasonCodes  []string           `json:"reason_codes"`
	Inputs       map[string]any     `json:"inputs,omitempty"`
	MatchedBy    model.MatchedBy    `json:"matched_by"`
	Persistable  bool               `json:"persistable"`
	RejectReason string             `json:"reject_reason,omitempty"`
}

// ToAuditRecord builds the audit record for d.
func ToAuditRecord(d model.MatchDecision) AuditRecord {
	c := d.Clone()
	rec := AuditRecord{
		TenantID:     c.TenantID(),
		GroupID:      c.MatchGroupID,
		State:        c.State,
		RelationType: c.RelationType,
		TxIDs:        sortedUnique(c.TxIDs),
		DocIDs:       sortedUnique(c.DocIDs),
		Confidence:   c.Confidence,
		ReasonCodes:  c.ReasonCodes,
		Inputs:       c.Inputs,
		MatchedBy:    c.MatchedBy,
		Persistable:  true,
	}
	if c.Inputs != nil {
		rec.RunID, _ = c.Inputs[model.InputRunID].(string)
	}
	if err := AssertDecisionPersistable(d); err != nil {
		rec.Persistable = false
		rec.RejectReason = err.Error()
	}
	return rec
}
