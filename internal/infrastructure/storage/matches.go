package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/projector"
)

// ApplyMatches persists accepted decisions. Decisions that fail validation
// are skipped; they still reach the audit trail through Audit.
func (s *Storage) ApplyMatches(ctx context.Context, decisions []model.MatchDecision) error {
	return s.applyDecisions(ctx, decisions, "apply")
}

// SaveSuggestions persists suggested and ambiguous decisions as groups and
// edges. Their entities keep their link state.
func (s *Storage) SaveSuggestions(ctx context.Context, decisions []model.MatchDecision) error {
	return s.applyDecisions(ctx, decisions, "suggest")
}

func (s *Storage) applyDecisions(ctx context.Context, decisions []model.MatchDecision, mode string) error {
	if len(decisions) == 0 {
		return nil
	}

	var ops []projector.Op
	skipped := 0
	for _, d := range decisions {
		decisionOps, err := projector.ToApplyOps(d)
		if err != nil {
			s.logger.Warn("Skipping non-persistable decision",
				"mode", mode,
				"group_id", d.MatchGroupID,
				"tx_ids", d.TxIDs,
				"doc_ids", d.DocIDs,
				"error", err,
			)
			skipped++
			continue
		}
		ops = append(ops, decisionOps...)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			if err := applyOp(ctx, tx, op); err != nil {
				return fmt.Errorf("failed to apply %s op: %w", op.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Persisted decisions", "mode", mode, "decisions", len(decisions), "ops", len(ops), "skipped", skipped)
	return nil
}

// applyOp executes a single upsert. Every statement is keyed on its
// composite primary key so replaying an op converges.
func applyOp(ctx context.Context, tx *sql.Tx, op projector.Op) error {
	var err error
	switch op.Kind {
	case projector.OpUpsertEdge:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_edges (tenant_id, group_id, tx_id, doc_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(tenant_id, group_id, tx_id, doc_id) DO NOTHING
		`, op.TenantID, op.GroupID, op.TxID, op.DocID)

	case projector.OpUpsertGroup:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_groups
			(tenant_id, group_id, state, relation_type, tx_ids, doc_ids, confidence, reason_codes, matched_by, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(tenant_id, group_id) DO UPDATE SET
				state = excluded.state,
				relation_type = excluded.relation_type,
				tx_ids = excluded.tx_ids,
				doc_ids = excluded.doc_ids,
				confidence = excluded.confidence,
				reason_codes = excluded.reason_codes,
				matched_by = excluded.matched_by,
				updated_at = CURRENT_TIMESTAMP
		`, op.TenantID, op.GroupID, string(op.State), string(op.RelationType),
			marshalList(op.TxIDs), marshalList(op.DocIDs), op.Confidence,
			marshalList(op.ReasonCodes), string(op.MatchedBy))

	case projector.OpUpdateDoc:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO doc_links (tenant_id, doc_id, link_state, open_amount, group_id, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(tenant_id, doc_id) DO UPDATE SET
				link_state = excluded.link_state,
				open_amount = COALESCE(excluded.open_amount, doc_links.open_amount),
				group_id = excluded.group_id,
				updated_at = CURRENT_TIMESTAMP
		`, op.TenantID, op.DocID, string(op.LinkState), nullDecimal(op.OpenAmount), op.GroupID)

	case projector.OpUpdateTx:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tx_links (tenant_id, tx_id, link_state, group_id, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(tenant_id, tx_id) DO UPDATE SET
				link_state = excluded.link_state,
				group_id = excluded.group_id,
				updated_at = CURRENT_TIMESTAMP
		`, op.TenantID, op.TxID, string(op.LinkState), op.GroupID)

	case projector.OpUpdateInvoiceLineItem:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (tenant_id, doc_id, line_item_key, tx_id, group_id, amount, open_amount, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(tenant_id, doc_id, line_item_key) DO UPDATE SET
				tx_id = excluded.tx_id,
				group_id = excluded.group_id,
				amount = excluded.amount,
				open_amount = excluded.open_amount,
				updated_at = CURRENT_TIMESTAMP
		`, op.TenantID, op.DocID, op.LineItemKey, op.TxID, op.GroupID,
			decimalOrZero(op.Amount).String(), decimalOrZero(op.OpenAmount).String())

	default:
		err = fmt.Errorf("unknown op kind %q", op.Kind)
	}
	return err
}

// Audit records every decision with its persistability verdict. Records are
// unique per run and decision, so a retried run does not duplicate them.
func (s *Storage) Audit(ctx context.Context, decisions []model.MatchDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO match_audit
			(run_id, tenant_id, decision_key, group_id, state, relation_type, tx_ids, doc_ids,
			 confidence, reason_codes, inputs, matched_by, persistable, reject_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, decision_key) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare audit insert: %w", err)
		}
		defer stmt.Close()

		for _, d := range decisions {
			rec := projector.ToAuditRecord(d)
			inputs, err := json.Marshal(rec.Inputs)
			if err != nil {
				return fmt.Errorf("failed to encode audit inputs: %w", err)
			}
			_, err = stmt.ExecContext(ctx,
				rec.RunID,
				rec.TenantID,
				auditKey(rec),
				rec.GroupID,
				string(rec.State),
				string(rec.RelationType),
				marshalList(rec.TxIDs),
				marshalList(rec.DocIDs),
				rec.Confidence,
				marshalList(rec.ReasonCodes),
				string(inputs),
				string(rec.MatchedBy),
				rec.Persistable,
				rec.RejectReason,
			)
			if err != nil {
				return fmt.Errorf("failed to insert audit record: %w", err)
			}
		}
		return nil
	})
}

// ListAudit returns audit records, newest first
func (s *Storage) ListAudit(ctx context.Context, filters AuditFilters) ([]projector.AuditRecord, error) {
	if filters.Limit <= 0 {
		filters.Limit = 100
	}

	var where []string
	var args []any
	if filters.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, filters.TenantID)
	}
	if filters.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filters.RunID)
	}
	query := `
		SELECT run_id, tenant_id, group_id, state, relation_type, tx_ids, doc_ids,
		       confidence, reason_codes, inputs, matched_by, persistable, reject_reason
		FROM match_audit`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, filters.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit: %w", err)
	}
	defer rows.Close()

	var out []projector.AuditRecord
	for rows.Next() {
		var rec projector.AuditRecord
		var state, relation, txIDs, docIDs, reasons, inputs, matchedBy string
		if err := rows.Scan(
			&rec.RunID,
			&rec.TenantID,
			&rec.GroupID,
			&state,
			&relation,
			&txIDs,
			&docIDs,
			&rec.Confidence,
			&reasons,
			&inputs,
			&matchedBy,
			&rec.Persistable,
			&rec.RejectReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.State = model.MatchState(state)
		rec.RelationType = model.RelationType(relation)
		rec.TxIDs = unmarshalList(txIDs)
		rec.DocIDs = unmarshalList(docIDs)
		rec.ReasonCodes = unmarshalList(reasons)
		rec.MatchedBy = model.MatchedBy(matchedBy)
		if inputs != "" && inputs != "null" {
			_ = json.Unmarshal([]byte(inputs), &rec.Inputs)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// auditKey identifies a decision within a run.
func auditKey(rec projector.AuditRecord) string {
	return string(rec.State) + "|" + string(rec.RelationType) + "|" +
		strings.Join(rec.TxIDs, ",") + "|" + strings.Join(rec.DocIDs, ",")
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
