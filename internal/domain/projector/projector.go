// Package projector maps resolved decisions to idempotent persistence
// operations and audit records. It is pure: the same decision always
// yields the same operations.
package projector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// Validation errors returned by AssertDecisionPersistable.
var (
	ErrInvalidState    = errors.New("invalid decision state or relation type")
	ErrManyToManyFinal = errors.New("many_to_many decision cannot be final or partial")
	ErrMissingIDs      = errors.New("final or partial decision without tx or doc ids")
	ErrMissingTenant   = errors.New("decision without tenant_id")
)

// OpKind names a persistence operation.
type OpKind string

const (
	OpUpsertEdge            OpKind = "upsert_edge"
	OpUpsertGroup           OpKind = "upsert_group"
	OpUpdateDoc             OpKind = "update_doc"
	OpUpdateTx              OpKind = "update_tx"
	OpUpdateInvoiceLineItem OpKind = "update_invoice_line_item"
)

// Op is a single idempotent write. Which fields are set depends on Kind:
//   - upsert_edge: GroupID, TxID, DocID
//   - upsert_group: GroupID, State, RelationType, TxIDs, DocIDs, Confidence, ReasonCodes, MatchedBy
//   - update_doc: DocID, LinkState, OpenAmount (nil keeps the stored value)
//   - update_tx: TxID, LinkState
//   - update_invoice_line_item: DocID, LineItemKey, TxID, Amount, OpenAmount
type Op struct {
	Kind     OpKind `json:"kind"`
	TenantID string `json:"tenant_id"`
	GroupID  string `json:"group_id,omitempty"`
	TxID     string `json:"tx_id,omitempty"`
	DocID    string `json:"doc_id,omitempty"`

	State        model.MatchState   `json:"state,omitempty"`
	RelationType model.RelationType `json:"relation_type,omitempty"`
	TxIDs        []string           `json:"tx_ids,omitempty"`
	DocIDs       []string           `json:"doc_ids,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"`
	ReasonCodes  []string           `json:"reason_codes,omitempty"`
	MatchedBy    model.MatchedBy    `json:"matched_by,omitempty"`

	LinkState   model.LinkState  `json:"link_state,omitempty"`
	LineItemKey string           `json:"line_item_key,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	OpenAmount  *decimal.Decimal `json:"open_amount,omitempty"`
}

// AssertDecisionPersistable checks that d may be written.
func AssertDecisionPersistable(d model.MatchDecision) error {
	if !d.State.Valid() || !d.RelationType.Valid() {
		return fmt.Errorf("%w: state=%q relation=%q", ErrInvalidState, d.State, d.RelationType)
	}
	if d.State.Binding() && d.RelationType == model.RelationManyToMany {
		return ErrManyToManyFinal
	}
	if d.State.Binding() && (len(d.TxIDs) == 0 || len(d.DocIDs) == 0) {
		return ErrMissingIDs
	}
	if d.TenantID() == "" {
		return ErrMissingTenant
	}
	return nil
}

// ToApplyOps projects d into persistence operations. A decision that fails
// validation yields no operations and the validation error.
//
// Edges and the group are only emitted when the decision has a group id.
// Document, transaction and line item updates are only emitted for final and
// partial decisions: final documents are closed (open amount 0), partial ones keep
// OpenAmountAfter.
func ToApplyOps(d model.MatchDecision) ([]Op, error) {
	if err := AssertDecisionPersistable(d); err != nil {
		return nil, err
	}

	tenant := d.TenantID()
	txIDs := sortedUnique(d.TxIDs)
	docIDs := sortedUnique(d.DocIDs)
	var ops []Op

	if d.MatchGroupID != "" {
		for _, tx := range txIDs {
			for _, doc := range docIDs {
				ops = append(ops, Op{Kind: OpUpsertEdge, TenantID: tenant, GroupID: d.MatchGroupID, TxID: tx, DocID: doc})
			}
		}
		ops = append(ops, Op{
			Kind:         OpUpsertGroup,
			TenantID:     tenant,
			GroupID:      d.MatchGroupID,
			State:        d.State,
			RelationType: d.RelationType,
			TxIDs:        txIDs,
			DocIDs:       docIDs,
			Confidence:   d.Confidence,
			ReasonCodes:  append([]string(nil), d.ReasonCodes...),
			MatchedBy:    d.MatchedBy,
		})
	}

	if d.State.Binding() {
		link := d.State.LinkState()
		var open *decimal.Decimal
		switch d.State {
		case model.StateFinal:
			zero := decimal.Zero
			open = &zero
		case model.StatePartial:
			if d.OpenAmountAfter != nil {
				v := *d.OpenAmountAfter
				open = &v
			}
		}
		for _, doc := range docIDs {
			ops = append(ops, Op{Kind: OpUpdateDoc, TenantID: tenant, GroupID: d.MatchGroupID, DocID: doc, LinkState: link, OpenAmount: open})
		}
		for _, tx := range txIDs {
			ops = append(ops, Op{Kind: OpUpdateTx, TenantID: tenant, GroupID: d.MatchGroupID, TxID: tx, LinkState: link})
		}
	}

	if d.State.Binding() {
		items := append([]model.LineItemAllocation(nil), d.MatchedLineItems...)
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].DocID != items[j].DocID {
				return items[i].DocID < items[j].DocID
			}
			return items[i].LineItemKey < items[j].LineItemKey
		})
		for _, li := range items {
			amount, open := li.Amount, li.OpenAmountAfter
			ops = append(ops, Op{
				Kind:        OpUpdateInvoiceLineItem,
				TenantID:    tenant,
				GroupID:     d.MatchGroupID,
				DocID:       li.DocID,
				TxID:        li.TxID,
				LineItemKey: li.LineItemKey,
				Amount:      &amount,
				OpenAmount:  &open,
			})
		}
	}

	return ops, nil
}

func sortedUnique(ids []string) []string {
	out := model.DedupeStrings(append([]string(nil), ids...))
	sort.Strings(out)
	return out
}
