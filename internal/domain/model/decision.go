package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Reason codes attached to decisions.
const (
	ReasonHardIBANAmount       = "HARD_IBAN_AMOUNT"
	ReasonHardInvoiceNo        = "HARD_INVOICE_NO"
	ReasonHardAmountDateVendor = "HARD_AMOUNT_DATE_VENDOR"
	ReasonHardE2EAmount        = "HARD_E2E_AMOUNT"

	ReasonItemFirstLineItem     = "ITEM_FIRST_LINE_ITEM_MATCH"
	ReasonItemFirstBundle       = "ITEM_FIRST_BUNDLE_MATCH"
	ReasonItemFirstFullCoverage = "ITEM_FIRST_FINAL_COVERAGE"
	ReasonPartialPaymentSum     = "PARTIAL_PAYMENT_SUM"

	ReasonAmountMatch      = "AMOUNT_MATCH"
	ReasonSubsetSum        = "SUBSET_SUM_MATCH"
	ReasonDateInWindow     = "DATE_IN_WINDOW"
	ReasonVendorMatch      = "VENDOR_MATCH"
	ReasonVendorSimilar    = "VENDOR_SIMILAR"
	ReasonContested        = "CONTESTED_CANDIDATE"
	ReasonRecurringLinked  = "RECURRING_LINKED_DOC"
	ReasonManyToManyGroup  = "MANY_TO_MANY_GROUP"
	ReasonInvalidFinalIDs  = "INVALID_FINAL_MISSING_IDS"
	ReasonManyToManyDemote = "MANY_TO_MANY_NOT_FINAL"
	ReasonConflictDemoted  = "CONFLICT_DEMOTED"
)

// HardReasonPrefix marks reason codes proven by a strong identifier.
const HardReasonPrefix = "HARD_"

// InputTenantID is the key every decision's Inputs must carry.
const InputTenantID = "tenant_id"

// InputRunID is the key under which the pipeline records its run id.
const InputRunID = "run_id"

// LineItemAllocation references an invoice line item consumed by a decision.
type LineItemAllocation struct {
	DocID           string          `json:"doc_id"`
	LineItemKey     string          `json:"line_item_key"`
	TxID            string          `json:"tx_id"`
	Amount          decimal.Decimal `json:"amount"`
	OpenAmountAfter decimal.Decimal `json:"open_amount_after"`
	Bundled         bool            `json:"bundled,omitempty"`
}

// MatchDecision is the pipeline's verdict about a set of transactions and documents.
type MatchDecision struct {
	State            MatchState           `json:"state"`
	RelationType     RelationType         `json:"relation_type"`
	TxIDs            []string             `json:"tx_ids"`
	DocIDs           []string             `json:"doc_ids"`
	Confidence       float64              `json:"confidence"`
	ReasonCodes      []string             `json:"reason_codes"`
	Inputs           map[string]any       `json:"inputs"`
	MatchedBy        MatchedBy            `json:"matched_by"`
	MatchGroupID     string               `json:"match_group_id,omitempty"`
	OpenAmountAfter  *decimal.Decimal     `json:"open_amount_after,omitempty"`
	MatchedLineItems []LineItemAllocation `json:"matched_line_items,omitempty"`
}

// IsHard reports whether the decision carries a hard-match reason code.
func (d MatchDecision) IsHard() bool {
	for _, code := range d.ReasonCodes {
		if strings.HasPrefix(code, HardReasonPrefix) {
			return true
		}
	}
	return false
}

// TenantID returns the tenant recorded in the decision inputs.
func (d MatchDecision) TenantID() string {
	if d.Inputs == nil {
		return ""
	}
	s, _ := d.Inputs[InputTenantID].(string)
	return s
}

// EntityCount is the number of transactions and documents the decision covers.
func (d MatchDecision) EntityCount() int {
	return len(d.TxIDs) + len(d.DocIDs)
}

// AddReason appends codes, keeping the list ordered and free of duplicates.
func (d *MatchDecision) AddReason(codes ...string) {
	d.ReasonCodes = DedupeStrings(append(d.ReasonCodes, codes...))
}

// Clone returns a copy that shares no slices or maps with d.
func (d MatchDecision) Clone() MatchDecision {
	out := d
	out.TxIDs = append([]string(nil), d.TxIDs...)
	out.DocIDs = append([]string(nil), d.DocIDs...)
	out.ReasonCodes = append([]string(nil), d.ReasonCodes...)
	out.MatchedLineItems = append([]LineItemAllocation(nil), d.MatchedLineItems...)
	if d.Inputs != nil {
		out.Inputs = make(map[string]any, len(d.Inputs))
		for k, v := range d.Inputs {
			out.Inputs[k] = v
		}
	}
	if d.OpenAmountAfter != nil {
		v := *d.OpenAmountAfter
		out.OpenAmountAfter = &v
	}
	return out
}

// DedupeStrings removes empty and repeated values, keeping first occurrences in order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
