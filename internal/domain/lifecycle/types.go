// Package lifecycle classifies documents and transactions that ended a run
// without a binding match, and tells the caller what should happen next.
//
// Classification follows a strict priority order per entity type; the first
// rule that applies wins and every entity gets exactly one result.
package lifecycle

import "time"

// Severity grades how urgently a result needs attention.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAction  Severity = "action"
)

// NextAction is what the platform should do with the entity.
type NextAction string

const (
	ActionNone                NextAction = "none"
	ActionInboxTask           NextAction = "inbox_task"
	ActionAskUser             NextAction = "ask_user"
	ActionStartSplitUI        NextAction = "start_split_ui"
	ActionStartEigenbelegFlow NextAction = "start_eigenbeleg_flow"
	ActionReuploadRequest     NextAction = "reupload_request"
)

// DocKind is the lifecycle category of an unmatched document.
type DocKind string

const (
	DocDuplicate          DocKind = "duplicate"
	DocExtractionError    DocKind = "extraction_error"
	DocAwaitingTx         DocKind = "awaiting_tx"
	DocOverdue            DocKind = "overdue"
	DocEigenbelegEligible DocKind = "eigenbeleg_eligible"
	DocPrivate            DocKind = "private"
	DocSplitRequired      DocKind = "split_required"
	DocNone               DocKind = "none"
)

// TxKind is the lifecycle category of an unmatched transaction.
type TxKind string

const (
	TxTechnical       TxKind = "technical"
	TxPrivate         TxKind = "private"
	TxFee             TxKind = "fee"
	TxSubscription    TxKind = "subscription"
	TxPrepayment      TxKind = "prepayment"
	TxNeedsEigenbeleg TxKind = "needs_eigenbeleg"
	TxMissingDoc      TxKind = "missing_doc"
)

// Explanation codes.
const (
	CodeDocDuplicate          = "DOC_DUPLICATE"
	CodeDocExtractionFailed   = "DOC_EXTRACTION_FAILED"
	CodeDocMissingAmount      = "DOC_MISSING_AMOUNT"
	CodeDocAwaitingPayment    = "DOC_AWAITING_PAYMENT"
	CodeDocOverdue            = "DOC_OVERDUE"
	CodeDocEigenbelegEligible = "DOC_EIGENBELEG_ELIGIBLE"
	CodeDocPrivateHint        = "DOC_PRIVATE_HINT"
	CodeDocPrivateKeyword     = "DOC_PRIVATE_KEYWORD"
	CodeDocMixedPrivateItems  = "DOC_MIXED_PRIVATE_ITEMS"
	CodeDocNoAction           = "DOC_NO_ACTION"

	CodeTxTechnicalKeyword    = "TX_TECHNICAL_KEYWORD"
	CodeTxPrivateHint         = "TX_PRIVATE_HINT"
	CodeTxPrivateKeyword      = "TX_PRIVATE_KEYWORD"
	CodeTxFeeVendor           = "TX_FEE_VENDOR"
	CodeTxFeeKeyword          = "TX_FEE_KEYWORD"
	CodeTxSubscriptionKeyword = "TX_SUBSCRIPTION_KEYWORD"
	CodeTxRecurringHint       = "TX_RECURRING_HINT"
	CodeTxSubscriptionHistory = "TX_SUBSCRIPTION_HISTORY"
	CodeTxPrepaymentKeyword   = "TX_PREPAYMENT_KEYWORD"
	CodeTxEigenbelegKeyword   = "TX_EIGENBELEG_KEYWORD"
	CodeTxSmallAnonymous      = "TX_SMALL_ANONYMOUS"
	CodeTxNoDocument          = "TX_NO_DOCUMENT"
)

// RematchHint asks a later run to retry an entity against counterparts
// booked between AnchorDate-DaysBefore and AnchorDate+DaysAfter.
type RematchHint struct {
	AnchorDate time.Time `json:"anchor_date"`
	DaysBefore int       `json:"days_before"`
	DaysAfter  int       `json:"days_after"`
}

// DocResult is the lifecycle classification of a document.
type DocResult struct {
	DocID            string       `json:"doc_id"`
	TenantID         string       `json:"tenant_id"`
	Kind             DocKind      `json:"kind"`
	Severity         Severity     `json:"severity"`
	NextAction       NextAction   `json:"next_action"`
	ExplanationCodes []string     `json:"explanation_codes"`
	Rematch          *RematchHint `json:"rematch,omitempty"`
}

// TxResult is the lifecycle classification of a transaction.
type TxResult struct {
	TxID             string       `json:"tx_id"`
	TenantID         string       `json:"tenant_id"`
	Kind             TxKind       `json:"kind"`
	Severity         Severity     `json:"severity"`
	NextAction       NextAction   `json:"next_action"`
	ExplanationCodes []string     `json:"explanation_codes"`
	Rematch          *RematchHint `json:"rematch,omitempty"`
	Cadence          Cadence      `json:"cadence,omitempty"`
}

// IsSubscription reports whether the transaction was recognized as recurring.
func (r TxResult) IsSubscription() bool {
	return r.Kind == TxSubscription
}
