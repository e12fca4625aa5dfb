// Package model defines the records the matching pipeline reads and the
// decisions it produces.
//
// Amounts are decimal. A transaction amount is unsigned and carries its
// direction separately; a document amount is signed, where a non-negative
// amount expects an outgoing payment and a negative amount (credit note,
// outgoing invoice) expects an incoming one.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tx is a bank transaction.
type Tx struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	Amount           decimal.Decimal `json:"amount"`
	Direction        Direction       `json:"direction"`
	Currency         string          `json:"currency"`
	BookingDate      time.Time       `json:"booking_date"`
	ValueDate        *time.Time      `json:"value_date,omitempty"`
	LinkState        LinkState       `json:"link_state"`
	IBAN             string          `json:"iban,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	EndToEndID       string          `json:"end_to_end_id,omitempty"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	VendorKey        string          `json:"vendor_key,omitempty"`
	PrivateHint      bool            `json:"private_hint,omitempty"`
	RecurringHint    bool            `json:"recurring_hint,omitempty"`
}

// Text returns the free text of the transaction used for keyword checks.
func (t Tx) Text() string {
	return t.CounterpartyName + " " + t.Reference
}

// DocLineItem is a single line of an invoice.
type DocLineItem struct {
	ID          string           `json:"id,omitempty"`
	LineIndex   int              `json:"line_index"`
	Description string           `json:"description,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	OpenAmount  *decimal.Decimal `json:"open_amount,omitempty"` // absolute; nil = |Amount|
}

// Key identifies the line item within its document.
func (li DocLineItem) Key() string {
	if li.ID != "" {
		return li.ID
	}
	return fmt.Sprintf("line:%d", li.LineIndex)
}

// Open returns the absolute amount of the line item not yet covered.
func (li DocLineItem) Open() decimal.Decimal {
	if li.OpenAmount == nil {
		return li.Amount.Abs()
	}
	return li.OpenAmount.Abs()
}

// Doc is an accounting document (invoice or receipt).
type Doc struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	LinkState        LinkState        `json:"link_state"`
	InvoiceDate      *time.Time       `json:"invoice_date,omitempty"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	IBAN             string           `json:"iban,omitempty"`
	InvoiceNo        string           `json:"invoice_no,omitempty"`
	EndToEndID       string           `json:"end_to_end_id,omitempty"`
	VendorText       string           `json:"vendor_text,omitempty"`
	OpenAmount       *decimal.Decimal `json:"open_amount,omitempty"`
	LineItems        []DocLineItem    `json:"line_items,omitempty"`
	PrivateHint      bool             `json:"private_hint,omitempty"`
	ExtractionFailed bool             `json:"extraction_failed,omitempty"`
}

// Target is the amount a payment has to cover: the open amount when set,
// otherwise the absolute document amount. Linked and partial documents are
// only matched by recurring payments, which cover the full amount again.
func (d Doc) Target() decimal.Decimal {
	if d.OpenAmount != nil && d.LinkState.Matchable() {
		return d.OpenAmount.Abs()
	}
	return d.Amount.Abs()
}

// ExpectedDirection is the transaction direction the document's sign implies.
func (d Doc) ExpectedDirection() Direction {
	if d.Amount.IsNegative() {
		return DirectionIn
	}
	return DirectionOut
}

// HasOpenLineItems reports whether any line item still has an open amount.
func (d Doc) HasOpenLineItems() bool {
	for _, li := range d.LineItems {
		if li.Open().IsPositive() {
			return true
		}
	}
	return false
}
