package matcher

import (
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Pools is the per-tenant split of a batch into matching pools.
type Pools struct {
	// Docs and Txs of tenants that have both matchable documents and
	// matchable transactions.
	Docs []model.Doc
	Txs  []model.Tx

	// Matchable entities of tenants without a counterpart in this batch.
	DocOnly []model.Doc
	TxOnly  []model.Tx

	// Linked or partially linked entities, kept as context only.
	LinkedDocs []model.Doc
	LinkedTxs  []model.Tx
}

// HardKey names the identifier behind a prepass match.
type HardKey string

const (
	KeyIBANAmount       HardKey = "IBAN_AMOUNT"
	KeyInvoiceNo        HardKey = "INVOICE_NO"
	KeyAmountDateVendor HardKey = "AMOUNT_DATE_VENDOR"
	KeyE2EAmount        HardKey = "E2E_AMOUNT"
)

// PrepassStats counts how the prepass treated the pairs it looked at.
type PrepassStats struct {
	CandidatePairs  int `json:"candidate_pairs"`
	Matched         int `json:"matched"`
	AmbiguousKeys   int `json:"ambiguous_keys"`
	NotUnique       int `json:"not_unique"`
	AmountRejected  int `json:"amount_rejected"`
	PartialExcluded int `json:"partial_excluded"`
}

// PrepassResult is the outcome of the hard-identifier prepass.
type PrepassResult struct {
	Decisions []model.MatchDecision
	Docs      []model.Doc // not consumed
	Txs       []model.Tx  // not consumed
	Stats     PrepassStats
}

// ItemFirstResult is the outcome of line-item matching.
type ItemFirstResult struct {
	Decisions []model.MatchDecision
	Docs      []model.Doc // not consumed
	Txs       []model.Tx  // not consumed
}

// Candidates lists the documents a single transaction could pay.
type Candidates struct {
	Tx   model.Tx
	Docs []model.Doc
}

// Relation is a proposed grouping of transactions and documents.
type Relation struct {
	Type      model.RelationType
	Txs       []model.Tx
	Docs      []model.Doc
	Contested bool // the transaction fits more than one document
	Linked    bool // includes an already linked document
}

// Score breaks down the confidence of a soft match.
type Score struct {
	Amount     float64
	Date       float64
	Vendor     float64
	Confidence float64
	Reasons    []string
}

// txView caches derived fields of a transaction.
type txView struct {
	model.Tx
	vendor []string
}

func newTxView(tx model.Tx) txView {
	key := tx.VendorKey
	if key == "" {
		key = tx.CounterpartyName
	}
	return txView{Tx: tx, vendor: normalize.VendorTokens(key)}
}

// docView caches derived fields of a document.
type docView struct {
	model.Doc
	vendor []string
	window tolerance.Window
}

func newDocView(d model.Doc, cfg tolerance.Config) docView {
	return docView{
		Doc:    d,
		vendor: normalize.VendorTokens(d.VendorText),
		window: tolerance.CalcWindow(d, cfg),
	}
}
