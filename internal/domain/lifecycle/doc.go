package lifecycle

import (
	"sort"
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// EvaluateDocs classifies docs at time now. peers are every document known
// to the run (matched or not) and serve duplicate detection. Results are
// sorted by doc id.
func (e *Evaluator) EvaluateDocs(docs, peers []model.Doc, now time.Time) []DocResult {
	out := make([]DocResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, e.EvaluateDoc(d, peers, now))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

// EvaluateDoc classifies a single document. Priority: duplicate, extraction
// error, awaiting payment, overdue, eigenbeleg eligible, private, split
// required, none.
func (e *Evaluator) EvaluateDoc(d model.Doc, peers []model.Doc, now time.Time) DocResult {
	res := DocResult{DocID: d.ID, TenantID: d.TenantID}
	set := func(kind DocKind, sev Severity, action NextAction, codes ...string) DocResult {
		res.Kind, res.Severity, res.NextAction, res.ExplanationCodes = kind, sev, action, codes
		return res
	}

	if isDuplicate(d, peers, e.config) {
		return set(DocDuplicate, SeverityWarning, ActionAskUser, CodeDocDuplicate)
	}

	if d.ExtractionFailed {
		return set(DocExtractionError, SeverityAction, ActionReuploadRequest, CodeDocExtractionFailed)
	}
	if d.Amount.IsZero() && len(d.LineItems) == 0 {
		return set(DocExtractionError, SeverityAction, ActionReuploadRequest, CodeDocMissingAmount)
	}

	window := tolerance.CalcWindow(d, e.config)
	open := d.Target().IsPositive()
	overdue := tolerance.IsOverdue(d, now, e.config)

	if open && !overdue && !window.Unbounded && !tolerance.Day(now).After(tolerance.Day(window.End)) {
		res = set(DocAwaitingTx, SeverityInfo, ActionNone, CodeDocAwaitingPayment)
		res.Rematch = e.rematch(window.Anchor)
		return res
	}

	if open && overdue {
		res = set(DocOverdue, SeverityWarning, ActionInboxTask, CodeDocOverdue)
		res.Rematch = e.rematch(now)
		return res
	}

	if e.eigenbelegEligible(d) {
		return set(DocEigenbelegEligible, SeverityInfo, ActionStartEigenbelegFlow, CodeDocEigenbelegEligible)
	}

	if d.PrivateHint {
		return set(DocPrivate, SeverityInfo, ActionAskUser, CodeDocPrivateHint)
	}
	if _, ok := normalize.MatchKeyword(d.VendorText, normalize.PrivateKeywords); ok {
		return set(DocPrivate, SeverityInfo, ActionAskUser, CodeDocPrivateKeyword)
	}

	if mixedPrivateItems(d) {
		return set(DocSplitRequired, SeverityAction, ActionStartSplitUI, CodeDocMixedPrivateItems)
	}

	return set(DocNone, SeverityInfo, ActionNone, CodeDocNoAction)
}

// eigenbelegEligible: a small receipt without an identifiable issuer can be
// replaced by a self-issued receipt.
func (e *Evaluator) eigenbelegEligible(d model.Doc) bool {
	if d.Target().GreaterThan(e.config.Lifecycle.EigenbelegMaxAmount) || d.InvoiceNo != "" {
		return false
	}
	if normalize.VendorKey(d.VendorText) == "" {
		return true
	}
	_, ok := normalize.MatchKeyword(d.VendorText, normalize.EigenbelegKeywords)
	return ok
}

// mixedPrivateItems reports whether some but not all line items look private.
func mixedPrivateItems(d model.Doc) bool {
	private, business := 0, 0
	for _, li := range d.LineItems {
		if _, ok := normalize.MatchKeyword(li.Description, normalize.PrivateKeywords); ok {
			private++
		} else {
			business++
		}
	}
	return private > 0 && business > 0
}

// isDuplicate reports whether an earlier peer of the same tenant (lower id,
// or already linked) describes the same document: equal invoice number from
// a compatible vendor, or without invoice numbers the same vendor, invoice
// date and amount.
func isDuplicate(d model.Doc, peers []model.Doc, cfg tolerance.Config) bool {
	vendor := normalize.VendorKey(d.VendorText)
	for _, p := range peers {
		if p.ID == d.ID || p.TenantID != d.TenantID {
			continue
		}
		if p.LinkState.Matchable() && p.ID > d.ID {
			continue
		}
		pv := normalize.VendorKey(p.VendorText)
		if d.InvoiceNo != "" && p.InvoiceNo != "" {
			if d.InvoiceNo == p.InvoiceNo && (vendor == "" || pv == "" || vendor == pv) {
				return true
			}
			continue
		}
		if d.InvoiceNo != "" || p.InvoiceNo != "" || vendor == "" || vendor != pv {
			continue
		}
		if d.InvoiceDate == nil || p.InvoiceDate == nil || !tolerance.Day(*d.InvoiceDate).Equal(tolerance.Day(*p.InvoiceDate)) {
			continue
		}
		if tolerance.AmountCompatible(d.Amount, p.Amount, cfg) {
			return true
		}
	}
	return false
}
