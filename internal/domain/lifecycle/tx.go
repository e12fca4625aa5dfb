package lifecycle

import (
	"sort"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
)

// EvaluateTxs classifies txs. history maps tx ids to their vendor history;
// a nil map disables history-based subscription detection. Results are
// sorted by tx id.
func (e *Evaluator) EvaluateTxs(txs []model.Tx, history map[string][]model.Tx) []TxResult {
	out := make([]TxResult, 0, len(txs))
	for _, tx := range txs {
		out = append(out, e.EvaluateTx(tx, history[tx.ID]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TxID < out[j].TxID })
	return out
}

// EvaluateTx classifies a single transaction. Priority: technical, private,
// fee, subscription, prepayment, needs eigenbeleg, missing document.
func (e *Evaluator) EvaluateTx(tx model.Tx, history []model.Tx) TxResult {
	res := TxResult{TxID: tx.ID, TenantID: tx.TenantID}
	set := func(kind TxKind, sev Severity, action NextAction, codes ...string) TxResult {
		res.Kind, res.Severity, res.NextAction, res.ExplanationCodes = kind, sev, action, codes
		return res
	}
	text := tx.Text()
	lc := e.config.Lifecycle

	if _, ok := normalize.MatchKeyword(text, normalize.TechnicalKeywords); ok {
		return set(TxTechnical, SeverityInfo, ActionNone, CodeTxTechnicalKeyword)
	}

	if tx.PrivateHint {
		return set(TxPrivate, SeverityInfo, ActionAskUser, CodeTxPrivateHint)
	}
	if _, ok := normalize.MatchKeyword(text, normalize.PrivateKeywords); ok {
		return set(TxPrivate, SeverityInfo, ActionAskUser, CodeTxPrivateKeyword)
	}

	if e.feeVendor(tx) {
		return set(TxFee, SeverityInfo, ActionNone, CodeTxFeeVendor)
	}
	if _, ok := normalize.MatchKeyword(text, normalize.FeeKeywords); ok && tx.Amount.LessThanOrEqual(lc.FeeMaxAmount) {
		return set(TxFee, SeverityInfo, ActionNone, CodeTxFeeKeyword)
	}

	var subCodes []string
	if _, ok := normalize.MatchKeyword(text, normalize.SubscriptionKeywords); ok {
		subCodes = append(subCodes, CodeTxSubscriptionKeyword)
	}
	if tx.RecurringHint {
		subCodes = append(subCodes, CodeTxRecurringHint)
	}
	cadence := CadenceNone
	if lc.Subscription.HistoryEnabled && len(history) > 0 {
		cadence = DetectCadence(tx, history, lc.Subscription)
		if cadence != CadenceNone {
			subCodes = append(subCodes, CodeTxSubscriptionHistory)
		}
	}
	if len(subCodes) > 0 {
		res = set(TxSubscription, SeverityWarning, ActionInboxTask, subCodes...)
		res.Cadence = cadence
		res.Rematch = e.rematch(tx.BookingDate)
		return res
	}

	if _, ok := normalize.MatchKeyword(text, normalize.PrepaymentKeywords); ok {
		res = set(TxPrepayment, SeverityInfo, ActionNone, CodeTxPrepaymentKeyword)
		res.Rematch = &RematchHint{
			AnchorDate: e.rematch(tx.BookingDate).AnchorDate,
			DaysBefore: 0,
			DaysAfter:  lc.PrepaymentDaysAfter,
		}
		return res
	}

	if _, ok := normalize.MatchKeyword(text, normalize.EigenbelegKeywords); ok {
		return set(TxNeedsEigenbeleg, SeverityAction, ActionStartEigenbelegFlow, CodeTxEigenbelegKeyword)
	}
	if tx.Amount.LessThanOrEqual(lc.EigenbelegMaxAmount) && normalize.VendorKey(tx.CounterpartyName) == "" && tx.IBAN == "" {
		return set(TxNeedsEigenbeleg, SeverityAction, ActionStartEigenbelegFlow, CodeTxSmallAnonymous)
	}

	res = set(TxMissingDoc, SeverityWarning, ActionInboxTask, CodeTxNoDocument)
	res.Rematch = e.rematch(tx.BookingDate)
	return res
}

func (e *Evaluator) feeVendor(tx model.Tx) bool {
	if tx.VendorKey == "" {
		return false
	}
	for _, key := range e.config.Lifecycle.FeeVendorKeys {
		if normalize.VendorKey(key) == tx.VendorKey {
			return true
		}
	}
	return false
}
