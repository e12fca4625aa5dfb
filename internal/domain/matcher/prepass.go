package matcher

import (
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// hardSignals records which hard signals hold for a pair.
type hardSignals struct {
	iban       bool
	invoiceNo  bool
	dateVendor bool
	e2e        bool
}

// reasons lists the reason codes for the signals that held, in priority order.
func (s hardSignals) reasons() []string {
	var out []string
	if s.iban {
		out = append(out, model.ReasonHardIBANAmount)
	}
	if s.invoiceNo {
		out = append(out, model.ReasonHardInvoiceNo)
	}
	if s.dateVendor {
		out = append(out, model.ReasonHardAmountDateVendor)
	}
	if s.e2e {
		out = append(out, model.ReasonHardE2EAmount)
	}
	return out
}

// pairVerdict is the prepass classification of one tx/doc pair.
type pairVerdict int

const (
	verdictNone pairVerdict = iota
	verdictCandidate
	verdictAmbiguousKeys
	verdictAmountRejected
	verdictPartialExcluded
)

type hardPair struct {
	tx      int
	doc     int
	key     HardKey
	signals hardSignals
}

// Prepass finds one-to-one matches proven by a hard identifier. A pair is
// accepted only when exactly one key type fits it and neither side fits any
// other pair. Accepted pairs become final decisions with confidence 1.
func (m *Matcher) Prepass(docs []model.Doc, txs []model.Tx) PrepassResult {
	txv := make([]txView, len(txs))
	for i, tx := range txs {
		txv[i] = newTxView(tx)
	}
	docv := make([]docView, len(docs))
	for i, d := range docs {
		docv[i] = newDocView(d, m.config)
	}

	var stats PrepassStats
	var pairs []hardPair
	txCount := make(map[int]int)

	for ti := range txv {
		for di := range docv {
			key, signals, verdict := m.classifyPair(txv[ti], docv[di])
			switch verdict {
			case verdictCandidate:
				stats.CandidatePairs++
				pairs = append(pairs, hardPair{tx: ti, doc: di, key: key, signals: signals})
				txCount[ti]++
			case verdictAmbiguousKeys:
				stats.AmbiguousKeys++
			case verdictAmountRejected:
				stats.AmountRejected++
				if m.config.PrepassDebug {
					m.logger.Debug("identifier match rejected on amount",
						"tx_id", txv[ti].ID,
						"doc_id", docv[di].ID,
						"tx_amount", txv[ti].Amount.String(),
						"doc_target", docv[di].Target().String())
				}
			case verdictPartialExcluded:
				stats.PartialExcluded++
			}
		}
	}

	// One candidate per tx first, then one claimant per doc.
	var perTx []hardPair
	docCount := make(map[int]int)
	for _, p := range pairs {
		if txCount[p.tx] != 1 {
			stats.NotUnique++
			continue
		}
		perTx = append(perTx, p)
		docCount[p.doc]++
	}

	usedTx := make(map[string]bool)
	usedDoc := make(map[string]bool)
	var decisions []model.MatchDecision
	for _, p := range perTx {
		if docCount[p.doc] != 1 {
			stats.NotUnique++
			continue
		}
		tx, d := txv[p.tx], docv[p.doc]
		dec := newDecision(model.StateFinal, model.RelationOneToOne, []string{tx.ID}, []string{d.ID}, tx.TenantID)
		dec.Confidence = 1
		dec.ReasonCodes = p.signals.reasons()
		dec.Inputs["phase"] = "prepass"
		dec.Inputs["hard_key"] = string(p.key)
		decisions = append(decisions, dec)
		usedTx[tx.ID] = true
		usedDoc[d.ID] = true
	}
	stats.Matched = len(decisions)

	if m.config.PrepassDebug {
		m.logger.Debug("prepass finished",
			"candidate_pairs", stats.CandidatePairs,
			"matched", stats.Matched,
			"not_unique", stats.NotUnique,
			"ambiguous_keys", stats.AmbiguousKeys,
			"amount_rejected", stats.AmountRejected,
			"partial_excluded", stats.PartialExcluded)
	}

	return PrepassResult{
		Decisions: decisions,
		Docs:      without(docs, docID, usedDoc),
		Txs:       without(txs, txID, usedTx),
		Stats:     stats,
	}
}

// classifyPair decides whether a tx/doc pair is a hard candidate.
//
// Amount and direction compatibility are preconditions for every key. The
// amount+date+vendor key is a fallback: it only applies when no identifier
// key fits and the document carries no invoice number of its own. Keys that
// need a date never fire on an unbounded window.
func (m *Matcher) classifyPair(tx txView, d docView) (HardKey, hardSignals, pairVerdict) {
	if tx.TenantID != d.TenantID || !tolerance.CurrencyCompatible(d.Doc, tx.Tx, m.config) {
		return "", hardSignals{}, verdictNone
	}

	ibanEq := tx.IBAN != "" && tx.IBAN == d.IBAN
	e2eEq := tx.EndToEndID != "" && tx.EndToEndID == d.EndToEndID
	invoiceInText := d.InvoiceNo != "" && normalize.ContainsIdentifier(tx.Reference, d.InvoiceNo)
	inWindow := !d.window.Unbounded && d.window.Contains(tx.BookingDate)

	amountOK := tolerance.AmountCompatible(tx.Amount, d.Target(), m.config)
	directionOK := tolerance.DirectionCompatible(d.Doc, tx.Tx)

	if !amountOK || !directionOK {
		if ibanEq || e2eEq || invoiceInText {
			return "", hardSignals{}, verdictAmountRejected
		}
		return "", hardSignals{}, verdictNone
	}

	signals := hardSignals{
		iban:       ibanEq,
		invoiceNo:  invoiceInText && inWindow,
		dateVendor: inWindow && normalize.VendorMatch(tx.vendor, d.vendor),
		e2e:        e2eEq,
	}

	var keys []HardKey
	if signals.iban {
		keys = append(keys, KeyIBANAmount)
	}
	if signals.invoiceNo {
		keys = append(keys, KeyInvoiceNo)
	}
	if signals.e2e {
		keys = append(keys, KeyE2EAmount)
	}
	if len(keys) == 0 && signals.dateVendor && d.InvoiceNo == "" {
		keys = append(keys, KeyAmountDateVendor)
	}

	switch {
	case len(keys) == 0:
		return "", signals, verdictNone
	case len(keys) > 1:
		return "", signals, verdictAmbiguousKeys
	}

	if normalize.HasPartialOrBatchPaymentHints(tx.Text(), d.VendorText) {
		return "", signals, verdictPartialExcluded
	}
	return keys[0], signals, verdictCandidate
}
