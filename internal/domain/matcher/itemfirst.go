package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Item-first confidences. Line items are strong evidence but not an identifier.
const (
	confidenceItemDirect  = 0.9
	confidenceItemBundle  = 0.85
	confidencePartialStep = 0.1
)

// openItem is a line item still available for allocation.
type openItem struct {
	key    string
	signed decimal.Decimal // open amount carrying the item's effective sign
}

// ItemFirst allocates transactions to the open line items of documents.
//
// Documents are processed in (anchor date, id) order; for each, compatible
// transactions are walked in (booking date, amount, id) order and matched to
// a single open item, or failing that to a bundle of items containing at
// least one negative line. Consumed items drop to zero open amount and
// consumed transactions are unavailable to later documents.
func (m *Matcher) ItemFirst(docs []model.Doc, txs []model.Tx) ItemFirstResult {
	ordered := make([]docView, 0, len(docs))
	for _, d := range docs {
		if d.HasOpenLineItems() {
			ordered = append(ordered, newDocView(d, m.config))
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ai, aj := ordered[i].window.Anchor, ordered[j].window.Anchor
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return ordered[i].ID < ordered[j].ID
	})

	usedTx := make(map[string]bool)
	usedDoc := make(map[string]bool)
	var decisions []model.MatchDecision

	for _, dv := range ordered {
		dec, consumed := m.allocateDoc(dv, m.itemCandidates(dv, txs, usedTx))
		if len(consumed) == 0 {
			continue
		}
		for _, id := range consumed {
			usedTx[id] = true
		}
		usedDoc[dv.ID] = true
		decisions = append(decisions, dec)
	}

	return ItemFirstResult{
		Decisions: decisions,
		Docs:      without(docs, docID, usedDoc),
		Txs:       without(txs, txID, usedTx),
	}
}

// itemCandidates returns the unused transactions that could pay dv, sorted
// by (booking date, amount, id).
func (m *Matcher) itemCandidates(dv docView, txs []model.Tx, used map[string]bool) []model.Tx {
	var out []model.Tx
	for _, tx := range txs {
		if used[tx.ID] || tx.TenantID != dv.TenantID {
			continue
		}
		if !tolerance.CurrencyCompatible(dv.Doc, tx, m.config) || !tolerance.DirectionCompatible(dv.Doc, tx) {
			continue
		}
		if !dv.window.Contains(tx.BookingDate) {
			continue
		}
		if !normalize.VendorCompatible(newTxView(tx).vendor, dv.vendor) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.Before(out[j].BookingDate)
		}
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.LessThan(out[j].Amount)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// allocateDoc matches candidate transactions against dv's open line items and
// returns the resulting decision with the ids of the consumed transactions.
func (m *Matcher) allocateDoc(dv docView, candidates []model.Tx) (model.MatchDecision, []string) {
	sign := decimal.NewFromInt(1)
	if dv.Amount.IsNegative() {
		sign = decimal.NewFromInt(-1)
	}
	var open []openItem
	for _, li := range dv.LineItems {
		if !li.Open().IsPositive() {
			continue
		}
		signed := li.Open()
		if li.Amount.Mul(sign).IsNegative() {
			signed = signed.Neg()
		}
		open = append(open, openItem{key: li.Key(), signed: signed})
	}

	var (
		allocations []model.LineItemAllocation
		consumed    []string
		allocated   = decimal.Zero
		bundled     bool
		direct      bool
	)

	for _, tx := range candidates {
		if len(open) == 0 {
			break
		}

		if i := m.directItem(open, tx.Amount); i >= 0 {
			allocations = append(allocations, model.LineItemAllocation{
				DocID:           dv.ID,
				LineItemKey:     open[i].key,
				TxID:            tx.ID,
				Amount:          open[i].signed.Abs(),
				OpenAmountAfter: decimal.Zero,
			})
			open = append(open[:i], open[i+1:]...)
			direct = true
		} else {
			values := make([]decimal.Decimal, len(open))
			for j, it := range open {
				values[j] = it.signed
			}
			idx := SubsetSum(values, tx.Amount, m.config, true)
			if idx == nil {
				continue
			}
			taken := make(map[int]bool, len(idx))
			for _, j := range idx {
				taken[j] = true
				allocations = append(allocations, model.LineItemAllocation{
					DocID:           dv.ID,
					LineItemKey:     open[j].key,
					TxID:            tx.ID,
					Amount:          open[j].signed.Abs(),
					OpenAmountAfter: decimal.Zero,
					Bundled:         true,
				})
			}
			rest := open[:0]
			for j, it := range open {
				if !taken[j] {
					rest = append(rest, it)
				}
			}
			open = rest
			bundled = true
		}

		consumed = append(consumed, tx.ID)
		allocated = allocated.Add(tx.Amount)
	}

	if len(consumed) == 0 {
		return model.MatchDecision{}, nil
	}

	target := dv.Target()
	covered := allocated.GreaterThanOrEqual(target) || tolerance.AmountCompatible(allocated, target, m.config)

	state := model.StatePartial
	if covered {
		state = model.StateFinal
	}
	dec := newDecision(state, model.RelationOneToMany, consumed, []string{dv.ID}, dv.TenantID)
	dec.MatchedLineItems = allocations
	dec.Inputs["phase"] = "item_first"
	dec.Inputs["allocated"] = allocated.String()
	dec.Inputs["target"] = target.String()

	confidence := confidenceItemDirect
	if direct {
		dec.AddReason(model.ReasonItemFirstLineItem)
	}
	if bundled {
		dec.AddReason(model.ReasonItemFirstBundle)
		confidence = confidenceItemBundle
	}
	if covered {
		dec.AddReason(model.ReasonItemFirstFullCoverage)
	} else {
		openAfter := decimal.Max(decimal.Zero, target.Sub(allocated))
		dec.OpenAmountAfter = &openAfter
		dec.AddReason(model.ReasonPartialPaymentSum)
		confidence -= confidencePartialStep
	}
	dec.Confidence = min(confidence, m.config.SoftConfidenceCap)

	return dec, consumed
}

// directItem returns the index of the positive open item closest to amount
// within tolerance, or -1.
func (m *Matcher) directItem(open []openItem, amount decimal.Decimal) int {
	best := -1
	var bestDiff decimal.Decimal
	for i, it := range open {
		if !it.signed.IsPositive() || !tolerance.AmountCompatible(it.signed, amount, m.config) {
			continue
		}
		diff := it.signed.Sub(amount).Abs()
		if best < 0 || diff.LessThan(bestDiff) {
			best = i
			bestDiff = diff
		}
	}
	return best
}
