package matcher

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Score weights. They sum to 1.
const (
	weightAmount = 0.5
	weightDate   = 0.3
	weightVendor = 0.2
)

// Penalties applied on top of the blended score.
const (
	multiEntityFactor = 0.95
	contestedFactor   = 0.9
)

// amountCloseness maps the difference between a and b to [0,1]. Differences
// inside the tolerance score at least 0.5.
func amountCloseness(a, b decimal.Decimal, cfg tolerance.Config) float64 {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return 1
	}
	tol := tolerance.Tolerance(a, b, cfg)
	if tol.IsPositive() && diff.LessThanOrEqual(tol) {
		ratio, _ := diff.Div(tol).Float64()
		return 1 - 0.5*ratio
	}
	larger := decimal.Max(a.Abs(), b.Abs())
	if larger.IsZero() {
		return 0
	}
	ratio, _ := diff.Div(larger).Float64()
	return max(0, 0.5-ratio)
}

// dateCloseness scores how near booking lies to the window anchor. Dates
// outside the window score 0; unbounded windows score 0.5.
func dateCloseness(booking time.Time, w tolerance.Window) float64 {
	if w.Unbounded {
		return 0.5
	}
	if !w.Contains(booking) {
		return 0
	}
	span := max(w.SpanDays(), 1)
	days := tolerance.DaysBetween(booking, w.Anchor)
	return tolerance.Clamp01(1 - float64(days)/float64(span))
}

// ScoreOneToOne blends amount closeness, date closeness and vendor strength
// into a confidence for a single tx/doc pair. Without a hard signal the
// confidence never exceeds cfg.SoftConfidenceCap.
func ScoreOneToOne(tx model.Tx, d model.Doc, cfg tolerance.Config) Score {
	return scorePair(newTxView(tx), newDocView(d, cfg), cfg)
}

func scorePair(tv txView, dv docView, cfg tolerance.Config) Score {
	s := Score{
		Amount: amountCloseness(tv.Amount, dv.Target(), cfg),
		Date:   dateCloseness(tv.BookingDate, dv.window),
		Vendor: normalize.VendorStrength(tv.vendor, dv.vendor),
	}
	s.Confidence = min(weightAmount*s.Amount+weightDate*s.Date+weightVendor*s.Vendor, cfg.SoftConfidenceCap)

	if tolerance.AmountCompatible(tv.Amount, dv.Target(), cfg) {
		s.Reasons = append(s.Reasons, model.ReasonAmountMatch)
	}
	if !dv.window.Unbounded && dv.window.Contains(tv.BookingDate) {
		s.Reasons = append(s.Reasons, model.ReasonDateInWindow)
	}
	switch {
	case normalize.VendorMatch(tv.vendor, dv.vendor):
		s.Reasons = append(s.Reasons, model.ReasonVendorMatch)
	case len(tv.vendor) > 0 && len(dv.vendor) > 0 && s.Vendor >= normalize.VendorSimilarThreshold:
		s.Reasons = append(s.Reasons, model.ReasonVendorSimilar)
	}
	return s
}

// scoreGroup scores a multi-entity relation: amount closeness of the totals,
// and date and vendor averaged over every tx/doc pair.
func scoreGroup(r Relation, cfg tolerance.Config) Score {
	s := Score{Amount: amountCloseness(sumTxs(r.Txs), sumDocs(r.Docs), cfg)}

	var dateSum, vendorSum float64
	dateAll, vendorAll := true, true
	pairs := 0
	for _, tx := range r.Txs {
		tv := newTxView(tx)
		for _, d := range r.Docs {
			dv := newDocView(d, cfg)
			p := scorePair(tv, dv, cfg)
			dateSum += p.Date
			vendorSum += p.Vendor
			dateAll = dateAll && !dv.window.Unbounded && dv.window.Contains(tx.BookingDate)
			vendorAll = vendorAll && normalize.VendorMatch(tv.vendor, dv.vendor)
			pairs++
		}
	}
	if pairs > 0 {
		s.Date = dateSum / float64(pairs)
		s.Vendor = vendorSum / float64(pairs)
	}
	blended := weightAmount*s.Amount + weightDate*s.Date + weightVendor*s.Vendor
	s.Confidence = min(blended*multiEntityFactor, cfg.SoftConfidenceCap)

	if tolerance.AmountCompatible(sumTxs(r.Txs), sumDocs(r.Docs), cfg) {
		s.Reasons = append(s.Reasons, model.ReasonAmountMatch, model.ReasonSubsetSum)
	}
	if pairs > 0 && dateAll {
		s.Reasons = append(s.Reasons, model.ReasonDateInWindow)
	}
	if pairs > 0 && vendorAll {
		s.Reasons = append(s.Reasons, model.ReasonVendorMatch)
	}
	return s
}

// Match turns each relation into one scored decision.
//
// Only uncontested relations without linked documents can become final, and
// only when their confidence reaches AutoFinalThreshold. many_to_many
// relations are capped at ConflictCap and are never final.
func (m *Matcher) Match(relations []Relation) []model.MatchDecision {
	decisions := make([]model.MatchDecision, 0, len(relations))
	for _, r := range relations {
		decisions = append(decisions, m.matchRelation(r))
	}
	return decisions
}

func (m *Matcher) matchRelation(r Relation) model.MatchDecision {
	var s Score
	if r.Type == model.RelationOneToOne && len(r.Txs) == 1 && len(r.Docs) == 1 {
		s = ScoreOneToOne(r.Txs[0], r.Docs[0], m.config)
	} else {
		s = scoreGroup(r, m.config)
	}

	tenant := ""
	if len(r.Txs) > 0 {
		tenant = r.Txs[0].TenantID
	}
	dec := newDecision(model.StateSuggested, r.Type, txIDs(r.Txs), docIDs(r.Docs), tenant)
	dec.ReasonCodes = model.DedupeStrings(s.Reasons)
	dec.Inputs["phase"] = "relations"
	dec.Inputs["score_amount"] = s.Amount
	dec.Inputs["score_date"] = s.Date
	dec.Inputs["score_vendor"] = s.Vendor

	confidence := s.Confidence
	if r.Contested {
		confidence *= contestedFactor
		dec.AddReason(model.ReasonContested)
	}
	if r.Linked {
		dec.AddReason(model.ReasonRecurringLinked)
	}
	if r.Type == model.RelationManyToMany {
		confidence = min(confidence, m.config.ConflictCap)
		dec.AddReason(model.ReasonManyToManyGroup)
	}
	dec.Confidence = tolerance.Clamp01(confidence)

	canFinal := r.Type != model.RelationManyToMany && !r.Contested && !r.Linked
	switch {
	case canFinal && dec.Confidence >= m.config.AutoFinalThreshold:
		dec.State = model.StateFinal
	case dec.Confidence >= m.config.SuggestionThreshold:
		dec.State = model.StateSuggested
	default:
		dec.State = model.StateAmbiguous
	}
	return dec
}
