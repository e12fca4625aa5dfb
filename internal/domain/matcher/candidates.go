package matcher

import (
	"sort"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// BuildCandidates lists, per transaction, the documents it could pay: same
// tenant, supported currency, compatible direction and vendor, booking date
// inside the document window.
//
// Transactions with a recurring hint also get the tenant's linked documents
// from the same vendor, regardless of window, so a recurring payment can be
// recognized against an invoice that was matched before. Their link state
// is left untouched.
func (m *Matcher) BuildCandidates(txs []model.Tx, docs []model.Doc, linked []model.Doc) []Candidates {
	docv := make([]docView, len(docs))
	for i, d := range docs {
		docv[i] = newDocView(d, m.config)
	}
	linkedv := make([]docView, len(linked))
	for i, d := range linked {
		linkedv[i] = newDocView(d, m.config)
	}

	out := make([]Candidates, 0, len(txs))
	for _, tx := range txs {
		tv := newTxView(tx)
		c := Candidates{Tx: tx}
		for _, dv := range docv {
			if m.softCompatible(tv, dv) && dv.window.Contains(tx.BookingDate) {
				c.Docs = append(c.Docs, dv.Doc)
			}
		}
		if tx.RecurringHint {
			for _, dv := range linkedv {
				if len(tv.vendor) > 0 && m.softCompatible(tv, dv) && normalize.VendorMatch(tv.vendor, dv.vendor) {
					c.Docs = append(c.Docs, dv.Doc)
				}
			}
		}
		sort.SliceStable(c.Docs, func(i, j int) bool { return c.Docs[i].ID < c.Docs[j].ID })
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Tx.ID < out[j].Tx.ID })
	return out
}

// softCompatible applies the candidate filters shared by every soft phase.
func (m *Matcher) softCompatible(tv txView, dv docView) bool {
	if tv.TenantID != dv.TenantID {
		return false
	}
	if !tolerance.CurrencyCompatible(dv.Doc, tv.Tx, m.config) {
		return false
	}
	if !tolerance.DirectionCompatible(dv.Doc, tv.Tx) {
		return false
	}
	return normalize.VendorCompatible(tv.vendor, dv.vendor)
}
