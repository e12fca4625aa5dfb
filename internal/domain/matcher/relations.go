package matcher

import (
	"sort"
	"strings"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// relationSet collects relations, dropping duplicates and enforcing the
// per-transaction cap.
type relationSet struct {
	maxPerTx  int
	relations []Relation
	seen      map[string]bool
	perTx     map[string]int
}

func newRelationSet(maxPerTx int) *relationSet {
	return &relationSet{
		maxPerTx: maxPerTx,
		seen:     make(map[string]bool),
		perTx:    make(map[string]int),
	}
}

func (s *relationSet) add(r Relation) bool {
	tx := txIDs(r.Txs)
	doc := docIDs(r.Docs)
	sort.Strings(tx)
	sort.Strings(doc)
	key := string(r.Type) + "|" + strings.Join(tx, ",") + "|" + strings.Join(doc, ",")
	if s.seen[key] {
		return false
	}
	if s.maxPerTx > 0 {
		for _, id := range tx {
			if s.perTx[id] >= s.maxPerTx {
				return false
			}
		}
	}
	s.seen[key] = true
	for _, id := range tx {
		s.perTx[id]++
	}
	for _, d := range r.Docs {
		if d.LinkState == model.LinkLinked || d.LinkState == model.LinkPartial {
			r.Linked = true
		}
	}
	s.relations = append(s.relations, r)
	return true
}

// DetectRelations classifies candidate sets by cardinality:
//   - one_to_one when exactly one candidate doc is amount-compatible with the
//     tx; several compatible docs yield one contested relation each
//   - one_to_many when a bounded subset of candidate docs sums to the tx
//   - many_to_one when a bounded subset of a doc's candidate txs sums to it
//   - many_to_many for the remaining connected groups of several txs and
//     several docs whose totals agree
//
// At most maxPerTx relations reference a single transaction (0 = no cap).
func (m *Matcher) DetectRelations(cands []Candidates, maxPerTx int) []Relation {
	set := newRelationSet(maxPerTx)

	txByID := make(map[string]model.Tx)
	docByID := make(map[string]model.Doc)
	docTxs := make(map[string][]string)
	singleFit := make(map[string]bool) // tx has an individually compatible doc
	docFit := make(map[string]bool)    // doc has an individually compatible tx

	for _, c := range cands {
		txByID[c.Tx.ID] = c.Tx
		for _, d := range c.Docs {
			docByID[d.ID] = d
			docTxs[d.ID] = append(docTxs[d.ID], c.Tx.ID)
		}
	}

	// one_to_one and one_to_many, per transaction
	for _, c := range cands {
		var fits []model.Doc
		for _, d := range c.Docs {
			if tolerance.AmountCompatible(c.Tx.Amount, d.Target(), m.config) {
				fits = append(fits, d)
			}
		}
		switch {
		case len(fits) == 1:
			set.add(Relation{Type: model.RelationOneToOne, Txs: []model.Tx{c.Tx}, Docs: fits})
		case len(fits) > 1:
			for _, d := range fits {
				set.add(Relation{Type: model.RelationOneToOne, Txs: []model.Tx{c.Tx}, Docs: []model.Doc{d}, Contested: true})
			}
		case len(c.Docs) >= 2:
			if docs := SubsetSumDocs(c.Docs, c.Tx.Amount, m.config); docs != nil {
				set.add(Relation{Type: model.RelationOneToMany, Txs: []model.Tx{c.Tx}, Docs: docs})
			}
		}
		if len(fits) > 0 {
			singleFit[c.Tx.ID] = true
			for _, d := range fits {
				docFit[d.ID] = true
			}
		}
	}

	// many_to_one, per document
	ids := make([]string, 0, len(docTxs))
	for id := range docTxs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if docFit[id] || len(docTxs[id]) < 2 {
			continue
		}
		txs := make([]model.Tx, 0, len(docTxs[id]))
		for _, txID := range docTxs[id] {
			if !singleFit[txID] {
				txs = append(txs, txByID[txID])
			}
		}
		sort.SliceStable(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
		if found := SubsetSumTxs(txs, docByID[id].Target(), m.config); found != nil {
			set.add(Relation{Type: model.RelationManyToOne, Txs: found, Docs: []model.Doc{docByID[id]}})
		}
	}

	// many_to_many over whatever no relation has touched yet
	touched := make(map[string]bool)
	for _, r := range set.relations {
		for _, tx := range r.Txs {
			touched["tx:"+tx.ID] = true
		}
		for _, d := range r.Docs {
			touched["doc:"+d.ID] = true
		}
	}
	for _, group := range m.components(cands, touched) {
		if len(group.Txs) < 2 || len(group.Docs) < 2 {
			continue
		}
		if len(group.Txs)+len(group.Docs) > 2*m.config.BundleCandidateCap {
			continue
		}
		if tolerance.AmountCompatible(sumTxs(group.Txs), sumDocs(group.Docs), m.config) {
			group.Type = model.RelationManyToMany
			set.add(group)
		}
	}

	return set.relations
}

// components returns the connected groups of the candidate graph restricted
// to untouched transactions and documents, with sorted members.
func (m *Matcher) components(cands []Candidates, touched map[string]bool) []Relation {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if parent[x] == x {
			return x
		}
		parent[x] = find(parent[x])
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	txByID := make(map[string]model.Tx)
	docByID := make(map[string]model.Doc)
	for _, c := range cands {
		tk := "tx:" + c.Tx.ID
		if touched[tk] {
			continue
		}
		for _, d := range c.Docs {
			dk := "doc:" + d.ID
			if touched[dk] {
				continue
			}
			if _, ok := parent[tk]; !ok {
				parent[tk] = tk
				txByID[tk] = c.Tx
			}
			if _, ok := parent[dk]; !ok {
				parent[dk] = dk
				docByID[dk] = d
			}
			union(tk, dk)
		}
	}

	groups := make(map[string]*Relation)
	var roots []string
	for k := range parent {
		root := find(k)
		g, ok := groups[root]
		if !ok {
			g = &Relation{}
			groups[root] = g
			roots = append(roots, root)
		}
		if tx, ok := txByID[k]; ok {
			g.Txs = append(g.Txs, tx)
		} else {
			g.Docs = append(g.Docs, docByID[k])
		}
	}
	sort.Strings(roots)

	out := make([]Relation, 0, len(roots))
	for _, root := range roots {
		g := groups[root]
		sort.Slice(g.Txs, func(i, j int) bool { return g.Txs[i].ID < g.Txs[j].ID })
		sort.Slice(g.Docs, func(i, j int) bool { return g.Docs[i].ID < g.Docs[j].ID })
		out = append(out, *g)
	}
	return out
}
