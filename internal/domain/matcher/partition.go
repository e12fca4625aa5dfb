package matcher

import "github.com/eshaffer321/docmatch-backend/internal/domain/model"

// Partition splits docs and txs into pools. Entities that are already linked
// or partially linked never enter the matching pools. A tenant lands in the
// doc/tx pool only when it has at least one matchable document and one
// matchable transaction. Input order is preserved within each pool.
func Partition(docs []model.Doc, txs []model.Tx) Pools {
	var p Pools

	docTenants := make(map[string]bool)
	txTenants := make(map[string]bool)
	for _, d := range docs {
		if d.LinkState.Matchable() {
			docTenants[d.TenantID] = true
		}
	}
	for _, tx := range txs {
		if tx.LinkState.Matchable() {
			txTenants[tx.TenantID] = true
		}
	}

	for _, d := range docs {
		switch {
		case !d.LinkState.Matchable():
			p.LinkedDocs = append(p.LinkedDocs, d)
		case txTenants[d.TenantID]:
			p.Docs = append(p.Docs, d)
		default:
			p.DocOnly = append(p.DocOnly, d)
		}
	}
	for _, tx := range txs {
		switch {
		case !tx.LinkState.Matchable():
			p.LinkedTxs = append(p.LinkedTxs, tx)
		case docTenants[tx.TenantID]:
			p.Txs = append(p.Txs, tx)
		default:
			p.TxOnly = append(p.TxOnly, tx)
		}
	}

	return p
}
