package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// SubsetSum searches combinations of 2 to cfg.MaxBundleSize values, drawn from
// the first cfg.BundleCandidateCap entries, whose sum is amount-compatible
// with target. It returns the indexes of the combination closest to target,
// preferring fewer values on ties, or nil if none fits.
//
// With requireNegative set, only combinations containing at least one
// negative value qualify.
func SubsetSum(values []decimal.Decimal, target decimal.Decimal, cfg tolerance.Config, requireNegative bool) []int {
	n := len(values)
	if n > cfg.BundleCandidateCap {
		n = cfg.BundleCandidateCap
	}
	maxSize := cfg.MaxBundleSize
	if maxSize < 2 {
		maxSize = 2
	}

	var best []int
	var bestDiff decimal.Decimal
	combo := make([]int, 0, maxSize)

	var walk func(start int, sum decimal.Decimal, negative bool)
	walk = func(start int, sum decimal.Decimal, negative bool) {
		if len(combo) >= 2 && (negative || !requireNegative) && tolerance.AmountCompatible(sum, target, cfg) {
			diff := sum.Sub(target).Abs()
			if best == nil || diff.LessThan(bestDiff) || (diff.Equal(bestDiff) && len(combo) < len(best)) {
				best = append(best[:0:0], combo...)
				bestDiff = diff
			}
		}
		if len(combo) == maxSize {
			return
		}
		for i := start; i < n; i++ {
			combo = append(combo, i)
			walk(i+1, sum.Add(values[i]), negative || values[i].IsNegative())
			combo = combo[:len(combo)-1]
		}
	}
	walk(0, decimal.Zero, false)

	return best
}

// SubsetSumDocs finds documents whose targets together cover amount.
func SubsetSumDocs(docs []model.Doc, amount decimal.Decimal, cfg tolerance.Config) []model.Doc {
	values := make([]decimal.Decimal, len(docs))
	for i, d := range docs {
		values[i] = d.Target()
	}
	idx := SubsetSum(values, amount, cfg, false)
	if idx == nil {
		return nil
	}
	out := make([]model.Doc, len(idx))
	for i, j := range idx {
		out[i] = docs[j]
	}
	return out
}

// SubsetSumTxs finds transactions whose amounts together cover target.
func SubsetSumTxs(txs []model.Tx, target decimal.Decimal, cfg tolerance.Config) []model.Tx {
	values := make([]decimal.Decimal, len(txs))
	for i, tx := range txs {
		values[i] = tx.Amount
	}
	idx := SubsetSum(values, target, cfg, false)
	if idx == nil {
		return nil
	}
	out := make([]model.Tx, len(idx))
	for i, j := range idx {
		out[i] = txs[j]
	}
	return out
}

// sumDocs adds up document targets.
func sumDocs(docs []model.Doc) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range docs {
		sum = sum.Add(d.Target())
	}
	return sum
}

// sumTxs adds up transaction amounts.
func sumTxs(txs []model.Tx) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum
}
