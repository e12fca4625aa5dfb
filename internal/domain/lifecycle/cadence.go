package lifecycle

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Cadence is the detected period of a recurring payment.
type Cadence string

const (
	CadenceNone    Cadence = ""
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

// cadencePeriods are the mean day gaps each cadence is tested against.
var cadencePeriods = []struct {
	cadence Cadence
	days    float64
}{
	{CadenceWeekly, 7},
	{CadenceMonthly, 30.44},
	{CadenceYearly, 365.25},
}

// DetectCadence looks for a regular payment pattern of tx's vendor in
// history. It needs at least MinOccurrences payments (tx included) in the
// same direction, amounts within MaxAmountVariancePct of their mean, and a
// mean gap within DayVarianceTolerance days of a known period.
func DetectCadence(tx model.Tx, history []model.Tx, cfg tolerance.SubscriptionConfig) Cadence {
	if tx.VendorKey == "" {
		return CadenceNone
	}

	seen := map[string]bool{tx.ID: true}
	occ := []model.Tx{tx}
	for _, h := range history {
		if seen[h.ID] || h.VendorKey != tx.VendorKey || h.Direction != tx.Direction {
			continue
		}
		seen[h.ID] = true
		occ = append(occ, h)
	}
	if len(occ) < max(cfg.MinOccurrences, 2) {
		return CadenceNone
	}

	if !amountsStable(occ, cfg.MaxAmountVariancePct) {
		return CadenceNone
	}

	sort.Slice(occ, func(i, j int) bool {
		if !occ[i].BookingDate.Equal(occ[j].BookingDate) {
			return occ[i].BookingDate.Before(occ[j].BookingDate)
		}
		return occ[i].ID < occ[j].ID
	})
	var total float64
	for i := 1; i < len(occ); i++ {
		total += float64(tolerance.DaysBetween(occ[i-1].BookingDate, occ[i].BookingDate))
	}
	mean := total / float64(len(occ)-1)

	for _, p := range cadencePeriods {
		if math.Abs(mean-p.days) <= cfg.DayVarianceTolerance {
			return p.cadence
		}
	}
	return CadenceNone
}

// amountsStable reports whether every amount lies within pct percent of the mean.
func amountsStable(txs []model.Tx, pct float64) bool {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(txs))))
	if mean.IsZero() {
		return false
	}
	limit := mean.Abs().Mul(decimal.NewFromFloat(pct / 100))
	for _, tx := range txs {
		if tx.Amount.Sub(mean).Abs().GreaterThan(limit) {
			return false
		}
	}
	return true
}
