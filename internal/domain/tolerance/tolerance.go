package tolerance

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// Tolerance returns the allowed difference between a and b.
func Tolerance(a, b decimal.Decimal, cfg Config) decimal.Decimal {
	larger := decimal.Max(a.Abs(), b.Abs())
	pct := larger.Mul(decimal.NewFromFloat(cfg.AmountPctTolerance))
	return decimal.Max(cfg.AmountAbsTolerance, pct)
}

// AmountCompatible reports whether a and b are equal within tolerance.
func AmountCompatible(a, b decimal.Decimal, cfg Config) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance(a, b, cfg))
}

// Window is an inclusive date range at day granularity.
type Window struct {
	Start     time.Time
	End       time.Time
	Anchor    time.Time
	Unbounded bool
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Unbounded {
		return true
	}
	d := Day(t)
	return !d.Before(Day(w.Start)) && !d.After(Day(w.End))
}

// SpanDays is the length of the window in days.
func (w Window) SpanDays() int {
	if w.Unbounded {
		return 0
	}
	return DaysBetween(w.Start, w.End)
}

// Anchor returns the date a document's payment window is built around and
// whether it came from the due date.
func Anchor(d model.Doc, cfg Config) (time.Time, bool, bool) {
	switch {
	case d.DueDate != nil && !d.DueDate.IsZero():
		return *d.DueDate, true, true
	case d.InvoiceDate != nil && !d.InvoiceDate.IsZero():
		return *d.InvoiceDate, false, true
	case !cfg.DefaultAnchor.IsZero():
		return cfg.DefaultAnchor, false, true
	default:
		return time.Time{}, false, false
	}
}

// CalcWindow computes the booking-date window in which a payment for d is expected.
func CalcWindow(d model.Doc, cfg Config) Window {
	anchor, isDue, ok := Anchor(d, cfg)
	if !ok {
		return Window{Unbounded: true}
	}
	anchor = Day(anchor)
	switch {
	case isDue:
		return Window{
			Start:  anchor.AddDate(0, 0, -cfg.DateWindowDays),
			End:    anchor.AddDate(0, 0, cfg.GraceDays),
			Anchor: anchor,
		}
	case d.InvoiceDate != nil && !d.InvoiceDate.IsZero():
		return Window{
			Start:  anchor.AddDate(0, 0, -cfg.DaysBeforeInvoice),
			End:    anchor.AddDate(0, 0, cfg.DateWindowDays),
			Anchor: anchor,
		}
	default:
		return Window{
			Start:  anchor.AddDate(0, 0, -cfg.DateWindowDays),
			End:    anchor.AddDate(0, 0, cfg.DateWindowDays),
			Anchor: anchor,
		}
	}
}

// IsOverdue reports whether at lies past the document's due date plus grace.
func IsOverdue(d model.Doc, at time.Time, cfg Config) bool {
	if d.DueDate == nil || d.DueDate.IsZero() {
		return false
	}
	deadline := Day(*d.DueDate).AddDate(0, 0, cfg.GraceDays)
	return Day(at).After(deadline)
}

// DirectionCompatible reports whether tx moves money the way doc expects.
func DirectionCompatible(d model.Doc, tx model.Tx) bool {
	return tx.Direction == d.ExpectedDirection()
}

// CanonicalCurrency upper-cases a currency code, falling back to the default.
func CanonicalCurrency(c string, cfg Config) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return strings.ToUpper(cfg.DefaultCurrency)
	}
	return c
}

// CurrencySupported reports whether the currency may be matched at all.
func CurrencySupported(c string, cfg Config) bool {
	if len(cfg.SupportedCurrencies) == 0 {
		return true
	}
	c = CanonicalCurrency(c, cfg)
	for _, s := range cfg.SupportedCurrencies {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}

// CurrencyCompatible reports whether doc and tx share a supported currency.
func CurrencyCompatible(d model.Doc, tx model.Tx, cfg Config) bool {
	dc := CanonicalCurrency(d.Currency, cfg)
	return dc == CanonicalCurrency(tx.Currency, cfg) && CurrencySupported(dc, cfg)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of whole days between a and b.
func DaysBetween(a, b time.Time) int {
	hours := Day(b).Sub(Day(a)).Hours()
	return int(math.Abs(math.Round(hours / 24)))
}
