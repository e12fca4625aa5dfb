// Package tolerance holds the matching configuration and the tolerance rules
// every comparison in the pipeline goes through.
//
// Amounts are never compared for exact equality. Two amounts are compatible
// when their difference is within the larger of an absolute tolerance and a
// percentage of the larger magnitude:
//
//	|a-b| <= max(AmountAbsTolerance, AmountPctTolerance * max(|a|, |b|))
package tolerance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds matcher configuration
type Config struct {
	AmountAbsTolerance decimal.Decimal // Default: 0.01
	AmountPctTolerance float64         // Default: 0.001 (0.1%)

	DateWindowDays    int // Default: 30
	DaysBeforeInvoice int // Default: 5 (prepayments shortly before the invoice date)
	GraceDays         int // Default: 14

	// DefaultAnchor is the window anchor for documents without any date.
	// Zero means such documents get an unbounded window.
	DefaultAnchor time.Time

	DefaultCurrency     string   // Default: EUR
	SupportedCurrencies []string // Empty = any currency

	BundleCandidateCap int // Default: 20 open items/docs/txs searched for bundles
	MaxBundleSize      int // Default: 3

	SoftConfidenceCap   float64 // Default: 0.95, ceiling without hard signals
	AutoFinalThreshold  float64 // Default: 0.9
	SuggestionThreshold float64 // Default: 0.4, below this decisions are ambiguous
	ConflictCap         float64 // Default: 0.6

	PrepassDebug bool

	Lifecycle LifecycleConfig
}

// LifecycleConfig holds the thresholds for classifying unmatched entities.
type LifecycleConfig struct {
	EigenbelegMaxAmount decimal.Decimal // Default: 250
	FeeMaxAmount        decimal.Decimal // Default: 50
	FeeVendorKeys       []string

	RematchDaysBefore   int // Default: 7
	RematchDaysAfter    int // Default: 30
	PrepaymentDaysAfter int // Default: 90

	Subscription SubscriptionConfig
}

// SubscriptionConfig controls history-based subscription detection.
type SubscriptionConfig struct {
	HistoryEnabled       bool
	LookbackDays         int     // Default: 400
	HistoryLimit         int     // Default: 50
	MinOccurrences       int     // Default: 3
	MaxAmountVariancePct float64 // Default: 10
	DayVarianceTolerance float64 // Default: 4
	Concurrency          int     // Default: 4 concurrent history loads
}

// Limits caps the work of a single run.
type Limits struct {
	MaxDocs           int // 0 = unlimited
	MaxTx             int // 0 = unlimited
	MaxRelationsPerTx int // Default: 5
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountAbsTolerance:  decimal.NewFromFloat(0.01),
		AmountPctTolerance:  0.001,
		DateWindowDays:      30,
		DaysBeforeInvoice:   5,
		GraceDays:           14,
		DefaultCurrency:     "EUR",
		BundleCandidateCap:  20,
		MaxBundleSize:       3,
		SoftConfidenceCap:   0.95,
		AutoFinalThreshold:  0.9,
		SuggestionThreshold: 0.4,
		ConflictCap:         0.6,
		Lifecycle: LifecycleConfig{
			EigenbelegMaxAmount: decimal.NewFromInt(250),
			FeeMaxAmount:        decimal.NewFromInt(50),
			RematchDaysBefore:   7,
			RematchDaysAfter:    30,
			PrepaymentDaysAfter: 90,
			Subscription: SubscriptionConfig{
				LookbackDays:         400,
				HistoryLimit:         50,
				MinOccurrences:       3,
				MaxAmountVariancePct: 10,
				DayVarianceTolerance: 4,
				Concurrency:          4,
			},
		},
	}
}

// DefaultLimits returns the default run limits.
func DefaultLimits() Limits {
	return Limits{MaxRelationsPerTx: 5}
}

// Override carries per-run adjustments. Nil fields keep the base value.
type Override struct {
	AmountAbsTolerance  *decimal.Decimal `json:"amount_abs_tolerance,omitempty"`
	AmountPctTolerance  *float64         `json:"amount_pct_tolerance,omitempty"`
	DateWindowDays      *int             `json:"date_window_days,omitempty"`
	GraceDays           *int             `json:"grace_days,omitempty"`
	AutoFinalThreshold  *float64         `json:"auto_final_threshold,omitempty"`
	SubscriptionHistory *bool            `json:"subscription_history,omitempty"`
	PrepassDebug        *bool            `json:"prepass_debug,omitempty"`
}

// Apply returns a copy of c with the override's non-nil fields applied and
// every value clamped into a usable range.
func (c Config) Apply(o *Override) Config {
	out := c
	if o != nil {
		if o.AmountAbsTolerance != nil {
			out.AmountAbsTolerance = *o.AmountAbsTolerance
		}
		if o.AmountPctTolerance != nil {
			out.AmountPctTolerance = *o.AmountPctTolerance
		}
		if o.DateWindowDays != nil {
			out.DateWindowDays = *o.DateWindowDays
		}
		if o.GraceDays != nil {
			out.GraceDays = *o.GraceDays
		}
		if o.AutoFinalThreshold != nil {
			out.AutoFinalThreshold = *o.AutoFinalThreshold
		}
		if o.SubscriptionHistory != nil {
			out.Lifecycle.Subscription.HistoryEnabled = *o.SubscriptionHistory
		}
		if o.PrepassDebug != nil {
			out.PrepassDebug = *o.PrepassDebug
		}
	}
	return out.Sanitized()
}

// Sanitized clamps values instead of rejecting them so downstream math stays total.
func (c Config) Sanitized() Config {
	def := DefaultConfig()
	if c.AmountAbsTolerance.IsNegative() {
		c.AmountAbsTolerance = decimal.Zero
	}
	if c.AmountPctTolerance < 0 {
		c.AmountPctTolerance = 0
	}
	if c.DateWindowDays < 0 {
		c.DateWindowDays = 0
	}
	if c.DaysBeforeInvoice < 0 {
		c.DaysBeforeInvoice = 0
	}
	if c.GraceDays < 0 {
		c.GraceDays = 0
	}
	if c.BundleCandidateCap <= 0 {
		c.BundleCandidateCap = def.BundleCandidateCap
	}
	if c.MaxBundleSize < 2 {
		c.MaxBundleSize = def.MaxBundleSize
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = def.DefaultCurrency
	}
	c.SoftConfidenceCap = Clamp01(c.SoftConfidenceCap)
	c.AutoFinalThreshold = Clamp01(c.AutoFinalThreshold)
	c.SuggestionThreshold = Clamp01(c.SuggestionThreshold)
	c.ConflictCap = Clamp01(c.ConflictCap)
	if c.Lifecycle.Subscription.Concurrency <= 0 {
		c.Lifecycle.Subscription.Concurrency = 1
	}
	return c
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
