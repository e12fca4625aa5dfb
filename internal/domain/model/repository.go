package model

import (
	"context"
	"time"
)

// HistoryQuery bounds a transaction history lookup.
type HistoryQuery struct {
	LookbackDays int
	Limit        int
	VendorKey    string
	// Before is the reference date of the lookback; zero means now.
	Before time.Time
}

// MatchRepository is the only mutable resource the pipeline talks to.
// Implementations must treat writes as idempotent upserts so retried runs
// converge.
type MatchRepository interface {
	// ApplyMatches persists accepted final/partial decisions.
	ApplyMatches(ctx context.Context, decisions []MatchDecision) error

	// SaveSuggestions persists suggested/ambiguous decisions.
	SaveSuggestions(ctx context.Context, decisions []MatchDecision) error

	// Audit records every decision of a run, persistable or not.
	Audit(ctx context.Context, decisions []MatchDecision) error

	// LoadTxHistory returns past transactions of a tenant, newest first.
	LoadTxHistory(ctx context.Context, tenantID string, q HistoryQuery) ([]Tx, error)
}
