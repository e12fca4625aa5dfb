package pipeline

import (
	"log/slog"
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/lifecycle"
	"github.com/eshaffer321/docmatch-backend/internal/domain/matcher"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Run phases reported through Options.ProgressCallback.
const (
	PhaseFilter    = "filter"
	PhaseLifecycle = "lifecycle"
	PhasePrepass   = "prepass"
	PhaseItemFirst = "item_first"
	PhaseRelations = "relations"
	PhaseResolve   = "resolve"
	PhasePersist   = "persist"
	PhaseDone      = "done"
)

// Input is the batch a run reconciles.
type Input struct {
	Docs []model.Doc `json:"docs"`
	Txs  []model.Tx  `json:"txs"`
	// Now is the reference time for overdue and awaiting checks; zero means the wall clock.
	Now time.Time `json:"now"`
}

// ProgressUpdate reports the phase a run has reached.
type ProgressUpdate struct {
	Phase     string
	Docs      int
	Txs       int
	Decisions int
}

// Options holds run configuration
type Options struct {
	RunID          string // generated when empty
	TenantFilter   string
	Limits         tolerance.Limits
	ConfigOverride *tolerance.Override
	EventType      model.EventType
	Debug          bool
	DryRun         bool // compute decisions but skip every repository write

	ProgressCallback func(ProgressUpdate)
}

// PrepassSummary reports what the hard-identifier prepass decided.
type PrepassSummary struct {
	FinalCount int                  `json:"final_count"`
	Stats      matcher.PrepassStats `json:"stats"`
}

// DebugCounters exposes the size of every intermediate result of a run.
type DebugCounters struct {
	InputDocs    int `json:"input_docs"`
	InputTxs     int `json:"input_txs"`
	FilteredDocs int `json:"filtered_docs"`
	FilteredTxs  int `json:"filtered_txs"`

	PoolDocs       int `json:"pool_docs"`
	PoolTxs        int `json:"pool_txs"`
	DocOnly        int `json:"doc_only"`
	TxOnly         int `json:"tx_only"`
	LinkedDocs     int `json:"linked_docs"`
	LinkedTxs      int `json:"linked_txs"`
	HistoryLoads   int `json:"history_loads"`
	Subscriptions  int `json:"subscriptions"`
	PrepassMatched int `json:"prepass_matched"`

	ItemFirstDecisions int                        `json:"item_first_decisions"`
	CandidateTxs       int                        `json:"candidate_txs"`
	Relations          map[model.RelationType]int `json:"relations"`
	MatcherDecisions   int                        `json:"matcher_decisions"`
	TenantBackfilled   int                        `json:"tenant_backfilled"`

	Accepted    int `json:"accepted"`
	Suggestions int `json:"suggestions"`
}

// Output is the result of a run.
type Output struct {
	RunID        string                `json:"run_id"`
	Decisions    []model.MatchDecision `json:"decisions"`
	DocLifecycle []lifecycle.DocResult `json:"doc_lifecycle"`
	TxLifecycle  []lifecycle.TxResult  `json:"tx_lifecycle"`
	Prepass      PrepassSummary        `json:"prepass"`
	Debug        *DebugCounters        `json:"debug,omitempty"`
	Accepted     int                   `json:"accepted"`
	Suggested    int                   `json:"suggested"`
	Persisted    bool                  `json:"persisted"`
}

// Pipeline runs the reconciliation phases against a repository
type Pipeline struct {
	repo   model.MatchRepository
	config tolerance.Config
	limits tolerance.Limits
	logger *slog.Logger
}

// NewPipeline creates a new pipeline. A nil repository makes every run a
// dry run without history lookups.
func NewPipeline(
	repo model.MatchRepository,
	config tolerance.Config,
	limits tolerance.Limits,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxRelationsPerTx <= 0 {
		limits.MaxRelationsPerTx = tolerance.DefaultLimits().MaxRelationsPerTx
	}
	return &Pipeline{
		repo:   repo,
		config: config.Sanitized(),
		limits: limits,
		logger: logger,
	}
}

// Config returns the base configuration of the pipeline.
func (p *Pipeline) Config() tolerance.Config {
	return p.config
}
