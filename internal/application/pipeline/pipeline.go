// Package pipeline wires the matching phases into a single reconciliation
// run and talks to the repository.
//
// A run is a pure computation from (docs, txs, config) to decisions and
// lifecycle results, bracketed by two kinds of repository calls: optional
// transaction history loads before matching, and the three writes at the
// end. Every ordering inside the run is derived from content, so the same
// batch always yields the same decisions.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/docmatch-backend/internal/domain/lifecycle"
	"github.com/eshaffer321/docmatch-backend/internal/domain/matcher"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/normalize"
	"github.com/eshaffer321/docmatch-backend/internal/domain/resolver"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// Run reconciles one batch.
func (p *Pipeline) Run(ctx context.Context, in Input, opts Options) (*Output, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	cfg := p.config.Apply(opts.ConfigOverride)
	limits := p.runLimits(opts.Limits)
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	logger := p.logger.With("run_id", runID)
	debug := &DebugCounters{
		InputDocs: len(in.Docs),
		InputTxs:  len(in.Txs),
		Relations: make(map[model.RelationType]int),
	}
	progress := func(phase string, docs, txs, decisions int) {
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(ProgressUpdate{Phase: phase, Docs: docs, Txs: txs, Decisions: decisions})
		}
	}

	logger.Info("Starting reconciliation run",
		"docs", len(in.Docs),
		"txs", len(in.Txs),
		"tenant", opts.TenantFilter,
		"event", opts.EventType,
		"dry_run", opts.DryRun || p.repo == nil,
	)

	// Filter and normalize
	docs, txs := filterInput(in, opts.TenantFilter, limits, cfg)
	debug.FilteredDocs, debug.FilteredTxs = len(docs), len(txs)
	progress(PhaseFilter, len(docs), len(txs), 0)

	pools := matcher.Partition(docs, txs)
	debug.PoolDocs, debug.PoolTxs = len(pools.Docs), len(pools.Txs)
	debug.DocOnly, debug.TxOnly = len(pools.DocOnly), len(pools.TxOnly)
	debug.LinkedDocs, debug.LinkedTxs = len(pools.LinkedDocs), len(pools.LinkedTxs)
	logger.Debug("Partitioned batch",
		"pool_docs", debug.PoolDocs,
		"pool_txs", debug.PoolTxs,
		"doc_only", debug.DocOnly,
		"tx_only", debug.TxOnly,
		"linked_docs", debug.LinkedDocs,
		"linked_txs", debug.LinkedTxs,
	)

	// Lifecycle of entities without a counterpart
	evaluator := lifecycle.NewEvaluator(cfg)
	var history map[string][]model.Tx
	if p.historyEnabled(opts, cfg) {
		var err error
		history, err = p.loadHistory(ctx, append(append([]model.Tx(nil), pools.TxOnly...), pools.Txs...), cfg)
		if err != nil {
			return nil, err
		}
		debug.HistoryLoads = len(history)
	}

	docLifecycle := evaluator.EvaluateDocs(pools.DocOnly, docs, now)
	txLifecycle := evaluator.EvaluateTxs(pools.TxOnly, history)
	subscriptions := make(map[string]bool)
	for _, r := range txLifecycle {
		if r.IsSubscription() {
			subscriptions[r.TxID] = true
		}
	}
	debug.Subscriptions = len(subscriptions)
	progress(PhaseLifecycle, len(pools.DocOnly), len(pools.TxOnly), 0)

	// Undated documents are windowed around the run's reference time
	matchCfg := cfg
	if matchCfg.DefaultAnchor.IsZero() {
		matchCfg.DefaultAnchor = now
	}
	m := matcher.NewMatcher(matchCfg, logger)

	// Prepass
	pre := m.Prepass(pools.Docs, pools.Txs)
	debug.PrepassMatched = len(pre.Decisions)
	logger.Debug("Prepass finished", "final", len(pre.Decisions), "candidate_pairs", pre.Stats.CandidatePairs)
	progress(PhasePrepass, len(pre.Docs), len(pre.Txs), len(pre.Decisions))

	// Item-first
	items := m.ItemFirst(pre.Docs, pre.Txs)
	debug.ItemFirstDecisions = len(items.Decisions)
	logger.Debug("Item-first finished", "decisions", len(items.Decisions))
	progress(PhaseItemFirst, len(items.Docs), len(items.Txs), len(items.Decisions))

	// Relations over the remainder and tenant-less transactions
	relTxs := make([]model.Tx, 0, len(items.Txs)+len(pools.TxOnly))
	relTxs = append(relTxs, items.Txs...)
	for _, tx := range pools.TxOnly {
		if subscriptions[tx.ID] {
			tx.RecurringHint = true
		}
		relTxs = append(relTxs, tx)
	}
	cands := m.BuildCandidates(relTxs, items.Docs, pools.LinkedDocs)
	for _, c := range cands {
		if len(c.Docs) > 0 {
			debug.CandidateTxs++
		}
	}
	relations := m.DetectRelations(cands, limits.MaxRelationsPerTx)
	for _, r := range relations {
		debug.Relations[r.Type]++
	}
	matched := m.Match(relations)
	debug.MatcherDecisions = len(matched)
	logger.Debug("Relations scored", "relations", len(relations), "decisions", len(matched))
	progress(PhaseRelations, len(items.Docs), len(relTxs), len(matched))

	// Resolve
	decisions := make([]model.MatchDecision, 0, len(pre.Decisions)+len(items.Decisions)+len(matched))
	decisions = append(decisions, pre.Decisions...)
	decisions = append(decisions, items.Decisions...)
	decisions = append(decisions, matched...)
	decisions, debug.TenantBackfilled = backfillInputs(decisions, docs, txs, runID)

	res := resolver.Resolve(decisions)
	debug.Accepted, debug.Suggestions = len(res.Accepted), len(res.Suggestions)
	progress(PhaseResolve, 0, 0, len(res.All))

	// Unmatched entities of the matching pools
	docLifecycle = append(docLifecycle, evaluator.EvaluateDocs(unmatchedDocs(pools.Docs, res.Accepted), docs, now)...)
	txLifecycle = append(txLifecycle, evaluator.EvaluateTxs(unmatchedTxs(pools.Txs, res.Accepted), history)...)
	sort.SliceStable(docLifecycle, func(i, j int) bool { return docLifecycle[i].DocID < docLifecycle[j].DocID })
	sort.SliceStable(txLifecycle, func(i, j int) bool { return txLifecycle[i].TxID < txLifecycle[j].TxID })

	persisted := false
	if p.repo != nil && !opts.DryRun {
		if err := p.persist(ctx, res); err != nil {
			return nil, err
		}
		persisted = true
		progress(PhasePersist, 0, 0, len(res.All))
	}

	out := &Output{
		RunID:        runID,
		Decisions:    res.All,
		DocLifecycle: docLifecycle,
		TxLifecycle:  txLifecycle,
		Prepass:      PrepassSummary{FinalCount: len(pre.Decisions), Stats: pre.Stats},
		Accepted:     len(res.Accepted),
		Suggested:    len(res.Suggestions),
		Persisted:    persisted,
	}
	if opts.Debug {
		out.Debug = debug
	}
	progress(PhaseDone, 0, 0, len(res.All))

	logger.Info("Reconciliation run completed",
		"accepted", out.Accepted,
		"suggested", out.Suggested,
		"prepass_final", out.Prepass.FinalCount,
		"doc_lifecycle", len(out.DocLifecycle),
		"tx_lifecycle", len(out.TxLifecycle),
		"persisted", persisted,
	)
	return out, nil
}

// runLimits overlays per-run limits on the pipeline defaults.
func (p *Pipeline) runLimits(l tolerance.Limits) tolerance.Limits {
	out := p.limits
	if l.MaxDocs > 0 {
		out.MaxDocs = l.MaxDocs
	}
	if l.MaxTx > 0 {
		out.MaxTx = l.MaxTx
	}
	if l.MaxRelationsPerTx > 0 {
		out.MaxRelationsPerTx = l.MaxRelationsPerTx
	}
	return out
}

// persist writes accepted decisions, suggestions and the audit trail, in
// that order.
func (p *Pipeline) persist(ctx context.Context, res resolver.Resolution) error {
	if err := p.repo.ApplyMatches(ctx, res.Accepted); err != nil {
		return fmt.Errorf("failed to apply matches: %w", err)
	}
	if err := p.repo.SaveSuggestions(ctx, res.Suggestions); err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	if err := p.repo.Audit(ctx, res.All); err != nil {
		return fmt.Errorf("failed to write audit: %w", err)
	}
	return nil
}

func (p *Pipeline) historyEnabled(opts Options, cfg tolerance.Config) bool {
	return p.repo != nil &&
		opts.EventType == model.EventTxCreated &&
		cfg.Lifecycle.Subscription.HistoryEnabled
}

// loadHistory fetches the vendor history of every transaction with a vendor
// key, bounded by the configured concurrency. The result maps tx ids to
// their history.
func (p *Pipeline) loadHistory(ctx context.Context, txs []model.Tx, cfg tolerance.Config) (map[string][]model.Tx, error) {
	sub := cfg.Lifecycle.Subscription
	var targets []model.Tx
	for _, tx := range txs {
		if tx.VendorKey != "" {
			targets = append(targets, tx)
		}
	}
	results := make([][]model.Tx, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sub.Concurrency)
	for i, tx := range targets {
		i, tx := i, tx
		g.Go(func() error {
			h, err := p.repo.LoadTxHistory(gctx, tx.TenantID, model.HistoryQuery{
				LookbackDays: sub.LookbackDays,
				Limit:        sub.HistoryLimit,
				VendorKey:    tx.VendorKey,
				Before:       tx.BookingDate,
			})
			if err != nil {
				return fmt.Errorf("failed to load history for tx %s: %w", tx.ID, err)
			}
			results[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	history := make(map[string][]model.Tx, len(targets))
	for i, tx := range targets {
		history[tx.ID] = results[i]
	}
	p.logger.Debug("Loaded transaction history", "txs", len(targets))
	return history, nil
}

// filterInput applies the tenant filter and caps, then normalizes what is left.
func filterInput(in Input, tenant string, limits tolerance.Limits, cfg tolerance.Config) ([]model.Doc, []model.Tx) {
	docs := make([]model.Doc, 0, len(in.Docs))
	for _, d := range in.Docs {
		if tenant != "" && d.TenantID != tenant {
			continue
		}
		if limits.MaxDocs > 0 && len(docs) >= limits.MaxDocs {
			break
		}
		docs = append(docs, normalize.Doc(d, cfg.DefaultCurrency))
	}

	txs := make([]model.Tx, 0, len(in.Txs))
	for _, tx := range in.Txs {
		if tenant != "" && tx.TenantID != tenant {
			continue
		}
		if limits.MaxTx > 0 && len(txs) >= limits.MaxTx {
			break
		}
		txs = append(txs, normalize.Tx(tx, cfg.DefaultCurrency))
	}
	return docs, txs
}

// backfillInputs sets tenant_id from the referenced entities where it is
// missing and stamps every decision with the run id. It returns the number
// of decisions whose tenant was filled in.
func backfillInputs(decisions []model.MatchDecision, docs []model.Doc, txs []model.Tx, runID string) ([]model.MatchDecision, int) {
	txTenant := make(map[string]string, len(txs))
	for _, tx := range txs {
		txTenant[tx.ID] = tx.TenantID
	}
	docTenant := make(map[string]string, len(docs))
	for _, d := range docs {
		docTenant[d.ID] = d.TenantID
	}

	filled := 0
	out := make([]model.MatchDecision, len(decisions))
	for i, d := range decisions {
		c := d.Clone()
		if c.Inputs == nil {
			c.Inputs = make(map[string]any)
		}
		if c.TenantID() == "" {
			if tenant := tenantOf(c, txTenant, docTenant); tenant != "" {
				c.Inputs[model.InputTenantID] = tenant
				filled++
			}
		}
		c.Inputs[model.InputRunID] = runID
		out[i] = c
	}
	return out, filled
}

func tenantOf(d model.MatchDecision, txTenant, docTenant map[string]string) string {
	for _, id := range d.TxIDs {
		if t := txTenant[id]; t != "" {
			return t
		}
	}
	for _, id := range d.DocIDs {
		if t := docTenant[id]; t != "" {
			return t
		}
	}
	return ""
}

func unmatchedDocs(docs []model.Doc, accepted []model.MatchDecision) []model.Doc {
	used := make(map[string]bool)
	for _, d := range accepted {
		for _, id := range d.DocIDs {
			used[id] = true
		}
	}
	var out []model.Doc
	for _, d := range docs {
		if !used[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

func unmatchedTxs(txs []model.Tx, accepted []model.MatchDecision) []model.Tx {
	used := make(map[string]bool)
	for _, d := range accepted {
		for _, id := range d.TxIDs {
			used[id] = true
		}
	}
	var out []model.Tx
	for _, tx := range txs {
		if !used[tx.ID] {
			out = append(out, tx)
		}
	}
	return out
}
