// Package matcher pairs bank transactions with accounting documents.
//
// Matching runs in phases, each consuming what it matched so later phases
// only see the remainder:
//   - Prepass: unique one-to-one matches proven by a hard identifier
//     (IBAN, invoice number, end-to-end id, or amount+date+vendor)
//   - Item-first: transactions allocated to open invoice line items
//   - Candidates and relations: soft one-to-one, one-to-many, many-to-one
//     and many-to-many proposals, scored by the matchers
//
// Example usage:
//
//	m := matcher.NewMatcher(tolerance.DefaultConfig(), logger)
//	pools := matcher.Partition(docs, txs)
//	pre := m.Prepass(pools.Docs, pools.Txs)
//	items := m.ItemFirst(pre.Docs, pre.Txs)
//	cands := m.BuildCandidates(items.Txs, items.Docs, pools.LinkedDocs)
//	decisions := m.Match(m.DetectRelations(cands, 5))
package matcher

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/tolerance"
)

// groupNamespace seeds deterministic match group ids.
var groupNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://docmatch.dev/match-group"))

// Matcher runs the matching phases with a fixed configuration.
type Matcher struct {
	config tolerance.Config
	logger *slog.Logger
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config tolerance.Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		config: config.Sanitized(),
		logger: logger,
	}
}

// Config returns the sanitized configuration the matcher runs with.
func (m *Matcher) Config() tolerance.Config {
	return m.config
}

// GroupIDFor derives a stable match group id from the sorted entity ids, so
// re-running the same match always yields the same group.
func GroupIDFor(txIDs, docIDs []string) string {
	tx := append([]string(nil), txIDs...)
	doc := append([]string(nil), docIDs...)
	sort.Strings(tx)
	sort.Strings(doc)
	name := "tx:" + strings.Join(tx, ",") + "|doc:" + strings.Join(doc, ",")
	return uuid.NewSHA1(groupNamespace, []byte(name)).String()
}

// newDecision builds a system decision over txs and docs with sorted ids and
// a group id.
func newDecision(state model.MatchState, rel model.RelationType, txIDs, docIDs []string, tenantID string) model.MatchDecision {
	tx := model.DedupeStrings(append([]string(nil), txIDs...))
	doc := model.DedupeStrings(append([]string(nil), docIDs...))
	sort.Strings(tx)
	sort.Strings(doc)
	return model.MatchDecision{
		State:        state,
		RelationType: rel,
		TxIDs:        tx,
		DocIDs:       doc,
		Inputs:       map[string]any{model.InputTenantID: tenantID},
		MatchedBy:    model.MatchedBySystem,
		MatchGroupID: GroupIDFor(tx, doc),
	}
}

func txIDs(txs []model.Tx) []string {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	return ids
}

func docIDs(docs []model.Doc) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

func without[T any](items []T, id func(T) string, used map[string]bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !used[id(it)] {
			out = append(out, it)
		}
	}
	return out
}

func txID(tx model.Tx) string { return tx.ID }
func docID(d model.Doc) string { return d.ID }
