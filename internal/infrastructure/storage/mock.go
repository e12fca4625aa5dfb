package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/domain/projector"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
// History lookups may run concurrently, so every method takes the lock.
type MockRepository struct {
	mu sync.Mutex

	groups  map[string]*MatchGroup // keyed by tenant|group
	docs    map[string]model.LinkState
	txs     map[string]model.LinkState
	audit   []projector.AuditRecord
	history map[string][]model.Tx // keyed by tenant
	runs    map[string]*RunRecord

	// Hooks for test assertions
	ApplyMatchesCalled    bool
	LastApplied           []model.MatchDecision
	SaveSuggestionsCalled bool
	LastSuggestions       []model.MatchDecision
	AuditCalled           bool
	LastAudited           []model.MatchDecision
	LoadTxHistoryCalls    int
	LastHistoryQuery      model.HistoryQuery
	Calls                 []string // method names in call order

	// Error injection for testing error paths
	ApplyMatchesErr     error
	SaveSuggestionsErr  error
	AuditErr            error
	LoadTxHistoryErr    error
	SaveTransactionsErr error
	SaveRunErr          error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		groups:  make(map[string]*MatchGroup),
		docs:    make(map[string]model.LinkState),
		txs:     make(map[string]model.LinkState),
		history: make(map[string][]model.Tx),
		runs:    make(map[string]*RunRecord),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// ApplyMatches projects decisions into the in-memory tables
func (m *MockRepository) ApplyMatches(_ context.Context, decisions []model.MatchDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ApplyMatchesCalled = true
	m.LastApplied = decisions
	m.Calls = append(m.Calls, "ApplyMatches")
	if m.ApplyMatchesErr != nil {
		return m.ApplyMatchesErr
	}
	m.applyLocked(decisions)
	return nil
}

// SaveSuggestions projects suggestions into the in-memory tables
func (m *MockRepository) SaveSuggestions(_ context.Context, decisions []model.MatchDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveSuggestionsCalled = true
	m.LastSuggestions = decisions
	m.Calls = append(m.Calls, "SaveSuggestions")
	if m.SaveSuggestionsErr != nil {
		return m.SaveSuggestionsErr
	}
	m.applyLocked(decisions)
	return nil
}

func (m *MockRepository) applyLocked(decisions []model.MatchDecision) {
	for _, d := range decisions {
		ops, err := projector.ToApplyOps(d)
		if err != nil {
			continue
		}
		for _, op := range ops {
			switch op.Kind {
			case projector.OpUpsertGroup:
				g := m.groups[op.TenantID+"|"+op.GroupID]
				if g == nil {
					g = &MatchGroup{TenantID: op.TenantID, GroupID: op.GroupID}
					m.groups[op.TenantID+"|"+op.GroupID] = g
				}
				g.State = op.State
				g.RelationType = op.RelationType
				g.TxIDs = op.TxIDs
				g.DocIDs = op.DocIDs
				g.Confidence = op.Confidence
				g.ReasonCodes = op.ReasonCodes
				g.MatchedBy = op.MatchedBy
				g.UpdatedAt = time.Now()
			case projector.OpUpsertEdge:
				g := m.groups[op.TenantID+"|"+op.GroupID]
				if g == nil {
					g = &MatchGroup{TenantID: op.TenantID, GroupID: op.GroupID}
					m.groups[op.TenantID+"|"+op.GroupID] = g
				}
				edge := Edge{TxID: op.TxID, DocID: op.DocID}
				if !containsEdge(g.Edges, edge) {
					g.Edges = append(g.Edges, edge)
				}
			case projector.OpUpdateDoc:
				m.docs[op.TenantID+"|"+op.DocID] = op.LinkState
			case projector.OpUpdateTx:
				m.txs[op.TenantID+"|"+op.TxID] = op.LinkState
			case projector.OpUpdateInvoiceLineItem:
				// line items are not tracked by the mock
			}
		}
	}
}

func containsEdge(edges []Edge, e Edge) bool {
	for _, x := range edges {
		if x == e {
			return true
		}
	}
	return false
}

// Audit stores audit records in memory
func (m *MockRepository) Audit(_ context.Context, decisions []model.MatchDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AuditCalled = true
	m.LastAudited = decisions
	m.Calls = append(m.Calls, "Audit")
	if m.AuditErr != nil {
		return m.AuditErr
	}
	for _, d := range decisions {
		m.audit = append(m.audit, projector.ToAuditRecord(d))
	}
	return nil
}

// LoadTxHistory returns seeded history filtered like the SQLite query
func (m *MockRepository) LoadTxHistory(_ context.Context, tenantID string, q model.HistoryQuery) ([]model.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LoadTxHistoryCalls++
	m.LastHistoryQuery = q
	if m.LoadTxHistoryErr != nil {
		return nil, m.LoadTxHistoryErr
	}

	before := q.Before
	if before.IsZero() {
		before = time.Now()
	}
	var out []model.Tx
	for _, tx := range m.history[tenantID] {
		if q.VendorKey != "" && tx.VendorKey != q.VendorKey {
			continue
		}
		if tx.BookingDate.After(before) {
			continue
		}
		if q.LookbackDays > 0 && tx.BookingDate.Before(before.AddDate(0, 0, -q.LookbackDays)) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// SaveTransactions adds transactions to the in-memory history
func (m *MockRepository) SaveTransactions(_ context.Context, txs []model.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveTransactionsErr != nil {
		return 0, m.SaveTransactionsErr
	}
	for _, tx := range txs {
		m.history[tx.TenantID] = append(m.history[tx.TenantID], tx)
	}
	return len(txs), nil
}

// ListGroups returns stored groups, sorted by group id
func (m *MockRepository) ListGroups(_ context.Context, filters GroupFilters) (*GroupListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	var all []MatchGroup
	for _, g := range m.groups {
		if filters.TenantID != "" && g.TenantID != filters.TenantID {
			continue
		}
		if filters.State != "" && g.State != filters.State {
			continue
		}
		if filters.TxID != "" && !hasEdge(g.Edges, func(e Edge) bool { return e.TxID == filters.TxID }) {
			continue
		}
		if filters.DocID != "" && !hasEdge(g.Edges, func(e Edge) bool { return e.DocID == filters.DocID }) {
			continue
		}
		all = append(all, *g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].GroupID < all[j].GroupID })

	total := len(all)
	start := min(filters.Offset, total)
	end := min(start+filters.Limit, total)
	return &GroupListResult{
		Groups:     all[start:end],
		TotalCount: total,
		Limit:      filters.Limit,
		Offset:     filters.Offset,
	}, nil
}

func hasEdge(edges []Edge, match func(Edge) bool) bool {
	for _, e := range edges {
		if match(e) {
			return true
		}
	}
	return false
}

// GetGroup returns a stored group or nil
func (m *MockRepository) GetGroup(_ context.Context, tenantID, groupID string) (*MatchGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[tenantID+"|"+groupID]
	if !ok {
		return nil, nil
	}
	copied := *g
	return &copied, nil
}

// GetStats returns mock statistics
func (m *MockRepository) GetStats(_ context.Context, tenantID string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{GroupsByState: make(map[model.MatchState]int)}
	for _, g := range m.groups {
		if tenantID != "" && g.TenantID != tenantID {
			continue
		}
		stats.GroupsByState[g.State]++
		stats.TotalGroups++
		stats.TotalEdges += len(g.Edges)
	}
	for key, state := range m.docs {
		if tenantID != "" && !hasTenantPrefix(key, tenantID) {
			continue
		}
		switch state {
		case model.LinkLinked:
			stats.LinkedDocs++
		case model.LinkPartial:
			stats.PartialDocs++
		}
	}
	for key, state := range m.txs {
		if state == model.LinkLinked && (tenantID == "" || hasTenantPrefix(key, tenantID)) {
			stats.LinkedTxs++
		}
	}
	for _, rec := range m.audit {
		if tenantID == "" || rec.TenantID == tenantID {
			stats.AuditRecords++
		}
	}
	for tenant, txs := range m.history {
		if tenantID == "" || tenant == tenantID {
			stats.HistoryTxCount += len(txs)
		}
	}
	return stats, nil
}

func hasTenantPrefix(key, tenantID string) bool {
	return len(key) > len(tenantID) && key[:len(tenantID)+1] == tenantID+"|"
}

// ListAudit returns stored audit records, newest first
func (m *MockRepository) ListAudit(_ context.Context, filters AuditFilters) ([]projector.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filters.Limit <= 0 {
		filters.Limit = 100
	}
	var out []projector.AuditRecord
	for i := len(m.audit) - 1; i >= 0 && len(out) < filters.Limit; i-- {
		rec := m.audit[i]
		if filters.TenantID != "" && rec.TenantID != filters.TenantID {
			continue
		}
		if filters.RunID != "" && rec.RunID != filters.RunID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveRun stores a run record
func (m *MockRepository) SaveRun(_ context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveRunErr != nil {
		return m.SaveRunErr
	}
	copied := *run
	m.runs[run.RunID] = &copied
	return nil
}

// ListRuns returns stored runs, newest first
func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	runs := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetRun returns a stored run or nil
func (m *MockRepository) GetRun(_ context.Context, runID string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

// LinkStateOfDoc returns the link state the mock recorded for a document
func (m *MockRepository) LinkStateOfDoc(tenantID, docID string) model.LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[tenantID+"|"+docID]
}

// LinkStateOfTx returns the link state the mock recorded for a transaction
func (m *MockRepository) LinkStateOfTx(tenantID, txID string) model.LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs[tenantID+"|"+txID]
}
