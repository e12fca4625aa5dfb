package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
)

// expectedMigrationCount is the number of migrations we expect to have
// Update this when adding new migrations
// Note: goose adds a version 0 entry when initializing, so total count is migrations + 1
const expectedMigrationCount = 3
const gooseVersionCount = expectedMigrationCount + 1 // includes goose's version 0 entry

func createTempDB(t *testing.T) string {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	tmpDB := createTempDB(t)
	t.Cleanup(func() { os.Remove(tmpDB) })

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func finalDecision(runID string) model.MatchDecision {
	open := decimal.NewFromInt(0)
	return model.MatchDecision{
		State:        model.StateFinal,
		RelationType: model.RelationManyToOne,
		TxIDs:        []string{"t1", "t2"},
		DocIDs:       []string{"d1"},
		Confidence:   0.92,
		ReasonCodes:  []string{model.ReasonSubsetSum},
		Inputs:       map[string]any{model.InputTenantID: "tenant-1", model.InputRunID: runID},
		MatchedBy:    model.MatchedBySystem,
		MatchGroupID: "group-1",
		MatchedLineItems: []model.LineItemAllocation{
			{DocID: "d1", LineItemKey: "line:0", TxID: "t1", Amount: decimal.NewFromInt(10), OpenAmountAfter: open},
		},
	}
}

func countRows(t *testing.T, s *Storage, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestMigrations_FreshDatabase(t *testing.T) {
	store := newTestStorage(t)

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE is_applied = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, gooseVersionCount, count, "Should have %d version entries (including goose init)", gooseVersionCount)

	for _, table := range []string{"transactions", "match_groups", "match_edges", "doc_links", "tx_links", "invoice_line_items", "match_audit", "reconcile_runs"} {
		err := store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(new(int))
		assert.NoError(t, err, "%s table should exist", table)
	}
}

func TestMigrations_Idempotency(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	store.Close()

	store, err = NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE is_applied = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, gooseVersionCount, count, "Should still have exactly %d version entries", gooseVersionCount)
}

func TestStorage_ApplyMatches(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()

	// Act
	err := store.ApplyMatches(ctx, []model.MatchDecision{finalDecision("run-1")})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, store, "match_groups"))
	assert.Equal(t, 2, countRows(t, store, "match_edges"))
	assert.Equal(t, 1, countRows(t, store, "doc_links"))
	assert.Equal(t, 2, countRows(t, store, "tx_links"))
	assert.Equal(t, 1, countRows(t, store, "invoice_line_items"))

	var linkState, openAmount string
	err = store.db.QueryRow("SELECT link_state, open_amount FROM doc_links WHERE tenant_id = ? AND doc_id = ?", "tenant-1", "d1").
		Scan(&linkState, &openAmount)
	require.NoError(t, err)
	assert.Equal(t, "linked", linkState)
	assert.Equal(t, "0", openAmount)

	group, err := store.GetGroup(ctx, "tenant-1", "group-1")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, model.StateFinal, group.State)
	assert.Equal(t, []string{"t1", "t2"}, group.TxIDs)
	assert.Equal(t, []Edge{{TxID: "t1", DocID: "d1"}, {TxID: "t2", DocID: "d1"}}, group.Edges)
}

func TestStorage_ApplyMatches_Idempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	d := finalDecision("run-1")

	require.NoError(t, store.ApplyMatches(ctx, []model.MatchDecision{d}))
	require.NoError(t, store.ApplyMatches(ctx, []model.MatchDecision{d}))

	assert.Equal(t, 1, countRows(t, store, "match_groups"))
	assert.Equal(t, 2, countRows(t, store, "match_edges"))
	assert.Equal(t, 2, countRows(t, store, "tx_links"))
}

func TestStorage_ApplyMatches_SkipsNonPersistable(t *testing.T) {
	store := newTestStorage(t)
	bad := finalDecision("run-1")
	bad.RelationType = model.RelationManyToMany

	err := store.ApplyMatches(context.Background(), []model.MatchDecision{bad})

	require.NoError(t, err)
	assert.Equal(t, 0, countRows(t, store, "match_groups"))
	assert.Equal(t, 0, countRows(t, store, "doc_links"))
}

func TestStorage_SaveSuggestions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	s := finalDecision("run-1")
	s.State = model.StateSuggested
	s.MatchedLineItems = nil

	require.NoError(t, store.SaveSuggestions(ctx, []model.MatchDecision{s}))

	result, err := store.ListGroups(ctx, GroupFilters{TenantID: "tenant-1", State: model.StateSuggested})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, "group-1", result.Groups[0].GroupID)

	// Suggestions never touch link state
	assert.Equal(t, 0, countRows(t, store, "doc_links"))
	assert.Equal(t, 0, countRows(t, store, "tx_links"))

	byTx, err := store.ListGroups(ctx, GroupFilters{TxID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, 1, byTx.TotalCount)
	none, err := store.ListGroups(ctx, GroupFilters{DocID: "d9"})
	require.NoError(t, err)
	assert.Equal(t, 0, none.TotalCount)
}

func TestStorage_Audit(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	good := finalDecision("run-1")
	bad := finalDecision("run-1")
	bad.DocIDs = nil

	require.NoError(t, store.Audit(ctx, []model.MatchDecision{good, bad}))
	// Retrying the same run does not duplicate records
	require.NoError(t, store.Audit(ctx, []model.MatchDecision{good, bad}))

	records, err := store.ListAudit(ctx, AuditFilters{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	persistable := map[bool]int{}
	for _, rec := range records {
		persistable[rec.Persistable]++
		assert.Equal(t, "tenant-1", rec.TenantID)
		assert.Equal(t, "run-1", rec.RunID)
	}
	assert.Equal(t, 1, persistable[true])
	assert.Equal(t, 1, persistable[false])

	other, err := store.ListAudit(ctx, AuditFilters{RunID: "run-2"})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStorage_TransactionHistory(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	tx := func(id, vendor string, daysAgo int) model.Tx {
		return model.Tx{
			ID:          id,
			TenantID:    "tenant-1",
			Amount:      decimal.NewFromFloat(9.99),
			Direction:   model.DirectionOut,
			Currency:    "EUR",
			BookingDate: day.AddDate(0, 0, -daysAgo),
			VendorKey:   vendor,
		}
	}
	saved, err := store.SaveTransactions(ctx, []model.Tx{
		tx("h1", "netflix", 30),
		tx("h2", "netflix", 60),
		tx("h3", "netflix", 500),
		tx("h4", "spotify", 30),
		tx("h5", "netflix", -5),
		{ID: "", TenantID: "tenant-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, saved)

	// Act
	history, err := store.LoadTxHistory(ctx, "tenant-1", model.HistoryQuery{
		LookbackDays: 400,
		Limit:        10,
		VendorKey:    "netflix",
		Before:       day,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "h1", history[0].ID)
	assert.Equal(t, "h2", history[1].ID)
	assert.True(t, history[0].Amount.Equal(decimal.NewFromFloat(9.99)))
	assert.Equal(t, model.LinkUnlinked, history[0].LinkState)
	assert.Equal(t, day.AddDate(0, 0, -30), history[0].BookingDate)

	limited, err := store.LoadTxHistory(ctx, "tenant-1", model.HistoryQuery{Limit: 1, Before: day})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	otherTenant, err := store.LoadTxHistory(ctx, "tenant-2", model.HistoryQuery{Before: day})
	require.NoError(t, err)
	assert.Empty(t, otherTenant)
}

func TestStorage_Runs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, &RunRecord{RunID: "run-1", StartedAt: started, CompletedAt: started.Add(time.Second), Status: "completed", Accepted: 3}))
	require.NoError(t, store.SaveRun(ctx, &RunRecord{RunID: "run-2", StartedAt: started.Add(time.Hour), CompletedAt: started.Add(time.Hour), Status: "failed", Error: "boom"}))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)

	run, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 3, run.Accepted)
	assert.True(t, run.StartedAt.Equal(started))

	missing, err := store.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_GetStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.ApplyMatches(ctx, []model.MatchDecision{finalDecision("run-1")}))
	require.NoError(t, store.Audit(ctx, []model.MatchDecision{finalDecision("run-1")}))

	stats, err := store.GetStats(ctx, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalGroups)
	assert.Equal(t, 1, stats.GroupsByState[model.StateFinal])
	assert.Equal(t, 2, stats.TotalEdges)
	assert.Equal(t, 1, stats.LinkedDocs)
	assert.Equal(t, 2, stats.LinkedTxs)
	assert.Equal(t, 1, stats.AuditRecords)

	empty, err := store.GetStats(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalGroups)
}
