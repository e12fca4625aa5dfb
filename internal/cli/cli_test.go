package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/docmatch-backend/internal/application/pipeline"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

const batchJSON = `{
  "tenant_id": "tenant-1",
  "now": "2025-03-10T00:00:00Z",
  "docs": [
    {"id": "d1", "tenant_id": "tenant-1", "amount": "100.00", "currency": "EUR", "iban": "DE01234567", "link_state": "unlinked"}
  ],
  "txs": [
    {"id": "t1", "tenant_id": "tenant-1", "amount": "100.00", "direction": "out", "currency": "EUR",
     "booking_date": "2025-03-08T00:00:00Z", "iban": "DE01234567", "link_state": "unlinked"}
  ]
}`

const historyJSON = `{
  "txs": [
    {"id": "h1", "tenant_id": "tenant-1", "amount": "12.99", "direction": "out",
     "booking_date": "2025-01-05T00:00:00Z", "counterparty_name": "Netflix International B.V."},
    {"id": "h2", "tenant_id": "tenant-1", "amount": "12.99", "direction": "out",
     "booking_date": "2025-02-05T00:00:00Z", "counterparty_name": "Netflix International B.V."}
  ]
}`

type testEnv struct {
	dir    string
	dbPath string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	return testEnv{dir: dir, dbPath: filepath.Join(dir, "docmatch.db")}
}

func (e testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e testEnv) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	base := []string{"--config", filepath.Join(e.dir, "missing.yaml"), "--db", e.dbPath}
	cmd.SetArgs(append(args[:1:1], append(base, args[1:]...)...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "batch.json", batchJSON)

	out, err := env.execute(t, "", "run", "--input", input)

	require.NoError(t, err)
	assert.Contains(t, out, "docmatch: run (PRODUCTION mode)")
	assert.Contains(t, out, "Accepted=1")
	assert.Contains(t, out, "HARD_IBAN_AMOUNT")
	assert.Contains(t, out, "Run completed successfully.")

	store, err := storage.NewStorage(env.dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	groups, err := store.ListGroups(context.Background(), storage.GroupFilters{TenantID: "tenant-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, groups.TotalCount)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
}

func TestRunCommand_DryRunJSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, batchJSON, "run", "--input", "-", "--dry-run", "--json", "--debug")

	require.NoError(t, err)
	var result pipeline.Output
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Accepted)
	assert.False(t, result.Persisted)
	require.NotNil(t, result.Debug)
	assert.Equal(t, 1, result.Debug.InputDocs)

	store, err := storage.NewStorage(env.dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunCommand_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{"missing input flag", "", []string{"run"}, "required flag"},
		{"missing file", "", []string{"run", "--input", filepath.Join(env.dir, "nope.json")}, "opening input"},
		{"invalid json", "{", []string{"run", "--input", "-"}, "decoding -"},
		{"invalid event", batchJSON, []string{"run", "--input", "-", "--event", "weekly"}, "reconcile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.execute(t, tt.stdin, tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImportHistoryCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "history.json", historyJSON)

	out, err := env.execute(t, "", "import-history", "--input", input)

	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2 transactions")
}

func TestGlobalFlags_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  database_path: from-file.db\n"), 0o644))

	t.Run("file values", func(t *testing.T) {
		cfg := (&GlobalFlags{ConfigPath: path}).LoadConfig()

		assert.Equal(t, "from-file.db", cfg.Storage.DatabasePath)
		assert.Equal(t, "info", cfg.Observability.Logging.Level)
	})

	t.Run("flag overrides", func(t *testing.T) {
		cfg := (&GlobalFlags{ConfigPath: path, DatabasePath: "flag.db", Verbose: true}).LoadConfig()

		assert.Equal(t, "flag.db", cfg.Storage.DatabasePath)
		assert.Equal(t, "debug", cfg.Observability.Logging.Level)
	})
}

func TestReportCommand(t *testing.T) {
	env := newTestEnv(t)
	input := env.write(t, "batch.json", batchJSON)
	_, err := env.execute(t, "", "run", "--input", input)
	require.NoError(t, err)

	out, err := env.execute(t, "", "report", "--tenant", "tenant-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Match groups: 1")
	assert.Contains(t, out, "final")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "tx=t1 doc=d1")
	assert.Contains(t, out, "HARD_IBAN_AMOUNT")
}

func TestReportCommand_EmptyDatabase(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.execute(t, "", "report")

	require.NoError(t, err)
	assert.Contains(t, out, "Match groups: 0")
	assert.Contains(t, out, "No runs recorded")
	assert.Contains(t, out, "No audit records")
}
