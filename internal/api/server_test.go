package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/docmatch-backend/internal/api"
	"github.com/eshaffer321/docmatch-backend/internal/api/dto"
	"github.com/eshaffer321/docmatch-backend/internal/application/pipeline"
	"github.com/eshaffer321/docmatch-backend/internal/application/service"
	"github.com/eshaffer321/docmatch-backend/internal/domain/model"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/config"
	"github.com/eshaffer321/docmatch-backend/internal/infrastructure/storage"
)

const reconcileBody = `{
  "tenant_id": "tenant-1",
  "now": "2025-03-10T00:00:00Z",
  "docs": [
    {"id": "d1", "tenant_id": "tenant-1", "amount": "100.00", "currency": "EUR", "iban": "DE01234567", "link_state": "unlinked"},
    {"id": "d2", "tenant_id": "tenant-1", "amount": "55.00", "currency": "EUR", "link_state": "unlinked"}
  ],
  "txs": [
    {"id": "t1", "tenant_id": "tenant-1", "amount": "100.00", "direction": "out", "currency": "EUR",
     "booking_date": "2025-03-08T00:00:00Z", "iban": "DE01 2345 67", "link_state": "unlinked"}
  ]
}`

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewReconcileService(nil, repo, logger)
	server := api.NewServer(api.DefaultConfig(), repo, svc, logger)
	return server, repo
}

func do(t *testing.T, server *api.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(t, server, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var response dto.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
}

func TestServer_ReconcileFlow(t *testing.T) {
	server, repo := newTestServer(t)

	// Run the pipeline
	rec := do(t, server, http.MethodPost, "/api/reconcile", reconcileBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out pipeline.Output
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, 1, out.Prepass.FinalCount)
	assert.Equal(t, 1, out.Accepted)
	require.Len(t, out.DocLifecycle, 1)
	assert.Equal(t, "d2", out.DocLifecycle[0].DocID)
	assert.Equal(t, []string{"ApplyMatches", "SaveSuggestions", "Audit"}, repo.Calls)

	// The accepted group is queryable
	rec = do(t, server, http.MethodGet, "/api/groups?tenant_id=tenant-1&state=final", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var groups dto.GroupListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&groups))
	require.Equal(t, 1, groups.TotalCount)
	group := groups.Groups[0]
	assert.Equal(t, []string{"t1"}, group.TxIDs)

	rec = do(t, server, http.MethodGet, "/api/groups/tenant-1/"+group.GroupID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail dto.GroupResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, []dto.EdgeResponse{{TxID: "t1", DocID: "d1"}}, detail.Edges)

	// The audit trail carries the run id
	rec = do(t, server, http.MethodGet, "/api/audit?run_id="+out.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var audit dto.AuditListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&audit))
	assert.Equal(t, len(out.Decisions), audit.Count)

	// The run is recorded
	rec = do(t, server, http.MethodGet, "/api/runs/"+out.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run dto.RunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 1, run.PrepassHits)

	rec = do(t, server, http.MethodGet, "/api/stats?tenant_id=tenant-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats dto.StatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1, stats.GroupsByState["final"])
}

func TestServer_Reconcile_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"docs": [`, dto.ErrCodeBadRequest},
		{"unknown event", `{"event_type": "tx_deleted"}`, dto.ErrCodeValidation},
		{"bad amount", `{"txs": [{"id": "t1", "amount": "ten"}]}`, dto.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, repo := newTestServer(t)

			rec := do(t, server, http.MethodPost, "/api/reconcile", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var apiErr dto.APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.Empty(t, repo.Calls)
		})
	}
}

func TestServer_Reconcile_DryRun(t *testing.T) {
	server, repo := newTestServer(t)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(reconcileBody), &body))
	body["dry_run"] = true
	body["debug"] = true
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	rec := do(t, server, http.MethodPost, "/api/reconcile", string(raw))

	require.Equal(t, http.StatusOK, rec.Code)
	var out pipeline.Output
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.False(t, out.Persisted)
	require.NotNil(t, out.Debug)
	assert.Equal(t, 2, out.Debug.InputDocs)
	assert.Empty(t, repo.Calls)
}

func TestServer_Reconcile_RepositoryFailure(t *testing.T) {
	server, repo := newTestServer(t)
	repo.ApplyMatchesErr = assert.AnError

	rec := do(t, server, http.MethodPost, "/api/reconcile", reconcileBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var apiErr dto.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
	assert.Equal(t, dto.ErrCodeInternalError, apiErr.Code)
}

func TestServer_ReconcileJobs(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(t, server, http.MethodPost, "/api/reconcile/jobs", reconcileBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started dto.StartJobResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	assert.Equal(t, "pending", started.Status)

	require.Eventually(t, func() bool {
		rec := do(t, server, http.MethodGet, "/api/reconcile/jobs/"+started.JobID, "")
		var job dto.JobResponse
		_ = json.NewDecoder(rec.Body).Decode(&job)
		return job.Status == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, server, http.MethodGet, "/api/reconcile/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all dto.JobListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Equal(t, 1, all.Count)
	require.NotNil(t, all.Jobs[0].Output)
	assert.Equal(t, started.JobID, all.Jobs[0].Output.RunID)

	rec = do(t, server, http.MethodGet, "/api/reconcile/jobs?active=true", "")
	var active dto.JobListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&active))
	assert.Equal(t, 0, active.Count)

	rec = do(t, server, http.MethodDelete, "/api/reconcile/jobs/"+started.JobID, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "finished jobs cannot be cancelled")

	rec = do(t, server, http.MethodDelete, "/api/reconcile/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, server, http.MethodGet, "/api/reconcile/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ImportHistory(t *testing.T) {
	server, repo := newTestServer(t)
	body := `{"txs": [
		{"id": "h1", "tenant_id": "tenant-1", "amount": "12.99", "direction": "out",
		 "booking_date": "2025-02-10T00:00:00Z", "counterparty_name": "Netflix"}
	]}`

	rec := do(t, server, http.MethodPost, "/api/history", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.ImportHistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Saved)

	history, err := repo.LoadTxHistory(context.Background(), "tenant-1", model.HistoryQuery{
		VendorKey: "netflix",
		Before:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestServer_ReadOnlyWithoutService(t *testing.T) {
	repo := storage.NewMockRepository()
	server := api.NewServer(api.DefaultConfig(), repo, nil, nil)

	rec := do(t, server, http.MethodPost, "/api/reconcile", reconcileBody)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, server, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/groups", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigFrom(t *testing.T) {
	cfg := api.ConfigFrom(config.ServerConfig{Port: 9000})

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, api.DefaultConfig().AllowedOrigins, cfg.AllowedOrigins)
}
