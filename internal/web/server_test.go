package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/crmimport/internal/config"
	"github.com/JonMunkholm/crmimport/internal/core"
	_ "github.com/JonMunkholm/crmimport/internal/core/entities"
	"github.com/JonMunkholm/crmimport/internal/ledger"
	"github.com/JonMunkholm/crmimport/internal/metrics"
)

const knownRun = "8f14e45f-ceea-467a-9af6-6d3a5b0c1a2e"

// fakeRuns serves one canned run.
type fakeRuns struct {
	filters      []ledger.RunFilter
	failureLimit int
	failureOff   int
	listErr      error
}

func (f *fakeRuns) ListRuns(_ context.Context, filter ledger.RunFilter) ([]ledger.Run, error) {
	f.filters = append(f.filters, filter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []ledger.Run{{ID: knownRun, Entity: "contacts", Status: ledger.StatusSucceeded}}, nil
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*ledger.Run, error) {
	if id != knownRun {
		return nil, fmt.Errorf("%w: %s", ledger.ErrRunNotFound, id)
	}
	return &ledger.Run{
		ID:      knownRun,
		Entity:  "contacts",
		Object:  "Contact",
		Status:  ledger.StatusFailed,
		Summary: &core.Summary{Rows: 12, Submitted: 10, Succeeded: 9, Failed: 1},
		Error:   "chunk 2/2: status 503",
	}, nil
}

func (f *fakeRuns) ListChunks(_ context.Context, runID string) ([]ledger.Chunk, error) {
	return []ledger.Chunk{{Index: 0, Size: 10, Succeeded: 9, Failed: 1}}, nil
}

func (f *fakeRuns) ListFailures(_ context.Context, runID string, limit, offset int) ([]ledger.Failure, error) {
	f.failureLimit, f.failureOff = limit, offset
	return []ledger.Failure{{Position: 3, ImportID: "CON00004", Code: "REQUIRED_FIELD_MISSING"}}, nil
}

func testConfig() config.ServerConfig {
	return config.ServerConfig{Host: "127.0.0.1", Port: 8080}
}

func do(t *testing.T, h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), Options{})
	rec := do(t, s.Router(), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["ledger"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestListEntities(t *testing.T) {
	s := NewServer(testConfig(), Options{})
	rec := do(t, s.Router(), http.MethodGet, "/api/entities", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	entities := decode[[]EntityResponse](t, rec)

	var keys []string
	byKey := map[string]EntityResponse{}
	for _, e := range entities {
		keys = append(keys, e.Key)
		byKey[e.Key] = e
	}
	assert.Equal(t, []string{"accounts", "assets", "contacts", "invoices", "product_structures"}, keys)
	assert.Equal(t, "Contact", byKey["contacts"].Object)
	assert.Equal(t, "Import_ID__c", byKey["contacts"].ImportID)
	assert.Contains(t, byKey["contacts"].Required, "Org_ID__c")
	assert.Equal(t, []string{"accounts"}, byKey["contacts"].References)
}

func TestRunEndpointsWithoutLedger(t *testing.T) {
	s := NewServer(testConfig(), Options{})

	for _, path := range []string{"/api/runs", "/api/runs/" + knownRun, "/api/runs/" + knownRun + "/chunks", "/api/runs/" + knownRun + "/failures"} {
		rec := do(t, s.Router(), http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Equal(t, "RUN007", decode[ErrorResponse](t, rec).Code, path)
	}
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{}
	s := NewServer(testConfig(), Options{Runs: runs})

	rec := do(t, s.Router(), http.MethodGet, "/api/runs?entity=contacts&status=failed&since=2026-01-02T03:04:05Z&limit=5000&offset=10", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]ledger.Run](t, rec), 1)
	require.Len(t, runs.filters, 1)
	assert.Equal(t, ledger.RunFilter{
		Entity: "contacts",
		Status: "failed",
		Since:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Limit:  maxListLimit,
		Offset: 10,
	}, runs.filters[0])
}

func TestListRunsBadInput(t *testing.T) {
	s := NewServer(testConfig(), Options{Runs: &fakeRuns{}})

	tests := []string{
		"/api/runs?since=yesterday",
		"/api/runs?limit=0",
		"/api/runs?limit=ten",
		"/api/runs?offset=-1",
	}
	for _, path := range tests {
		rec := do(t, s.Router(), http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "HTTP400", decode[ErrorResponse](t, rec).Code, path)
	}
}

func TestListRunsStoreError(t *testing.T) {
	s := NewServer(testConfig(), Options{Runs: &fakeRuns{listErr: errors.New("dial tcp: connection refused")}})

	rec := do(t, s.Router(), http.MethodGet, "/api/runs", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial tcp", "technical detail stays server-side")
}

func TestGetRun(t *testing.T) {
	s := NewServer(testConfig(), Options{Runs: &fakeRuns{}})

	rec := do(t, s.Router(), http.MethodGet, "/api/runs/"+knownRun, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[ledger.Run](t, rec)
	assert.Equal(t, ledger.StatusFailed, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 9, run.Summary.Succeeded)

	rec = do(t, s.Router(), http.MethodGet, "/api/runs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUN006", decode[ErrorResponse](t, rec).Code)
}

func TestRunChildren(t *testing.T) {
	runs := &fakeRuns{}
	s := NewServer(testConfig(), Options{Runs: runs})

	rec := do(t, s.Router(), http.MethodGet, "/api/runs/"+knownRun+"/chunks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ledger.Chunk](t, rec), 1)

	rec = do(t, s.Router(), http.MethodGet, "/api/runs/"+knownRun+"/failures?limit=20&offset=40", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	failures := decode[[]ledger.Failure](t, rec)
	require.Len(t, failures, 1)
	assert.Equal(t, "CON00004", failures[0].ImportID)
	assert.Equal(t, 20, runs.failureLimit)
	assert.Equal(t, 40, runs.failureOff)

	for _, path := range []string{"/api/runs/nope/chunks", "/api/runs/nope/failures"} {
		rec = do(t, s.Router(), http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestAPIKeysProtectAPIOnly(t *testing.T) {
	cfg := testConfig()
	cfg.APIKeys = []string{"secret"}
	s := NewServer(cfg, Options{Runs: &fakeRuns{}})

	assert.Equal(t, http.StatusUnauthorized, do(t, s.Router(), http.MethodGet, "/api/runs", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s.Router(), http.MethodGet, "/api/runs", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, s.Router(), http.MethodGet, "/healthz", nil).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerMinute = 2
	s := NewServer(cfg, Options{})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	h := s.Router()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	s := NewServer(testConfig(), Options{Metrics: collector, Gatherer: reg})

	do(t, s.Router(), http.MethodGet, "/api/entities", nil)
	rec := do(t, s.Router(), http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/entities"`)
}
