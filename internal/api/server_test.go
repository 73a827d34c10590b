package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/summons-reconcile/internal/api"
	"github.com/eshaffer321/summons-reconcile/internal/api/dto"
	"github.com/eshaffer321/summons-reconcile/internal/application/service"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/config"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
	"github.com/eshaffer321/summons-reconcile/internal/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, repo storage.Repository) (*api.Server, *service.ReconcileService) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	svc := service.NewReconcileService(config.MatchingConfig{}, repo, metrics, quietLogger())
	t.Cleanup(func() { _ = svc.Close() })

	server := api.NewServer(api.DefaultConfig(), repo, svc, reg, quietLogger())
	return server, svc
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func reconcileBody() map[string]any {
	return map[string]any{
		"source": "test",
		"targets": []map[string]any{
			{"label": "T1", "date": "2024-03-01", "amount": 6},
			{"label": "T2", "date": "2024-03-02", "amount": "6"},
		},
		"pool": []map[string]any{
			{"label": "P1", "date": "2024-03-01", "amount": 1},
			{"label": "P2", "date": "2024-03-01", "amount": 2},
			{"label": "P3", "date": "2024-03-01", "amount": 3},
			{"label": "P4", "date": "2024-03-01", "amount": 4},
			{"label": "P5", "date": "2024-03-01", "amount": -5},
		},
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, storage.NewMockRepository())

	rec := do(t, server.Router(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[dto.HealthResponse](t, rec).Status)
}

func TestServer_ReconcileLifecycle(t *testing.T) {
	repo := storage.NewMockRepository()
	server, svc := newTestServer(t, repo)
	h := server.Router()

	rec := do(t, h, http.MethodPost, "/api/reconcile", reconcileBody())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	started := decode[dto.StartReconcileResponse](t, rec)
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		return svc.LastJob().Outcome != "" && !svc.IsRunning()
	}, 2*time.Second, 5*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/api/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[dto.ReconcileStatusResponse](t, rec)
	assert.Equal(t, started.JobID, status.JobID)
	assert.Equal(t, "completed", status.Outcome)
	assert.Equal(t, 1.0, status.Progress)

	rec = do(t, h, http.MethodGet, "/api/runs/"+started.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[dto.RunDetailResponse](t, rec)
	assert.Equal(t, "completed", detail.Status)
	assert.Equal(t, "test", detail.Source)
	require.Len(t, detail.Results, 2)

	// Targets 6 and 6 against 1..5: {1,5} first, then {2,4} from what is left
	assert.True(t, detail.Results[0].Matched)
	assert.Equal(t, []string{"P1", "P5"}, labelsOf(detail.Results[0].Subset))
	assert.True(t, detail.Results[1].Matched)
	assert.Equal(t, []string{"P2", "P4"}, labelsOf(detail.Results[1].Subset))

	rec = do(t, h, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[dto.RunListResponse](t, rec).Count)
}

func labelsOf(records []dto.RecordResponse) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Label
	}
	return out
}

func TestServer_ReconcileValidation(t *testing.T) {
	server, _ := newTestServer(t, storage.NewMockRepository())
	h := server.Router()

	tests := []struct {
		name string
		body any
	}{
		{name: "missing targets", body: map[string]any{"pool": []any{}}},
		{name: "bad date", body: map[string]any{
			"targets": []map[string]any{{"label": "T", "date": "01/03/2024", "amount": 1}},
		}},
		{name: "fractional amount", body: map[string]any{
			"targets": []map[string]any{{"label": "T", "date": "2024-03-01", "amount": 1.5}},
		}},
		{name: "missing label", body: map[string]any{
			"targets": []map[string]any{{"date": "2024-03-01", "amount": 1}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/reconcile", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, dto.ErrCodeValidation, decode[dto.APIError](t, rec).Code)
		})
	}
}

func TestServer_CancelWithoutJob(t *testing.T) {
	server, _ := newTestServer(t, storage.NewMockRepository())

	rec := do(t, server.Router(), http.MethodDelete, "/api/reconcile", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StatusIdle(t *testing.T) {
	server, _ := newTestServer(t, storage.NewMockRepository())

	rec := do(t, server.Router(), http.MethodGet, "/api/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[dto.ReconcileStatusResponse](t, rec)
	assert.Equal(t, "idle", status.State)
	assert.Empty(t, status.JobID)
}

func TestServer_RunNotFound(t *testing.T) {
	server, _ := newTestServer(t, storage.NewMockRepository())

	rec := do(t, server.Router(), http.MethodGet, "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decode[dto.APIError](t, rec).Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server, svc := newTestServer(t, storage.NewMockRepository())
	h := server.Router()

	rec := do(t, h, http.MethodPost, "/api/reconcile", reconcileBody())
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		return svc.LastJob().Outcome != "" && !svc.IsRunning()
	}, 2*time.Second, 5*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reconcile_runs_total{outcome="completed"} 1`)
	assert.Contains(t, rec.Body.String(), `reconcile_targets_total{result="matched"} 2`)
}

func TestServer_WithoutReconciler(t *testing.T) {
	server := api.NewServer(api.DefaultConfig(), storage.NewMockRepository(), nil, nil, quietLogger())

	rec := do(t, server.Router(), http.MethodPost, "/api/reconcile", reconcileBody())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, server.Router(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
