package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harvestlab/topic-harvester/internal/history"
)

type fakeRepo struct {
	recs      []history.RunRecord
	recentErr error
	getErr    error
	lastLimit int
}

var _ history.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) RecordStart(context.Context, history.RunRecord) error  { return nil }
func (f *fakeRepo) RecordFinish(context.Context, history.RunRecord) error { return nil }

func (f *fakeRepo) Recent(_ context.Context, limit int) ([]history.RunRecord, error) {
	f.lastLimit = limit
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if limit > len(f.recs) {
		limit = len(f.recs)
	}
	return f.recs[:limit], nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (history.RunRecord, error) {
	if f.getErr != nil {
		return history.RunRecord{}, f.getErr
	}
	for _, rec := range f.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return history.RunRecord{}, history.ErrNotFound
}

func (f *fakeRepo) Close() error { return nil }

func sampleRecords() []history.RunRecord {
	started := time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	return []history.RunRecord{
		{
			ID:         "run-b",
			StartedAt:  started.Add(time.Hour),
			Status:     history.StatusRunning,
			Topics:     2,
			Requested:  10,
		},
		{
			ID:         "run-a",
			StartedAt:  started,
			FinishedAt: started.Add(5 * time.Minute),
			Status:     history.StatusSuccess,
			Topics:     2,
			Requested:  10,
			Discovered: 8,
			Completed:  7,
			Failed:     1,
			Appended:   7,
		},
	}
}

func withRunIDParam(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("run_id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestListRuns(t *testing.T) {
	repo := &fakeRepo{recs: sampleRecords()}
	h := newRunsHandler(repo, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rec := httptest.NewRecorder()
	h.list(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, defaultRunsLimit, repo.lastLimit)

	var body struct {
		Runs []runDTO `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Runs, 2)
	require.Equal(t, "run-b", body.Runs[0].RunID)
	require.Nil(t, body.Runs[0].FinishedAt)
	require.Equal(t, "run-a", body.Runs[1].RunID)
	require.NotNil(t, body.Runs[1].FinishedAt)
	require.Equal(t, int64(7), body.Runs[1].Appended)
}

func TestListRunsLimit(t *testing.T) {
	repo := &fakeRepo{recs: sampleRecords()}
	h := newRunsHandler(repo, zaptest.NewLogger(t))

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{name: "explicit", query: "?limit=5", wantCode: http.StatusOK, wantLimit: 5},
		{name: "capped", query: "?limit=5000", wantCode: http.StatusOK, wantLimit: maxRunsLimit},
		{name: "zero", query: "?limit=0", wantCode: http.StatusBadRequest},
		{name: "garbage", query: "?limit=lots", wantCode: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/runs"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.list(rec, req)
			require.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusOK {
				require.Equal(t, tc.wantLimit, repo.lastLimit)
			}
		})
	}
}

func TestListRunsRepoError(t *testing.T) {
	repo := &fakeRepo{recentErr: errors.New("disk on fire")}
	h := newRunsHandler(repo, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rec := httptest.NewRecorder()
	h.list(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to list runs")
}

func TestListRunsNilRepo(t *testing.T) {
	h := newRunsHandler(nil, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	rec := httptest.NewRecorder()
	h.list(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "run history unavailable")
}

func TestGetRun(t *testing.T) {
	repo := &fakeRepo{recs: sampleRecords()}
	h := newRunsHandler(repo, zaptest.NewLogger(t))

	req := withRunIDParam(httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-a", nil), "run-a")
	rec := httptest.NewRecorder()
	h.get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var dto runDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	require.Equal(t, "run-a", dto.RunID)
	require.Equal(t, history.StatusSuccess, dto.Status)
	require.NotNil(t, dto.FinishedAt)
	require.Equal(t, int64(8), dto.Discovered)
}

func TestGetRunNotFound(t *testing.T) {
	repo := &fakeRepo{recs: sampleRecords()}
	h := newRunsHandler(repo, zaptest.NewLogger(t))

	req := withRunIDParam(httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil), "missing")
	rec := httptest.NewRecorder()
	h.get(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "run not found")
}

func TestGetRunRepoError(t *testing.T) {
	repo := &fakeRepo{getErr: errors.New("locked")}
	h := newRunsHandler(repo, zaptest.NewLogger(t))

	req := withRunIDParam(httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-a", nil), "run-a")
	rec := httptest.NewRecorder()
	h.get(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouterWithAPIKey(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "harvester_probe_total"})
	reg.MustRegister(counter)
	counter.Inc()

	repo := &fakeRepo{recs: sampleRecords()}
	srv := New(repo, reg, Config{Addr: ":0", APIKey: "secret"}, zaptest.NewLogger(t))

	t.Run("missing key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "ok")
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics?api_key=secret", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "harvester_probe_total 1")

		// The earlier subtests already went through the request middleware.
		require.Contains(t, rec.Body.String(), "harvester_http_requests_total")
		require.Contains(t, rec.Body.String(), `route="/healthz"`)
	})

	t.Run("run by id via router", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-b", nil)
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var dto runDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		require.Equal(t, "run-b", dto.RunID)
	})
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	srv := New(&fakeRepo{}, prometheus.NewRegistry(), Config{Addr: "127.0.0.1:0"}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeBadAddress(t *testing.T) {
	srv := New(&fakeRepo{}, prometheus.NewRegistry(), Config{Addr: "127.0.0.1:notaport"}, zaptest.NewLogger(t))

	err := srv.Serve(context.Background())
	require.ErrorContains(t, err, "monitor server")
}
