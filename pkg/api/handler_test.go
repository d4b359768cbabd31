package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deenly/progress-core/pkg/app"
	"github.com/deenly/progress-core/pkg/cache"
	"github.com/deenly/progress-core/pkg/common"
	"github.com/deenly/progress-core/pkg/config"
	"github.com/deenly/progress-core/pkg/kv"
	"github.com/deenly/progress-core/pkg/metrics"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog, err := config.NewCatalogLoader("", logger).LoadCatalog()
	require.NoError(t, err)

	state := app.New(app.Deps{
		Catalog: cache.NewInMemoryCatalogCache(catalog, "", logger),
		Store:   kv.NewMemoryStore(),
		Clock:   common.NewFixedClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)),
		Logger:  logger,
	})
	t.Cleanup(state.Close)
	require.NoError(t, state.Load(context.Background()))

	return NewRouter(NewHandler(state, logger), logger)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"prayers over total", "POST", "/api/v1/prayers", `{"completed": 9}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"malformed body", "POST", "/api/v1/quran", `{"pages":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"wrong field type", "POST", "/api/v1/tasbih", `{"count":"ten"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"negative tasbih", "POST", "/api/v1/tasbih", `{"count": -1}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"empty quran record", "POST", "/api/v1/quran", `{}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown challenge", "PUT", "/api/v1/challenges/weekly-unknown", `{"progress": 1}`, http.StatusNotFound, "CHALLENGE_NOT_FOUND"},
		{"unknown achievement", "GET", "/api/v1/achievements/dhikr-unknown", "", http.StatusNotFound, "ACHIEVEMENT_NOT_FOUND"},
		{"negative challenge progress", "PUT", "/api/v1/challenges/weekly-quran-reader", `{"progress": -4}`, http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			rec := do(t, srv, tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCompletePrayers(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "POST", "/api/v1/prayers", `{"completed": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[app.Outcome](t, rec)
	assert.Equal(t, 5, out.Daily.Prayers.Completed)
	assert.Equal(t, "2025-03-10", out.Daily.Date)

	snap := decodeBody[app.Snapshot](t, do(t, srv, "GET", "/api/v1/snapshot", ""))
	assert.Equal(t, []string{"2025-03-10"}, snap.Weekly.PrayerDays)
}

func TestTasbih_DefaultsToOneAndResets(t *testing.T) {
	srv := newTestServer(t)

	out := decodeBody[app.Outcome](t, do(t, srv, "POST", "/api/v1/tasbih", ""))
	assert.Equal(t, 1, out.TasbihSession)
	assert.Equal(t, 1, out.Daily.Dhikr.Count)

	out = decodeBody[app.Outcome](t, do(t, srv, "POST", "/api/v1/tasbih", `{"count": 32}`))
	assert.Equal(t, 33, out.TasbihSession)

	reset := decodeBody[map[string]int](t, do(t, srv, "POST", "/api/v1/tasbih/reset", ""))
	assert.Equal(t, 0, reset["tasbihSession"])

	snap := decodeBody[app.Snapshot](t, do(t, srv, "GET", "/api/v1/snapshot", ""))
	assert.Equal(t, 0, snap.TasbihSession)
	assert.Equal(t, 33, snap.Daily.Dhikr.Count)
}

func TestUpdateChallenge_CompletesAndAwards(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "PUT", "/api/v1/challenges/weekly-quran-reader", `{"progress": 25}`)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody[app.Outcome](t, rec)
	assert.Equal(t, 100, out.PointsAwarded)
	require.Len(t, out.Completed, 1)
	assert.Equal(t, 20, out.Completed[0].Progress, "progress is clamped to the target")

	pts := decodeBody[map[string]int](t, do(t, srv, "GET", "/api/v1/points", ""))
	assert.Equal(t, 100, pts["totalPoints"])
}

func TestLecturesAndWorkouts(t *testing.T) {
	srv := newTestServer(t)

	for range 3 {
		require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/lectures", "").Code)
	}
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/workouts", "").Code)
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/workouts", "").Code)

	challenges := decodeBody[[]map[string]any](t, do(t, srv, "GET", "/api/v1/challenges", ""))
	progress := map[string]float64{}
	for _, c := range challenges {
		progress[c["id"].(string)] = c["progress"].(float64)
	}
	assert.Equal(t, float64(3), progress["weekly-lecture-learner"])
	assert.Equal(t, float64(1), progress["weekly-fitness"], "a second workout the same day does not count")
}

func TestStreakEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "PUT", "/api/v1/streaks", `{"prayer": 7, "dhikr": 0, "quran": 0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decodeBody[app.Outcome](t, rec)
	assert.Equal(t, 7, out.Daily.Prayers.Streak)

	rec = do(t, srv, "PUT", "/api/v1/wellness/streak", `{"streak": 7}`)
	require.Equal(t, http.StatusOK, rec.Code)

	achievements := decodeBody[[]map[string]any](t, do(t, srv, "GET", "/api/v1/achievements", ""))
	unlocked := map[string]bool{}
	for _, a := range achievements {
		unlocked[a["id"].(string)] = a["unlocked"].(bool)
	}
	assert.True(t, unlocked["prayer-streak-7"])
	assert.False(t, unlocked["prayer-streak-30"])

	rec = do(t, srv, "GET", "/api/v1/achievements/prayer-streak-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	one := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, one["unlocked"])
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody[map[string]string](t, rec)["status"])

	assert.Equal(t, http.StatusOK, do(t, srv, "GET", "/metrics", "").Code)
}

func TestMonitorMiddleware_UsesRouteTemplate(t *testing.T) {
	srv := newTestServer(t)
	counter := metrics.HTTPRequestsTotal.WithLabelValues("/api/v1/challenges/{id}", "PUT", "Not Found")
	before := testutil.ToFloat64(counter)

	do(t, srv, "PUT", "/api/v1/challenges/nope", `{"progress": 1}`)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestUnknownMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, "GET", "/api/v1/prayers", "").Code)
}
