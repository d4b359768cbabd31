package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deenly/progress-core/pkg/metrics"
)

// NewRouter mounts the API under /api/v1 plus /health and /metrics.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(MonitorMiddleware)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/snapshot", h.GetSnapshot).Methods("GET")
	api.HandleFunc("/points", h.GetPoints).Methods("GET")

	api.HandleFunc("/prayers", h.CompletePrayers).Methods("POST")
	api.HandleFunc("/tasbih", h.IncrementTasbih).Methods("POST")
	api.HandleFunc("/tasbih/reset", h.ResetTasbih).Methods("POST")
	api.HandleFunc("/quran", h.RecordQuran).Methods("POST")
	api.HandleFunc("/lectures", h.WatchLecture).Methods("POST")
	api.HandleFunc("/workouts", h.RecordWorkout).Methods("POST")
	api.HandleFunc("/streaks", h.SetStreaks).Methods("PUT")
	api.HandleFunc("/wellness/streak", h.SetWellnessStreak).Methods("PUT")

	api.HandleFunc("/challenges", h.GetChallenges).Methods("GET")
	api.HandleFunc("/challenges/{id}", h.UpdateChallenge).Methods("PUT")
	api.HandleFunc("/achievements", h.GetAchievements).Methods("GET")
	api.HandleFunc("/achievements/{id}", h.GetAchievement).Methods("GET")

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(r)
}

// MonitorMiddleware records request counts and latency by route template.
func MonitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(path, r.Method, http.StatusText(ww.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
