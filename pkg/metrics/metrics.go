// Package metrics holds the process-wide prometheus collectors.
// Collectors are usable before registration; Register exposes them on a registry.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_points_awarded_total",
			Help: "Total points granted to the ledger",
		},
		[]string{"source"},
	)
	ChallengesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_challenges_completed_total",
			Help: "Total weekly challenge completions",
		},
	)
	AchievementsUnlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progress_achievements_unlocked_total",
			Help: "Total achievement unlocks",
		},
	)
	OutboxJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progress_outbox_jobs_total",
			Help: "Outbox jobs by operation and result (sent, dropped, retry)",
		},
		[]string{"op", "result"},
	)
	OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "progress_outbox_pending",
			Help: "Remote writes waiting in the outbox",
		},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		PointsAwarded,
		ChallengesCompleted,
		AchievementsUnlocked,
		OutboxJobs,
		OutboxPending,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	}
}

// Register registers every collector on reg. Collectors already registered on
// the same registry are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Unregister removes every collector from reg.
func Unregister(reg prometheus.Registerer) {
	for _, c := range collectors() {
		reg.Unregister(c)
	}
}
