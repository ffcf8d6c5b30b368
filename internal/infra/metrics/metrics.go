// Package metrics provides Prometheus metrics for the garden:
// counters for check-ins, moonlight flow, bonuses and discoveries,
// plus HTTP latency and health gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Check-ins ──────────────────────────────────────────────────────────────

// CheckIns counts check-in attempts by outcome: the transition name on
// success, the error code on rejection.
var CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "checkins_total",
	Help:      "Check-in attempts by outcome.",
}, []string{"outcome"})

// Cleanses counts wilted plants cleansed during a check-in.
var Cleanses = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "cleanses_total",
	Help:      "Wilted plants cleansed.",
})

// ─── Moonlight ──────────────────────────────────────────────────────────────

// MoonlightEarned tracks moonlight credited, by source.
var MoonlightEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "moonlight_earned_total",
	Help:      "Moonlight credited to users.",
}, []string{"source"})

// MoonlightSpent tracks moonlight debited, by reason.
var MoonlightSpent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "moonlight_spent_total",
	Help:      "Moonlight debited from users.",
}, []string{"reason"})

// DailyBonusClaims counts bonus claims; applied is "true" or "false".
var DailyBonusClaims = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "daily_bonus_claims_total",
	Help:      "Daily bonus claims, applied or repeated.",
}, []string{"applied"})

// ─── Artifacts ──────────────────────────────────────────────────────────────

// Discoveries counts artifact draws by rarity and whether it was a duplicate.
var Discoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "discoveries_total",
	Help:      "Artifact discoveries.",
}, []string{"rarity", "duplicate"})

// ─── Moon ───────────────────────────────────────────────────────────────────

// PhaseCacheLookups counts phase cache lookups; result is "hit" or "miss".
var PhaseCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moonlit",
	Name:      "phase_cache_lookups_total",
	Help:      "Moon phase cache lookups.",
}, []string{"result"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequestDuration tracks API latency by route pattern and status.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "moonlit",
	Name:      "http_request_seconds",
	Help:      "API request duration in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"method", "route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "moonlit",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
