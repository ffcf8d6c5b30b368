package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestGardenCounters(t *testing.T) {
	CheckIns.WithLabelValues("continued").Inc()
	Cleanses.Inc()
	MoonlightEarned.WithLabelValues("checkin").Add(5)
	MoonlightSpent.WithLabelValues("discovery").Add(50)
	DailyBonusClaims.WithLabelValues("true").Inc()
	Discoveries.WithLabelValues("rare", "false").Inc()
	PhaseCacheLookups.WithLabelValues("hit").Inc()

	names := gatheredNames(t)
	expected := []string{
		"moonlit_checkins_total",
		"moonlit_cleanses_total",
		"moonlit_moonlight_earned_total",
		"moonlit_moonlight_spent_total",
		"moonlit_daily_bonus_claims_total",
		"moonlit_discoveries_total",
		"moonlit_phase_cache_lookups_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestHTTPAndHealthMetrics(t *testing.T) {
	HTTPRequestDuration.WithLabelValues("GET", "/api/moon/today", "200").Observe(0.01)
	HealthCheckStatus.WithLabelValues("storage").Set(1)

	names := gatheredNames(t)
	for _, name := range []string{"moonlit_http_request_seconds", "moonlit_health_check_status"} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
