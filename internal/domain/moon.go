package domain

// ─── Moon ───────────────────────────────────────────────────────────────────

// MoonPhase is one of the four gameplay buckets of the lunar cycle.
type MoonPhase string

const (
	PhaseNew    MoonPhase = "new"
	PhaseWaxing MoonPhase = "waxing"
	PhaseFull   MoonPhase = "full"
	PhaseWaning MoonPhase = "waning"
)

// MoonPhases lists the phases in cycle order.
var MoonPhases = []MoonPhase{PhaseNew, PhaseWaxing, PhaseFull, PhaseWaning}

// MoonPhaseInfo is derived, never persisted. Scoped to one local date in
// one timezone.
type MoonPhaseInfo struct {
	Phase            MoonPhase `json:"phase"`
	AgeDays          float64   `json:"age_days"`
	Illumination     float64   `json:"illumination"`
	EnergyMultiplier float64   `json:"energy_multiplier"`
	ThemeID          string    `json:"theme_id"`
	LocalDate        LocalDate `json:"local_date"`
	Timezone         string    `json:"timezone"`
}
