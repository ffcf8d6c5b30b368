package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/moonlit-garden/moonlit/internal/app/garden"
	"github.com/moonlit-garden/moonlit/internal/app/habit"
	"github.com/moonlit-garden/moonlit/internal/domain"
)

// ─── Lunar (/api/lunar/*) ────────────────────────────────────────────────────

// handleMoonToday resolves the timezone from ?tz=, then the caller's stored
// timezone, then the daemon default.
func (s *Server) handleMoonToday(w http.ResponseWriter, r *http.Request) {
	var (
		info domain.MoonPhaseInfo
		err  error
	)
	if tz := r.URL.Query().Get("tz"); tz != "" {
		info, err = s.garden.MoonIn(r.Context(), tz)
	} else {
		info, err = s.garden.MoonToday(r.Context(), userID(r))
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acc, err := s.garden.Balance(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

type spendRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	var req spendRequest
	if !decode(w, r, &req) {
		return
	}
	acc, err := s.garden.Spend(r.Context(), userID(r), req.Amount, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": acc.Balance,
		"spent":   req.Amount,
	})
}

func (s *Server) handleDailyBonus(w http.ResponseWriter, r *http.Request) {
	res, err := s.garden.ClaimDailyBonus(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.garden.History(r.Context(), userID(r), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ─── Users (/api/users/*) ────────────────────────────────────────────────────

type updateMeRequest struct {
	Username string `json:"username,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := s.garden.EnsureUser(r.Context(), userID(r), req.Username, req.Timezone)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ─── Habits (/api/habits/*) ──────────────────────────────────────────────────

// habitView adds the frequency, which the domain type keeps as an interface.
type habitView struct {
	domain.Habit
	FrequencyType        domain.FrequencyKind `json:"frequency_type"`
	FrequencyValue       int                  `json:"frequency_value"`
	RequiredIntervalDays int                  `json:"required_interval_days"`
}

func viewHabit(h domain.Habit) habitView {
	return habitView{
		Habit:                h,
		FrequencyType:        h.FrequencyKind(),
		FrequencyValue:       h.FrequencyValue(),
		RequiredIntervalDays: h.RequiredIntervalDays(),
	}
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.garden.ListHabits(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]habitView, len(habits))
	for i, h := range habits {
		out[i] = viewHabit(h)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req habit.CreateParams
	if !decode(w, r, &req) {
		return
	}
	h, err := s.garden.CreateHabit(r.Context(), userID(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewHabit(h))
}

func (s *Server) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	h, err := s.garden.GetHabit(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewHabit(h))
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	var req habit.UpdateParams
	if !decode(w, r, &req) {
		return
	}
	h, err := s.garden.UpdateHabit(r.Context(), userID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewHabit(h))
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	if err := s.garden.DeleteHabit(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkInRequest struct {
	ForceCleansing bool `json:"force_cleansing"`
}

type checkInView struct {
	habit.Result
	Habit habitView `json:"habit"`
}

// handleCheckIn accepts force_cleansing in the body or the query string.
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !decode(w, r, &req) {
		return
	}
	if q := r.URL.Query().Get("force_cleansing"); q != "" {
		force, err := strconv.ParseBool(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "force_cleansing must be a boolean")
			return
		}
		req.ForceCleansing = force
	}

	res, err := s.garden.CheckIn(r.Context(), userID(r), chi.URLParam(r, "id"), req.ForceCleansing)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkInView{Result: res, Habit: viewHabit(res.Habit)})
}

// ─── Garden (/api/garden/*) ──────────────────────────────────────────────────

func (s *Server) handleGardenState(w http.ResponseWriter, r *http.Request) {
	st, err := s.garden.GardenState(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ─── Artifacts (/api/artifacts/*) ────────────────────────────────────────────

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	defs, err := s.garden.Catalog(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	owned, err := s.garden.ListArtifacts(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, owned)
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	d, err := s.garden.Discover(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSetArtifactFlags(w http.ResponseWriter, r *http.Request) {
	var req garden.ArtifactFlags
	if !decode(w, r, &req) {
		return
	}
	ua, err := s.garden.SetArtifactFlags(r.Context(), userID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ua)
}
