// Package api provides the HTTP server for the Moonlit Garden.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moonlit-garden/moonlit/internal/app/garden"
	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/health"
	"github.com/moonlit-garden/moonlit/internal/infra/metrics"
)

// UserHeader carries the caller's user id. Authentication happens in front
// of the daemon; the API trusts this header.
const UserHeader = "X-User-ID"

// Server is the garden HTTP API server.
type Server struct {
	garden         *garden.Service
	health         *health.Checker
	log            *log.Logger
	metricsEnabled bool
	timeout        time.Duration
}

// NewServer creates a new API server.
func NewServer(svc *garden.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{garden: svc, log: logger, timeout: 30 * time.Second}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetTimeout bounds each request's handling time.
func (s *Server) SetTimeout(d time.Duration) { s.timeout = d }

// SetHealth makes /health report the checker's latest statuses.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(corsMiddleware)
	r.Use(instrument)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/lunar/today", s.handleMoonToday)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			r.Route("/lunar/energy", func(r chi.Router) {
				r.Get("/", s.handleBalance)
				r.Post("/use", s.handleSpend)
				r.Post("/daily_bonus", s.handleDailyBonus)
				r.Get("/history", s.handleHistory)
			})

			r.Put("/users/me", s.handleUpdateMe)

			r.Route("/habits", func(r chi.Router) {
				r.Get("/", s.handleListHabits)
				r.Post("/", s.handleCreateHabit)
				r.Get("/{id}", s.handleGetHabit)
				r.Put("/{id}", s.handleUpdateHabit)
				r.Delete("/{id}", s.handleDeleteHabit)
				r.Post("/{id}/checkin", s.handleCheckIn)
			})

			r.Get("/garden/state", s.handleGardenState)

			r.Get("/artifacts/list", s.handleListArtifacts)
			r.Post("/artifacts/discover", s.handleDiscover)
			r.Put("/artifacts/{id}", s.handleSetArtifactFlags)
		})

		r.Get("/artifacts/catalog", s.handleCatalog)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type ctxKey struct{}

// requireUser rejects requests without a user id header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserHeader) == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string { return r.Header.Get(UserHeader) }

// instrument records request latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": msg,
		},
	})
}

// statusFor maps domain error codes to HTTP statuses.
func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeHabitNotFound, domain.CodeUserNotFound, domain.CodeArtifactNotFound:
		return http.StatusNotFound
	case domain.CodeNotOwnedByUser:
		return http.StatusForbidden
	case domain.CodeAlreadyCompletedToday, domain.CodeTooEarly, domain.CodeOnCooldown,
		domain.CodeHabitInactive, domain.CodeEmptyCatalog:
		return http.StatusConflict
	case domain.CodeInsufficientMoonlight, domain.CodeInvalidAmount, domain.CodeInvalidInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its domain code maps to. Internal errors
// are logged and hidden from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "err", err)
		msg = "internal error"
	}
	writeError(w, status, string(code), msg)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed body: "+err.Error())
		return false
	}
	return true
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserHeader)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
