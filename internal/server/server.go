// Package server exposes the operator dashboard API: state summary,
// live/mode toggles, manual triggers, redirects, persona management,
// analytics, and the crisis override. Mutating routes require the admin
// token and share a sliding-window rate limit.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tribune/internal/agent"
	"tribune/internal/config"
	"tribune/internal/logging"
	"tribune/internal/persona"
	"tribune/internal/store"
)

// Server is the dashboard HTTP API.
type Server struct {
	cfg   *config.Config
	agent *agent.Agent
	http  *http.Server
}

// New builds the server over a running agent.
func New(cfg *config.Config, a *agent.Agent) *Server {
	s := &Server{cfg: cfg, agent: a}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Server("Dashboard listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	limiter := newRateLimiter(s.cfg.Server.RateLimitRequests, s.cfg.GetRateLimitWindow())

	r.Get("/r/{id}", s.handleRedirect)
	r.Get("/api/summary", s.handleSummary)
	r.Get("/api/analytics", s.handleAnalytics)
	r.Get("/api/persona", s.handlePersonaGet)
	r.Get("/api/persona/versions", s.handlePersonaVersions)
	r.Get("/api/persona/diff/{from}/{to}", s.handlePersonaDiff)

	r.Group(func(admin chi.Router) {
		admin.Use(limiter.middleware)
		admin.Use(s.requireAdmin)

		admin.Post("/api/live", s.handleLive)
		admin.Post("/api/mode", s.handleMode)
		admin.Post("/api/propose", s.handlePropose)
		admin.Post("/api/note", s.handleNote)
		admin.Post("/api/redirect", s.handleRedirectCreate)
		admin.Put("/api/persona", s.handlePersonaPut)
		admin.Post("/api/persona/preview", s.handlePersonaPreview)
		admin.Post("/api/persona/rollback/{version}", s.handlePersonaRollback)
		admin.Post("/api/crisis", s.handleCrisis)
	})

	return r
}

// requireAdmin checks the opaque token header on mutating routes.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		token := s.cfg.Server.AdminToken
		if token == "" {
			writeError(w, http.StatusForbidden, "admin token not configured")
			return
		}
		if req.Header.Get("X-Admin-Token") != token {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, req *http.Request) {
	summary, err := s.agent.Analytics().Summarize()
	if err != nil {
		logging.Server("Summary failed: %v", err)
		writeError(w, http.StatusInternalServerError, "summary unavailable")
		return
	}
	stats, _ := s.agent.Store().Stats()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":      s.cfg.Name,
		"version":   s.cfg.Version,
		"live":      s.cfg.IsLive(),
		"goal_mode": s.cfg.CurrentGoalMode(),
		"crisis": map[string]interface{}{
			"active":      s.agent.Crisis().Active(),
			"reason":      s.agent.Crisis().Reason(),
			"last_signal": s.agent.Crisis().LastSignal(),
		},
		"metrics":      summary,
		"action_state": s.agent.Selector().ActionState(),
		"jobs":         s.agent.Jobs(),
		"tables":       stats,
	})
}

func (s *Server) handleLive(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Live bool `json:"live"`
	}
	if err := decode(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.cfg.SetLive(body.Live)
	logging.Server("LIVE toggled to %v", body.Live)
	writeJSON(w, http.StatusOK, map[string]bool{"live": body.Live})
}

func (s *Server) handleMode(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decode(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode := strings.ToUpper(body.Mode)
	valid := false
	for _, m := range config.ValidGoalModes {
		if mode == m {
			valid = true
			break
		}
	}
	if !valid {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %q", body.Mode))
		return
	}
	s.cfg.SetGoalMode(mode)
	logging.Server("Goal mode set to %s", mode)
	writeJSON(w, http.StatusOK, map[string]string{"goal_mode": mode})
}

func (s *Server) handlePropose(w http.ResponseWriter, req *http.Request) {
	if !s.agent.Trigger(req.Context(), "post_proposal") {
		writeError(w, http.StatusConflict, "proposal job unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (s *Server) handleNote(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "note text is empty")
		return
	}
	if err := s.agent.Store().SaveNote("operator", body.Text); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save note")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (s *Server) handleRedirectCreate(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Label     string `json:"label"`
		TargetURL string `json:"target_url"`
	}
	if err := decode(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.TargetURL == "" {
		writeError(w, http.StatusBadRequest, "target_url is required")
		return
	}

	id := body.Label
	if id == "" {
		id = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if err := s.agent.Store().CreateRedirect(id, body.TargetURL); err != nil {
		writeError(w, http.StatusConflict, "failed to create redirect")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":  id,
		"url": fmt.Sprintf("/r/%s", id),
	})
}

func (s *Server) handleRedirect(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	target, err := s.agent.Store().ResolveRedirect(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown redirect")
			return
		}
		writeError(w, http.StatusInternalServerError, "redirect lookup failed")
		return
	}
	http.Redirect(w, req, target, http.StatusFound)
}

func (s *Server) handlePersonaGet(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"persona": s.agent.Persona().Current(),
		"hash":    s.agent.Persona().Hash(),
	})
}

func (s *Server) handlePersonaVersions(w http.ResponseWriter, req *http.Request) {
	versions, err := s.agent.Store().PersonaVersions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list versions")
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handlePersonaDiff(w http.ResponseWriter, req *http.Request) {
	from, errFrom := strconv.Atoi(chi.URLParam(req, "from"))
	to, errTo := strconv.Atoi(chi.URLParam(req, "to"))
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	changes, err := s.agent.Persona().Diff(from, to)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from,
		"to":      to,
		"changes": changes,
	})
}

func (s *Server) handlePersonaPut(w http.ResponseWriter, req *http.Request) {
	var doc persona.Persona
	if err := decode(req, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	version, err := s.agent.Persona().Update(&doc, "operator")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": version,
		"hash":    s.agent.Persona().Hash(),
	})
}

func (s *Server) handlePersonaPreview(w http.ResponseWriter, req *http.Request) {
	var doc persona.Persona
	if err := decode(req, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := doc.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	prompt := doc.SystemPrompt(nil)
	if len(prompt) > 600 {
		prompt = prompt[:600] + "..."
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "valid",
		"prompt_excerpt": prompt,
	})
}

func (s *Server) handlePersonaRollback(w http.ResponseWriter, req *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(req, "version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	if err := s.agent.Persona().Rollback(version); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "rolled_back",
		"version": version,
		"hash":    s.agent.Persona().Hash(),
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, req *http.Request) {
	summary, err := s.agent.Analytics().Summarize()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analytics unavailable")
		return
	}
	trends, err := s.agent.Analytics().KPITrends(7)
	if err != nil {
		logging.Server("KPI trends failed: %v", err)
	}
	experiments, err := s.agent.Optimizer().ExperimentSummary()
	if err != nil {
		logging.Server("Experiment summary failed: %v", err)
	}
	recs, err := s.agent.Optimizer().Recommendations()
	if err != nil {
		logging.Server("Recommendations failed: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":         summary,
		"kpi_trends":      trends,
		"experiments":     experiments,
		"recommendations": recs,
	})
}

func (s *Server) handleCrisis(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Active bool   `json:"active"`
		Reason string `json:"reason"`
	}
	if err := decode(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reason := body.Reason
	if reason == "" {
		reason = "operator_override"
	}
	if body.Active {
		s.agent.Crisis().Activate(reason)
	} else {
		s.agent.Crisis().Resolve(reason)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": s.agent.Crisis().Active(),
		"reason": s.agent.Crisis().Reason(),
	})
}

func decode(req *http.Request, out interface{}) error {
	defer req.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Server("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
