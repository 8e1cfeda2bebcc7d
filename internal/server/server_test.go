package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribune/internal/agent"
	"tribune/internal/config"
	"tribune/internal/persona"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Store.DatabasePath = filepath.Join(dir, "tribune.db")
	cfg.Persona.FilePath = filepath.Join(dir, "persona.json")
	cfg.Perception.VoicesPath = ""
	cfg.Server.AdminToken = "secret"

	a, err := agent.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	s := New(cfg, a)
	return s, s.routes()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func postJSON(t *testing.T, h http.Handler, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSummaryRoute(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(t, h, "/api/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["live"])
	assert.Equal(t, "IMPACT", body["goal_mode"])
	assert.NotEmpty(t, body["jobs"])
	assert.Contains(t, body["jobs"], "perception_ingest")
	assert.Contains(t, body["jobs"], "value_dm")
	crisis, ok := body["crisis"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, crisis["active"])
}

func TestAdminAuth(t *testing.T) {
	s, h := newTestServer(t)

	t.Run("missing token rejected", func(t *testing.T) {
		rec := postJSON(t, h, "/api/live", "", map[string]bool{"live": true})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		rec := postJSON(t, h, "/api/live", "wrong", map[string]bool{"live": true})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unconfigured token forbids everything", func(t *testing.T) {
		s.cfg.Server.AdminToken = ""
		rec := postJSON(t, h, "/api/live", "", map[string]bool{"live": true})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		s.cfg.Server.AdminToken = "secret"
	})
}

func TestLiveAndModeToggles(t *testing.T) {
	s, h := newTestServer(t)

	rec := postJSON(t, h, "/api/live", "secret", map[string]bool{"live": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.cfg.IsLive())

	t.Run("valid mode accepted case-insensitively", func(t *testing.T) {
		rec := postJSON(t, h, "/api/mode", "secret", map[string]string{"mode": "fame"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, config.GoalFame, s.cfg.CurrentGoalMode())
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		rec := postJSON(t, h, "/api/mode", "secret", map[string]string{"mode": "chaos"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/live", bytes.NewReader([]byte("{broken")))
		req.Header.Set("X-Admin-Token", "secret")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRedirectRoutes(t *testing.T) {
	_, h := newTestServer(t)

	t.Run("unknown redirect 404s", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(t, h, "/r/missing").Code)
	})

	t.Run("create then follow", func(t *testing.T) {
		rec := postJSON(t, h, "/api/redirect", "secret", map[string]string{
			"label": "report", "target_url": "https://example.gov/report",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "report", body["id"])

		follow := get(t, h, "/r/report")
		assert.Equal(t, http.StatusFound, follow.Code)
		assert.Equal(t, "https://example.gov/report", follow.Header().Get("Location"))
	})

	t.Run("missing target rejected", func(t *testing.T) {
		rec := postJSON(t, h, "/api/redirect", "secret", map[string]string{"label": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNoteRoute(t *testing.T) {
	s, h := newTestServer(t)

	rec := postJSON(t, h, "/api/note", "secret", map[string]string{"text": "watch the permits thread"})
	require.Equal(t, http.StatusCreated, rec.Code)

	notes, err := s.agent.Store().RecentNotes(5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "operator", notes[0].Source)

	rec = postJSON(t, h, "/api/note", "secret", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPersonaRoutes(t *testing.T) {
	s, h := newTestServer(t)

	t.Run("get current persona", func(t *testing.T) {
		rec := get(t, h, "/api/persona")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Hash string `json:"hash"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body.Hash, 16)
	})

	t.Run("preview validates without persisting", func(t *testing.T) {
		before := s.agent.Persona().Hash()
		doc := map[string]interface{}{"handle": "preview_me", "mission": "test missions"}
		rec := postJSON(t, h, "/api/persona/preview", "secret", doc)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, before, s.agent.Persona().Hash())
	})

	t.Run("preview rejects invalid documents", func(t *testing.T) {
		doc := map[string]interface{}{"handle": "bad handle!", "mission": "m"}
		rec := postJSON(t, h, "/api/persona/preview", "secret", doc)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("rollback of a missing version fails", func(t *testing.T) {
		rec := postJSON(t, h, "/api/persona/rollback/99", "secret", map[string]string{})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("diff between stored versions", func(t *testing.T) {
		_, err := s.agent.Persona().Update(persona.Default(), "baseline")
		require.NoError(t, err)
		changed := persona.Default()
		changed.Mission = "Ship one coordination pilot per month."
		_, err = s.agent.Persona().Update(changed, "tighter mission")
		require.NoError(t, err)

		rec := get(t, h, "/api/persona/diff/1/2")
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Changes []struct{ Field, From, To string } `json:"changes"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Changes, 1)
		assert.Equal(t, "mission", body.Changes[0].Field)
		assert.Contains(t, body.Changes[0].To, "pilot per month")

		assert.Equal(t, http.StatusUnprocessableEntity, get(t, h, "/api/persona/diff/1/99").Code)
		assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/persona/diff/one/2").Code)
	})
}

func TestCrisisOverrideRoute(t *testing.T) {
	s, h := newTestServer(t)

	rec := postJSON(t, h, "/api/crisis", "secret", map[string]interface{}{
		"active": true, "reason": "manual pause",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.agent.Crisis().Active())
	assert.Equal(t, "manual pause", s.agent.Crisis().Reason())

	rec = postJSON(t, h, "/api/crisis", "secret", map[string]interface{}{"active": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.agent.Crisis().Active())
}
