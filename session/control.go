package session

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talk2silicon/talk2browser/kit"
	"github.com/talk2silicon/talk2browser/recorder"
)

// RegisterControl registers the local control surface on a chi router. This
// is the browser-side collaborator protocol: the mode toggle and the action
// accessors live here, next to a health probe.
func (s *Session) RegisterControl(r chi.Router) {
	r.Use(s.requestContext)
	r.Get("/healthz", s.handleHealth)
	r.Get("/mode", s.handleGetMode)
	r.Post("/mode", s.handleSetMode)
	r.Get("/actions", s.handleActions)
	r.Get("/actions/manual", s.handleManualActions)
	r.Get("/pages", s.handlePages)
}

// requestContext tags every control request with the session identity, a
// fresh request id, and the http transport, mirroring the MCP enrichment.
func (s *Session) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithSessionID(r.Context(), s.ID)
		ctx = kit.WithRequestID(ctx, newRequestID())
		ctx = kit.WithTransport(ctx, "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Session) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session": s.ID,
		"pages":   s.Registry.Len(),
		"actions": s.Recorder.Len(),
	})
}

func (s *Session) handleGetMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.Recorder.Mode())})
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Session) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	switch req.Mode {
	case string(recorder.ModeAgent), string(recorder.ModeManual):
		// Leaving manual mode drains the page bridges first, so operator
		// actions are logged with the manual mark.
		if s.Recorder.Mode() == recorder.ModeManual && req.Mode == string(recorder.ModeAgent) {
			s.drainAllManual(r.Context())
		}
		s.Recorder.SetMode(recorder.Mode(req.Mode))
		s.setCollectorMode(r.Context(), recorder.Mode(req.Mode))
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown mode %q", req.Mode))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.Recorder.Mode())})
}

func (s *Session) handleActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.Recorder.Snapshot()})
}

func (s *Session) handleManualActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.Recorder.ManualActions()})
}

type pageInfo struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Opener string `json:"opener,omitempty"`
	Active bool   `json:"active"`
}

func (s *Session) handlePages(w http.ResponseWriter, _ *http.Request) {
	activeID := ""
	if active, err := s.Registry.Active(); err == nil {
		activeID = active.ID
	}
	out := make([]pageInfo, 0, s.Registry.Len())
	for _, e := range s.Registry.List() {
		out = append(out, pageInfo{
			ID:     e.ID,
			URL:    e.URL,
			Title:  e.Title,
			Opener: e.Opener,
			Active: e.ID == activeID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": out})
}
