package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"opsboard/internal/action"
	"opsboard/internal/config"
	"opsboard/internal/export"
	"opsboard/internal/feed"
	"opsboard/internal/grouping"
	appLog "opsboard/internal/log"
	"opsboard/internal/model"
	"opsboard/internal/timerange"
)

// Server exposes the scheduling board over HTTP: snapshot reads, range
// changes, the ensure-thread action and an ICS export.
type Server struct {
	cfg        *config.Config
	board      *feed.Board
	dispatcher *action.Dispatcher
	mux        *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, board *feed.Board, dispatcher *action.Dispatcher) *Server {
	s := &Server{
		cfg:        cfg,
		board:      board,
		dispatcher: dispatcher,
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="OpsBoard", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/schedule.ics", s.handleScheduleICS)
	s.mux.HandleFunc("GET /api/groups", s.handleGroups)
	s.mux.HandleFunc("POST /api/range", s.handleSetRange)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/events/{id}/ensure-thread", s.handleEnsureThread)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON view of the board state. The error is
// flattened to a string so the client can render a retryable failure.
type scheduleResponse struct {
	feed.State
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	st := s.board.State()
	resp := scheduleResponse{State: st}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScheduleICS(w http.ResponseWriter, _ *http.Request) {
	st := s.board.State()
	body, err := export.ICS(st.Snapshot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	st := s.board.State()
	if st.Snapshot == nil {
		http.Error(w, "no snapshot loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"buckets": grouping.ByCategory(st.Snapshot.Resources),
		"orphans": grouping.OrphanEvents(st.Snapshot),
	})
}

type setRangeRequest struct {
	From time.Time      `json:"from"`
	To   time.Time      `json:"to"`
	Zoom timerange.Zoom `json:"zoom"`
}

// handleSetRange changes the visible window. The load is asynchronous:
// the handler answers 202 with the normalized range and the client polls
// /api/schedule for the result.
func (s *Server) handleSetRange(w http.ResponseWriter, r *http.Request) {
	var req setRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var (
		rng timerange.Range
		err error
	)
	if req.From.IsZero() && req.To.IsZero() {
		// Zoom-only change: recompute the default window.
		rng, err = s.board.SetZoom(context.Background(), req.Zoom)
	} else {
		rng, err = s.board.SetRange(context.Background(), req.From, req.To, req.Zoom)
	}
	if err != nil {
		switch {
		case errors.Is(err, timerange.ErrInvalidRange), errors.Is(err, timerange.ErrUnsupportedZoom):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, rng)
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	// The load outlives the request, so it must not inherit the request
	// context.
	s.board.Refresh(context.Background())
	writeJSON(w, http.StatusAccepted, s.board.Controller().Range())
}

func (s *Server) handleEnsureThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	st := s.board.State()
	if st.Snapshot == nil {
		http.Error(w, "no snapshot loaded", http.StatusNotFound)
		return
	}

	var selected *model.ScheduleEvent
	for i := range st.Snapshot.Events {
		if st.Snapshot.Events[i].ID == id {
			selected = &st.Snapshot.Events[i]
			break
		}
	}
	if selected == nil {
		http.Error(w, "unknown event id", http.StatusNotFound)
		return
	}

	threadID, err := s.dispatcher.EnsureThreadFor(r.Context(), *selected)
	if err != nil {
		switch {
		case errors.Is(err, action.ErrActionConflict):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, action.ErrMissingRunReference):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"threadId": threadID,
		"badge":    s.dispatcher.Badge(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to encode response", err)
	}
}
