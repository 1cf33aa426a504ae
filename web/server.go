package web

import (
	"encoding/json"
	"net/http"

	"kick-analytics/analytics"
)

// Controller drives the ball on behalf of the dashboard.
type Controller interface {
	// Arm asks the ball to wait for a kick.
	Arm() error
	// Capture requests the configured capture from the ball.
	Capture() error
}

// Server wires the REST API and the WebSocket endpoint.
type Server struct {
	hub        *Hub
	analyzer   *analytics.Analyzer
	controller Controller
	mux        *http.ServeMux
}

// NewServer creates the HTTP handler. Analyzer state changes should be fed
// to Broadcast.
func NewServer(hub *Hub, analyzer *analytics.Analyzer, controller Controller) *Server {
	s := &Server{
		hub:        hub,
		analyzer:   analyzer,
		controller: controller,
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/session/start", s.post(func() error {
		s.analyzer.StartSession()
		return nil
	}))
	s.mux.HandleFunc("/api/session/reset", s.post(func() error {
		s.analyzer.ResetSession()
		return nil
	}))
	s.mux.HandleFunc("/api/kick/arm", s.post(s.controller.Arm))
	s.mux.HandleFunc("/api/capture", s.post(s.controller.Capture))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Broadcast pushes a state snapshot to every WebSocket client.
func (s *Server) Broadcast(state *analytics.SessionState) {
	data, err := json.Marshal(state)
	if err != nil {
		logger.WithError(err).Error("Failed to encode state")
		return
	}
	s.hub.Broadcast(data)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	greeting, err := json.Marshal(s.analyzer.GetState())
	if err != nil {
		greeting = nil
	}
	s.hub.ServeWS(w, r, greeting)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.GetState())
}

type result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// post wraps an action as a POST-only endpoint answering {"ok":true}.
func (s *Server) post(action func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		if err := action(); err != nil {
			logger.WithError(err).WithField("path", r.URL.Path).Warn("Request failed")
			writeJSON(w, http.StatusConflict, result{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result{OK: true})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("Failed to write response")
	}
}
