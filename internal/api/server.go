// Package api exposes the session lifecycle and transcript retrieval over
// HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"meeting-transcription-service/internal/export"
	"meeting-transcription-service/internal/models"
	"meeting-transcription-service/internal/observability"
	"meeting-transcription-service/internal/service/aggregator"
	"meeting-transcription-service/internal/service/capture"
)

// Server handles the HTTP API backed by a capture manager.
type Server struct {
	manager *capture.Manager
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(manager *capture.Manager) http.Handler {
	s := &Server{manager: manager}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger())

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.startSession)
		r.Get("/", s.listSessions)
		r.Get("/{sessionID}", s.getSession)
		r.Post("/{sessionID}/stop", s.stopSession)
		r.Get("/{sessionID}/transcript", s.getTranscript)
	})

	return r
}

type startSessionRequest struct {
	SessionID string `json:"session_id"`
}

type sessionResponse struct {
	State string `json:"state"`
	models.Session
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sess, err := s.manager.StartSession(r.Context(), req.SessionID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{State: aggregator.StateRunning.String(), Session: sess})
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.manager.StopSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.manager.ListSessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, state, err := s.manager.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state.String(), Session: sess})
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.manager.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeFailure(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, sess)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(export.RenderText(sess)))
	default:
		writeError(w, http.StatusBadRequest, "unknown transcript format: "+format)
	}
}

// writeFailure maps domain errors onto HTTP status codes.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, capture.ErrSessionExists),
		errors.Is(err, aggregator.ErrAlreadyRunning),
		errors.Is(err, aggregator.ErrSessionClosed),
		errors.Is(err, aggregator.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
