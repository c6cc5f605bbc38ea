// Package web exposes the app service as a JSON API.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/conorfennell/curio/internal/app"
	"github.com/conorfennell/curio/internal/content"
	"github.com/conorfennell/curio/internal/domain"
)

// maxBody bounds request bodies.
const maxBody = 64 << 10

// Server holds the dependencies for the HTTP server.
type Server struct {
	svc    *app.Service
	router *http.ServeMux
	logger *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(svc *app.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		router: http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth())

	s.router.HandleFunc("GET /deck", s.handleGetDeck())
	s.router.HandleFunc("POST /deck/refresh", s.handleRefreshDeck())

	s.router.HandleFunc("GET /facts/{id}", s.handleGetFact())
	s.router.HandleFunc("POST /facts/{id}/view", s.handleViewFact())
	s.router.HandleFunc("POST /facts/{id}/quiz", s.handleAnswerQuiz())

	s.router.HandleFunc("GET /stats", s.handleStats())
	s.router.HandleFunc("GET /xp", s.handleXP())
	s.router.HandleFunc("GET /history", s.handleHistory())

	s.router.HandleFunc("GET /profile", s.handleGetProfile())
	s.router.HandleFunc("PATCH /profile", s.handleUpdateProfile())
	s.router.HandleFunc("PUT /profile/topics", s.handleSetTopics())
	s.router.HandleFunc("GET /topics", s.handleTopics())

	s.router.HandleFunc("GET /bookmarks", s.handleListBookmarks())
	s.router.HandleFunc("POST /bookmarks/{id}", s.handleAddBookmark())
	s.router.HandleFunc("DELETE /bookmarks/{id}", s.handleRemoveBookmark())

	s.router.HandleFunc("POST /content/prewarm", s.handlePrewarm())
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleGetDeck returns the installed deck, computing the first one on demand.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deck, ok := s.svc.CurrentDeck()
		if !ok {
			deck = s.svc.Refresh(r.Context())
		}
		s.writeJSON(w, http.StatusOK, deck)
	}
}

func (s *Server) handleRefreshDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.Refresh(r.Context()))
	}
}

func (s *Server) handleGetFact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fact, err := s.svc.Fact(factID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, struct {
			domain.Fact
			Bookmarked bool `json:"bookmarked"`
		}{fact, s.svc.IsBookmarked(fact.ID)})
	}
}

func (s *Server) handleViewFact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.svc.MarkViewed(r.Context(), factID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, p)
	}
}

type answerRequest struct {
	Option *int `json:"option"`
}

func (s *Server) handleAnswerQuiz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answerRequest
		if !s.decode(w, r, &req) {
			return
		}
		if req.Option == nil {
			s.writeMessage(w, http.StatusBadRequest, "option is required")
			return
		}
		outcome, err := s.svc.AnswerQuiz(r.Context(), factID(r), *req.Option)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, outcome)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.Statistics())
	}
}

func (s *Server) handleXP() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.XPProgress())
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.History())
	}
}

func (s *Server) handleGetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.Profile())
	}
}

type identityRequest struct {
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
}

func (s *Server) handleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req identityRequest
		if !s.decode(w, r, &req) {
			return
		}
		profile, err := s.svc.UpdateIdentity(r.Context(), req.DisplayName, req.Avatar)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, profile)
	}
}

type topicsRequest struct {
	Topics []string `json:"topics"`
}

func (s *Server) handleSetTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topicsRequest
		if !s.decode(w, r, &req) {
			return
		}
		topics, err := s.svc.SetPreferredTopics(r.Context(), req.Topics)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, topicsRequest{Topics: topics})
	}
}

func (s *Server) handleTopics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.Topics())
	}
}

func (s *Server) handleListBookmarks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.svc.ListBookmarks())
	}
}

func (s *Server) handleAddBookmark() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.AddBookmark(r.Context(), factID(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleRemoveBookmark() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.RemoveBookmark(r.Context(), factID(r)); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePrewarm fills the generation cache in the foreground.
func (s *Server) handlePrewarm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.Prewarm(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func factID(r *http.Request) domain.FactID {
	return domain.FactID(r.PathValue("id"))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, app.ErrFactNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoQuiz), errors.Is(err, app.ErrInvalidOption):
		return http.StatusBadRequest
	case errors.Is(err, content.ErrNoGenerator):
		return http.StatusConflict
	case errors.Is(err, app.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeMessage(w, status, http.StatusText(status))
		return
	}
	s.writeMessage(w, status, err.Error())
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
