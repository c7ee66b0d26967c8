// Package httpapi exposes the REST and WebSocket surface of the service.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Slavikss/musicroast/internal/authsession"
	"github.com/Slavikss/musicroast/internal/browser"
	"github.com/Slavikss/musicroast/internal/config"
	"github.com/Slavikss/musicroast/internal/logging"
	"github.com/Slavikss/musicroast/internal/middleware"
	"github.com/Slavikss/musicroast/internal/observability"
	"github.com/Slavikss/musicroast/internal/relay"
	"github.com/Slavikss/musicroast/internal/tokenstore"
)

// Server wires the session manager, credential store and relay into an
// HTTP router.
type Server struct {
	cfg     config.Config
	manager *authsession.Manager
	store   *tokenstore.Store
	relay   *relay.Handler
	metrics *observability.Metrics
}

// New builds the API server. metrics may be nil.
func New(cfg config.Config, manager *authsession.Manager, store *tokenstore.Store, relayHandler *relay.Handler, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		manager: manager,
		store:   store,
		relay:   relayHandler,
		metrics: metrics,
	}
}

// Router assembles the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())
	}

	r.Group(func(r chi.Router) {
		if s.cfg.Auth.AccessSecret != "" {
			r.Use(middleware.JWT(s.cfg.Auth.AccessSecret))
		}

		r.Route("/auth/yandex", func(r chi.Router) {
			r.Post("/session", s.handleCreateSession)
			r.Post("/session/{id}/close", s.handleCloseSession)
			r.Post("/token", s.handleHeadlessToken)
			r.Get("/token/{userID}", s.handleGetToken)
			r.Delete("/token/{userID}", s.handleDeleteToken)
		})
		r.Get("/ws/auth/yandex/session/{id}", s.handleSessionSocket)
	})

	return r
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	WSURL     string `json:"ws_url"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	mode := browser.ModeInteractive
	if s.cfg.Browser.InteractiveHeadless {
		mode = browser.ModeHeadless
	}

	sess, err := s.manager.Create(r.Context(), req.UserID, "yandex", mode, nil)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID(),
		State:     string(sess.State()),
		WSURL:     "/ws/auth/yandex/session/" + sess.ID(),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.manager.Cancel(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}
	s.relay.ServeSession(w, r, sess)
}

type headlessTokenRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleHeadlessToken(w http.ResponseWriter, r *http.Request) {
	var req headlessTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.UserID == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "user_id, username and password are required")
		return
	}

	mode := browser.ModeInteractive
	if s.cfg.Browser.Headless {
		mode = browser.ModeHeadless
	}

	creds := browser.LoginCredentials{Username: req.Username, Password: req.Password, OTP: req.OTP}
	tok, err := s.manager.Authenticate(r.Context(), req.UserID, creds, mode)
	if err != nil {
		switch {
		case errors.Is(err, authsession.ErrAuthTimeout):
			writeError(w, http.StatusGatewayTimeout, "authentication timed out")
		case errors.Is(err, authsession.ErrAuthFailed):
			writeError(w, http.StatusUnauthorized, "authentication failed")
		default:
			s.writeSessionError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		ExpiresIn:   int64(tok.ExpiresIn / time.Second),
	})
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(chi.URLParam(r, "userID"), "yandex")
	if err != nil {
		writeError(w, http.StatusNotFound, "no stored token for user")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: rec.Token,
		ExpiresIn:   int64(rec.TTL(time.Now()) / time.Second),
	})
}

func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	s.store.Delete(chi.URLParam(r, "userID"), "yandex")
	if s.metrics != nil {
		s.metrics.SetStoredTokens(s.store.Len())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.manager.Len(),
	})
}

// writeSessionError maps session creation failures to transport codes.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsession.ErrSessionLimit):
		writeError(w, http.StatusServiceUnavailable, "session limit reached, try again later")
	case errors.Is(err, browser.ErrResourceExhausted):
		writeError(w, http.StatusServiceUnavailable, "browser capacity exhausted, try again later")
	case errors.Is(err, browser.ErrDriverUnavailable):
		writeError(w, http.StatusServiceUnavailable, "browser unavailable")
	case errors.Is(err, browser.ErrLaunchTimeout):
		writeError(w, http.StatusGatewayTimeout, "browser launch timed out")
	case errors.Is(err, authsession.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, "unknown provider")
	default:
		logging.Errorf("httpapi: session error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Errorf("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
