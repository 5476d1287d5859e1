// Package server implements the Mika backend's HTTP contract for local
// development: /login exchanges credentials for a bearer token, /ai/prompt
// answers a conversation, / and /healthz report liveness.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"mika/internal/agent"
	"mika/internal/config"
)

type Server struct {
	cfg    config.Config
	tokens *TokenStore
	runner *agent.Runner
}

func New(cfg config.Config, tokens *TokenStore, runner *agent.Runner) *Server {
	return &Server{cfg: cfg, tokens: tokens, runner: runner}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/ai/prompt", s.handlePrompt)

	return r
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An unset server password disables logins entirely.
	if s.cfg.Password == "" || !credentialsMatch(req, s.cfg.Username, s.cfg.Password) {
		slog.Info("login rejected", "username", req.Username)
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Issue(r.Context(), req.Username, s.cfg.TokenTTL, time.Now())
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	slog.Info("login accepted", "username", req.Username, "ttl_seconds", int64(s.cfg.TokenTTL.Seconds()))
	JSON(w, http.StatusOK, loginResponse{Token: token, ExpiresIn: int64(s.cfg.TokenTTL.Seconds())})
}

func credentialsMatch(req loginRequest, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(password)) == 1
	return userOK && passOK
}

type promptRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type promptResponse struct {
	Reply   string `json:"reply"`
	SQL     string `json:"sql"`
	VizType string `json:"viz_type"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	live, err := s.tokens.Validate(r.Context(), token, time.Now())
	if err != nil {
		slog.Error("token validation failed", "error", err)
		Error(w, http.StatusInternalServerError, "token validation failed")
		return
	}
	if !live {
		Error(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	history := make([]agent.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, agent.Message{Role: m.Role, Content: m.Content})
	}

	result, err := s.runner.Run(r.Context(), history)
	if err != nil {
		// The client renders whatever it gets; failures become a controlled
		// apology rather than a 5xx, matching the backend contract.
		slog.Error("agent run failed", "error", err)
		JSON(w, http.StatusOK, promptResponse{Reply: "Sorry, there was an error processing your request."})
		return
	}

	JSON(w, http.StatusOK, promptResponse{Reply: result.Reply, SQL: result.SQL, VizType: result.VizType})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
