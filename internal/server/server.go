package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"threebr/internal/app"
	"threebr/internal/ratelimit"
	"threebr/internal/util"
	"threebr/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	SearchRateLimitPerMinute int
	WriteRateLimitPerMinute  int
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app           *app.App
	mux           *http.ServeMux
	signupLimiter *ratelimit.FixedWindowLimiter
	loginLimiter  *ratelimit.FixedWindowLimiter
	searchLimiter *ratelimit.FixedWindowLimiter
	writeLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	searchLimit := cfg.SearchRateLimitPerMinute
	if searchLimit <= 0 {
		searchLimit = 60
	}
	writeLimit := cfg.WriteRateLimitPerMinute
	if writeLimit <= 0 {
		writeLimit = 60
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "threebr:ratelimit:" + name
		limiter, err := ratelimit.NewFromAddr(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	searchLimiter, err := newLimiter("search", searchLimit)
	if err != nil {
		return nil, err
	}
	writeLimiter, err := newLimiter("write", writeLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:           cfg.App,
		mux:           http.NewServeMux(),
		signupLimiter: signupLimiter,
		loginLimiter:  loginLimiter,
		searchLimiter: searchLimiter,
		writeLimiter:  writeLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with request logging, security
// headers, and CORS applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// catalog (auth required; queries are proxied to the external catalog)
	s.mux.Handle("/api/catalog/search", s.authenticated(s.handleCatalogSearch))
	s.mux.Handle("/api/catalog/works/", s.authenticated(s.handleCatalogWork))

	// shelves
	s.mux.Handle("/api/shelves", s.authenticated(s.handleShelves))
	s.mux.Handle("/api/shelves/", s.authenticated(s.handleShelfByBook))
	s.mux.Handle("/api/onboarding/books", s.authenticated(s.handleOnboarding))

	// rec sets & feeds
	s.mux.Handle("/api/recsets", s.authenticated(s.handleRecSets))
	s.mux.Handle("/api/recsets/", s.authenticated(s.handleRecSetByID))
	s.mux.Handle("/api/feed", s.authenticated(s.handleFeed))
	s.mux.Handle("/api/explore", s.authenticated(s.handleExplore))
	s.mux.Handle("/api/home", s.authenticated(s.handleHome))

	// profiles & follows
	s.mux.Handle("/api/profiles/search", s.authenticated(s.handleProfileSearch))
	s.mux.Handle("/api/profiles/", s.authenticated(s.handleProfileByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	user, ok, err := s.app.UserFromToken(token)
	if err != nil {
		s.audit(r, "token.verify", "fail", "reason", "session_lookup_failed")
		return domain.User{}, false
	}
	if !ok {
		s.audit(r, "token.verify", "fail", "reason", "invalid_token")
		return domain.User{}, false
	}
	return user, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application sentinels onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrEmailExists), errors.Is(err, app.ErrHandleExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidShelf),
		errors.Is(err, app.ErrInvalidRating),
		errors.Is(err, app.ErrRatingRequired),
		errors.Is(err, app.ErrReviewTooLong),
		errors.Is(err, app.ErrNoteTooLong),
		errors.Is(err, app.ErrRecLimit),
		errors.Is(err, app.ErrDuplicateRec),
		errors.Is(err, app.ErrRecCount),
		errors.Is(err, app.ErrUnknownTag),
		errors.Is(err, app.ErrFlowIncomplete),
		errors.Is(err, app.ErrSourceRequired),
		errors.Is(err, app.ErrSelfFollow),
		errors.Is(err, app.ErrProfileIncomplete):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
