package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/billing"
	"github.com/promptvaultdev/promptvault/internal/prompts"
	"github.com/promptvaultdev/promptvault/internal/store"
)

type contextKey string

const accountKey contextKey = "account"

// accountFrom returns the authenticated account stored by the auth
// middleware.
func accountFrom(r *http.Request) *store.Account {
	acct, _ := r.Context().Value(accountKey).(*store.Account)
	return acct
}

// authenticate resolves the caller to an account. Accepted credentials:
// a JWT bearer token, or the configured extension key (which maps to
// the owner account). With auth disabled every request runs as the
// owner.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := s.auth.OwnerEmail()

		if s.cfg.Auth.Enabled {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing credentials")
				return
			}
			if verified, err := s.auth.Verify(token); err == nil {
				email = verified
			} else if !s.auth.VerifyExtensionKey(token) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
		}

		acct, err := s.store.EnsureAccount(email)
		if err != nil {
			log.Error().Err(err).Msg("server: resolve account")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, acct)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-Extension-Key")
}

// handleAuthLink exchanges the configured dashboard token for a signed
// JWT. The browser extension calls this once during linking.
func (s *Server) handleAuthLink(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Auth.Token == "" {
		writeError(w, http.StatusNotFound, "linking disabled")
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if subtle.ConstantTimeCompare([]byte(body.Token), []byte(s.cfg.Auth.Token)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	jwt, err := s.auth.Mint(s.auth.OwnerEmail())
	if err != nil {
		log.Error().Err(err).Msg("server: mint token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      jwt,
		"expires_in": int64(s.cfg.Auth.TokenTTL().Seconds()),
	})
}

// corsMiddleware reflects allowed origins from config; "*" allows any.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Extension-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Dashboard.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// trackActive maintains the in-flight request gauge.
func (s *Server) trackActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.collector != nil {
			s.collector.IncrementActive()
			defer s.collector.DecrementActive()
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *prompts.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "validation",
			"field": ve.Field, "message": ve.Message,
		})
	case errors.Is(err, prompts.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, prompts.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, prompts.ErrDuplicate), errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, prompts.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent update, retry")
	case errors.Is(err, billing.ErrBadSignature):
		writeError(w, http.StatusUnauthorized, "invalid signature")
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "billing not configured")
	default:
		log.Error().Err(err).Msg("server: request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
