package middleware

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"keepmore/internal/shared/auth"
)

type ContextKey string

const (
	UserIDKey ContextKey = "user_id"
	EmailKey  ContextKey = "email"
)

const maxAuthBodyBytes = 1 << 20

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// UserIDFromContext returns the authenticated user id set by UserAuth or AdminAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

// UserAuth requires a valid Supabase access token whose subject owns the
// request. JSON bodies naming a user through "userId" or "user" must name
// the token subject, else 403. The body is restored for the handler.
func UserAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(verifier, r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAuthBodyBytes))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !ownsBody(body, claims.UserID()) {
				writeJSONError(w, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// AdminAuth requires a valid Supabase access token. When allowlist is
// non-empty the token email must be on it (case-insensitive), else 403.
func AdminAuth(verifier TokenVerifier, allowlist []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, email := range allowlist {
		allowed[strings.ToLower(strings.TrimSpace(email))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(verifier, r)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if len(allowed) > 0 {
				if _, ok := allowed[strings.ToLower(claims.Email)]; !ok {
					writeJSONError(w, http.StatusForbidden, "Forbidden")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// CronAuth admits a bearer equal to secret and otherwise falls back to
// AdminAuth. An empty secret disables the shared-secret path.
func CronAuth(secret string, verifier TokenVerifier, allowlist []string) func(http.Handler) http.Handler {
	admin := AdminAuth(verifier, allowlist)

	return func(next http.Handler) http.Handler {
		adminNext := admin(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if ok && secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			adminNext.ServeHTTP(w, r)
		})
	}
}

func authenticate(verifier TokenVerifier, r *http.Request) (*auth.Claims, bool) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, false
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID())
	return context.WithValue(ctx, EmailKey, claims.Email)
}

// ownsBody reports whether every user reference in a JSON body matches
// subject. Bodies that are not JSON objects carry no reference; the
// handler rejects them.
func ownsBody(body []byte, subject string) bool {
	var refs struct {
		UserID *string `json:"userId"`
		User   *string `json:"user"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &refs) != nil {
		return true
	}
	for _, ref := range []*string{refs.UserID, refs.User} {
		if ref != nil && *ref != subject {
			return false
		}
	}
	return true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
