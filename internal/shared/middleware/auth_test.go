package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"keepmore/internal/shared/auth"
)

// MockVerifier implements TokenVerifier for testing
type MockVerifier struct {
	VerifyFunc func(token string) (*auth.Claims, error)
}

func (m *MockVerifier) Verify(token string) (*auth.Claims, error) {
	return m.VerifyFunc(token)
}

func TestAdminAuth(t *testing.T) {
	verifier := &MockVerifier{
		VerifyFunc: func(token string) (*auth.Claims, error) {
			switch token {
			case "admin-token":
				return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}, Email: "Ops@KeepMore.app"}, nil
			case "member-token":
				return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"}, Email: "someone@example.com"}, nil
			default:
				return nil, errors.New("invalid token")
			}
		},
	}

	tests := []struct {
		name           string
		header         string
		allowlist      []string
		expectedStatus int
		expectedUser   string
	}{
		{name: "Valid Token on Allowlist", header: "Bearer admin-token", allowlist: []string{"ops@keepmore.app"}, expectedStatus: http.StatusOK, expectedUser: "user-1"},
		{name: "Empty Allowlist Admits Any Valid Token", header: "Bearer member-token", expectedStatus: http.StatusOK, expectedUser: "user-2"},
		{name: "Valid Token Not on Allowlist", header: "Bearer member-token", allowlist: []string{"ops@keepmore.app"}, expectedStatus: http.StatusForbidden},
		{name: "No Token", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "Wrong Scheme", header: "Basic admin-token", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Token", header: "Bearer invalid", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userID, _ := r.Context().Value(UserIDKey).(string)
				if userID != tt.expectedUser {
					t.Errorf("user id in context = %q, want %q", userID, tt.expectedUser)
				}
				w.WriteHeader(http.StatusOK)
			})

			handler := AdminAuth(verifier, tt.allowlist)(nextHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/admin/metrics", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func userVerifier() *MockVerifier {
	return &MockVerifier{
		VerifyFunc: func(token string) (*auth.Claims, error) {
			if token == "user-token" {
				return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10"}, Email: "me@example.com"}, nil
			}
			return nil, auth.ErrInvalidToken
		},
	}
}

func TestUserAuth(t *testing.T) {
	const self = "6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10"

	tests := []struct {
		name           string
		header         string
		body           string
		expectedStatus int
	}{
		{name: "Own userId", header: "Bearer user-token", body: `{"userId":"` + self + `"}`, expectedStatus: http.StatusOK},
		{name: "Own user field", header: "Bearer user-token", body: `{"publicToken":"public-1","user":"` + self + `"}`, expectedStatus: http.StatusOK},
		{name: "No user reference", header: "Bearer user-token", body: `{"publicToken":"public-1"}`, expectedStatus: http.StatusOK},
		{name: "Other userId", header: "Bearer user-token", body: `{"userId":"7d0c2a4e-1111-2222-3333-444455556666"}`, expectedStatus: http.StatusForbidden},
		{name: "Other user field", header: "Bearer user-token", body: `{"user":"someone-else"}`, expectedStatus: http.StatusForbidden},
		{name: "Empty userId", header: "Bearer user-token", body: `{"userId":""}`, expectedStatus: http.StatusForbidden},
		{name: "Mixed references", header: "Bearer user-token", body: `{"userId":"` + self + `","user":"someone-else"}`, expectedStatus: http.StatusForbidden},
		{name: "No Token", body: `{"userId":"` + self + `"}`, expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Token", header: "Bearer forged", body: `{"userId":"` + self + `"}`, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody string
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				gotBody = string(b)
				if id, ok := UserIDFromContext(r.Context()); !ok || id != self {
					t.Errorf("user id in context = %q, want %q", id, self)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/account/delete", strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			UserAuth(userVerifier())(nextHandler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusOK && gotBody != tt.body {
				t.Errorf("body seen by handler = %q, want %q", gotBody, tt.body)
			}
		})
	}
}

func TestCronAuth(t *testing.T) {
	tests := []struct {
		name           string
		secret         string
		header         string
		expectedStatus int
	}{
		{name: "Shared Secret", secret: "cron-secret", header: "Bearer cron-secret", expectedStatus: http.StatusOK},
		{name: "Wrong Secret", secret: "cron-secret", header: "Bearer guess", expectedStatus: http.StatusUnauthorized},
		{name: "Admin Session", secret: "cron-secret", header: "Bearer user-token", expectedStatus: http.StatusOK},
		{name: "Empty Secret Never Matches", secret: "", header: "Bearer ", expectedStatus: http.StatusUnauthorized},
		{name: "No Token", secret: "cron-secret", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/plaid/sync-data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			CronAuth(tt.secret, userVerifier(), nil)(nextHandler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestCronAuth_AllowlistStillApplies(t *testing.T) {
	handler := CronAuth("cron-secret", userVerifier(), []string{"ops@keepmore.app"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/embeddings/batch", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}
