package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "ops@keepmore.app",
		Role:  "authenticated",
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testSecret)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := validClaims()
	noSubject.Subject = ""

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())},
		{name: "wrong secret", token: signToken(t, jwt.SigningMethodHS256, []byte("another-secret"), validClaims()), wantErr: ErrInvalidToken},
		{name: "HS512 rejected", token: signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims()), wantErr: ErrInvalidToken},
		{name: "expired", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), wantErr: ErrExpiredToken},
		{name: "missing subject", token: signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject), wantErr: ErrMissingSubject},
		{name: "garbage", token: "not.a.jwt", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Verify(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.UserID() != "6b1f5c2e-0c1d-4e4a-9d35-2f0a3f9e2a10" || claims.Email != "ops@keepmore.app" {
				t.Errorf("unexpected claims: %+v", claims)
			}
		})
	}
}

func TestVerifier_Unconfigured(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	if _, err := NewVerifier("").Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
