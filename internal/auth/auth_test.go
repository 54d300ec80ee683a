package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-for-testing-only"

func newTestIssuer(t *testing.T, now time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issuer.now = func() time.Time { return now }
	return issuer
}

func newTestHandler(t *testing.T, password string) (*Handler, *TokenIssuer) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	issuer := newTestIssuer(t, time.Now())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(NewService(string(hash), issuer), issuer, logger), issuer
}

func TestNewTokenIssuer(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("expected ErrMissingSecret, got %v", err)
	}
}

func TestTokenIssuer(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		issuer := newTestIssuer(t, now)
		token, expiresAt, err := issuer.Issue(AdminSubject, RoleAdmin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !expiresAt.Equal(now.Add(time.Hour)) {
			t.Errorf("expected expiry %v, got %v", now.Add(time.Hour), expiresAt)
		}

		claims, err := issuer.Validate(token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if claims.Subject != AdminSubject {
			t.Errorf("expected subject %q, got %q", AdminSubject, claims.Subject)
		}
		if claims.Role != RoleAdmin {
			t.Errorf("expected role %q, got %q", RoleAdmin, claims.Role)
		}
	})

	t.Run("rejects expired token", func(t *testing.T) {
		issuer := newTestIssuer(t, now)
		token, _, err := issuer.Issue(AdminSubject, RoleAdmin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		issuer.now = func() time.Time { return now.Add(2 * time.Hour) }
		if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		other, err := NewTokenIssuer("another-secret", time.Hour)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		token, _, err := other.Issue(AdminSubject, RoleAdmin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := newTestIssuer(t, time.Now()).Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("rejects unsigned token", func(t *testing.T) {
		claims := Claims{
			Role: RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   AdminSubject,
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := newTestIssuer(t, now).Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("rejects empty subject", func(t *testing.T) {
		if _, _, err := newTestIssuer(t, now).Issue("", RoleAdmin); err == nil {
			t.Error("expected error for empty subject")
		}
	})
}

func TestService_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	issuer := newTestIssuer(t, time.Now())

	tests := []struct {
		name     string
		hash     string
		password string
		wantErr  error
	}{
		{name: "correct password", hash: string(hash), password: "s3cret"},
		{name: "wrong password", hash: string(hash), password: "nope", wantErr: ErrInvalidCredentials},
		{name: "empty password", hash: string(hash), password: "", wantErr: ErrInvalidCredentials},
		{name: "no hash configured", hash: "", password: "s3cret", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := NewService(tt.hash, issuer).Login(tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && token.Token == "" {
				t.Error("expected a token")
			}
		})
	}
}

func TestHandler_HandleLogin(t *testing.T) {
	handler, issuer := newTestHandler(t, "s3cret")

	t.Run("returns a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"s3cret"}`))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp Token
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if _, err := issuer.Validate(resp.Token); err != nil {
			t.Errorf("expected a valid token, got %v", err)
		}
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{"password":"guess"}`))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(`{`))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_RequireAdmin(t *testing.T) {
	handler, issuer := newTestHandler(t, "s3cret")
	adminToken, _, err := issuer.Issue(AdminSubject, RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viewerToken, _, err := issuer.Issue("someone", "viewer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotSubject string
	protected := handler.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = r.Header.Get(SubjectHeader)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", authorization: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "no token", authorization: "Bearer", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authorization: "Bearer invalid_token_xyz", wantStatus: http.StatusUnauthorized},
		{name: "non admin role", authorization: "Bearer " + viewerToken, wantStatus: http.StatusForbidden},
		{name: "admin token", authorization: "Bearer " + adminToken, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodGet, "/admin/events", nil)
			req.Header.Set(SubjectHeader, "spoofed")
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rec := httptest.NewRecorder()

			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusNoContent && gotSubject != AdminSubject {
				t.Errorf("expected subject %q, got %q", AdminSubject, gotSubject)
			}
		})
	}
}
