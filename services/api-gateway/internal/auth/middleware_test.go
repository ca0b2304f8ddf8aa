package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(userID string) Claims {
	return Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestVerify(t *testing.T) {
	v := NewVerifier(secret)

	expired := validClaims("u1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	subjectOnly := validClaims("")
	subjectOnly.Subject = "u2"

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{name: "valid", token: sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("u1")), want: "u1"},
		{name: "subject fallback", token: sign(t, jwt.SigningMethodHS256, []byte(secret), subjectOnly), want: "u2"},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims("u1")), wantErr: true},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, []byte(secret), expired), wantErr: true},
		{name: "other algorithm", token: sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims("u1")), wantErr: true},
		{name: "garbage", token: "not-a-token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	var seenHeader, seenCtx string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get(UserIDHeader)
		seenCtx = ForContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware(NewVerifier(secret), slog.New(slog.NewTextHandler(io.Discard, nil)), "/v1/auth")(next)

	do := func(path, authorization, spoofed string) int {
		seenHeader, seenCtx = "", ""
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		if spoofed != "" {
			req.Header.Set(UserIDHeader, spoofed)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("public path without token", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do("/v1/auth/login", "", "intruder"))
		assert.Empty(t, seenHeader)
	})

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("/v1/posts/all-posts", "", ""))
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("/v1/posts/all-posts", "Bearer nope", ""))
	})

	t.Run("valid token overrides spoofed header", func(t *testing.T) {
		token := sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims("u1"))
		assert.Equal(t, http.StatusNoContent, do("/v1/posts/all-posts", "Bearer "+token, "intruder"))
		assert.Equal(t, "u1", seenHeader)
		assert.Equal(t, "u1", seenCtx)
	})
}
