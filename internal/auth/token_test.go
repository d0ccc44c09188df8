package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(req)
	assert.Error(t, err, "missing header")

	req.Header.Set("Authorization", "Basic abc123")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err, "wrong scheme")

	req.Header.Set("Authorization", "Bearer token-value")
	token, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "token-value", token)
}

func TestSubjectFromToken(t *testing.T) {
	const secret = "gate-secret"

	t.Run("valid token", func(t *testing.T) {
		sub, err := SubjectFromToken(signToken(t, secret, "staff-1"), secret)
		require.NoError(t, err)
		assert.Equal(t, "staff-1", sub)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := SubjectFromToken(signToken(t, "other-secret", "staff-1"), secret)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "staff-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = SubjectFromToken(signed, secret)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		_, err = SubjectFromToken(signed, secret)
		assert.Error(t, err)
	})

	t.Run("empty secret rejects everything", func(t *testing.T) {
		_, err := SubjectFromToken(signToken(t, "whatever", "staff-2"), "")
		assert.Error(t, err, "an unconfigured secret must not admit forged tokens")
	})
}

func TestMiddleware(t *testing.T) {
	const secret = "gate-secret"

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		require.True(t, ok)
		w.Write([]byte(userID))
	})
	guarded := Middleware(secret)(next)

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/check-in", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "staff-1"))
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "staff-1", rec.Body.String())
	})

	t.Run("no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-in", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/check-in", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "forged", "staff-1"))
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty secret fails closed", func(t *testing.T) {
		open := Middleware("")(next)
		req := httptest.NewRequest(http.MethodPost, "/check-in", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "any-secret", "staff-1"))
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
