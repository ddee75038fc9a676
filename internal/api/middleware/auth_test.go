package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/autoparts-storefront/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService(testSecret, 15*time.Minute)
}

func okHandler(hit *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================
// ExtractToken Tests
// ============================================

func TestExtractToken_FromCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})

	assert.Equal(t, "cookie-token", ExtractToken(r))
}

func TestExtractToken_FromBearerHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "header-token", ExtractToken(r))
}

func TestExtractToken_CookieWinsOverHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	r.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "cookie-token", ExtractToken(r))
}

func TestExtractToken_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(r))
}

// ============================================
// RequireAuth Tests
// ============================================

func TestRequireAuth_ValidToken(t *testing.T) {
	jwtService := newTestJWT()
	token, _, err := jwtService.GenerateToken("user-123", "user@example.com")
	require.NoError(t, err)

	var gotUserID string
	handler := RequireAuth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-123", gotUserID)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	var hit bool
	handler := RequireAuth(newTestJWT())(okHandler(&hit))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, hit)
}

func TestRequireAuth_BadToken(t *testing.T) {
	var hit bool
	handler := RequireAuth(newTestJWT())(okHandler(&hit))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, hit)
}

// ============================================
// OptionalAuth Tests
// ============================================

func TestOptionalAuth_GuestPassesThrough(t *testing.T) {
	var hit bool
	var userID string
	handler := OptionalAuth(newTestJWT())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		userID = GetUserID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, hit)
	assert.Empty(t, userID)
}

func TestOptionalAuth_ValidTokenResolved(t *testing.T) {
	jwtService := newTestJWT()
	token, _, err := jwtService.GenerateToken("user-9", "u@example.com")
	require.NoError(t, err)

	var userID string
	handler := OptionalAuth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID = GetUserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "user-9", userID)
}

// ============================================
// Visitor Tests
// ============================================

func TestVisitor_AuthenticatedUsesUserID(t *testing.T) {
	jwtService := newTestJWT()
	token, _, err := jwtService.GenerateToken("user-42", "u@example.com")
	require.NoError(t, err)

	var visitorID string
	handler := OptionalAuth(jwtService)(Visitor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitorID = GetVisitorID(r.Context())
	})))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "user-42", visitorID)
}

func TestVisitor_GuestGetsCookie(t *testing.T) {
	var visitorID string
	handler := Visitor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitorID = GetVisitorID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, strings.HasPrefix(visitorID, "guest-"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookie, cookies[0].Name)
	assert.Equal(t, visitorID, cookies[0].Value)
}

func TestVisitor_ExistingCookieReused(t *testing.T) {
	var visitorID string
	handler := Visitor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitorID = GetVisitorID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: VisitorCookie, Value: "guest-abc"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, "guest-abc", visitorID)
	assert.Empty(t, w.Result().Cookies())
}
