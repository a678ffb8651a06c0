package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/config"
	"chatwire/internal/database"
	"chatwire/internal/testutil"
)

func TestAuthMiddleware(t *testing.T) {
	app := NewChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, &database.MockChatRepository{}, nil, &config.Config{
		SigningKey: []byte("test-signing-key"),
	})

	handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		userId, ok := UserId(r.Context())
		assert.True(t, ok, "expected user id in request context")
		assert.Equal(t, "u-1", userId)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token cookie passes through", func(t *testing.T) {
		token, err := app.createJwtForSession("u-1", defaultJwtExpiration)
		require.NoError(t, err, "failed to create token")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(createJwtCookie(token, defaultJwtExpiration))

		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.NotEmpty(t, rr.Header().Get("Cache-Control"), "expected cache control header on authenticated responses")
	})

	t.Run("missing cookie is unauthorized", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler(rr, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "garbage"})

		rr := httptest.NewRecorder()
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestErrorHandler(t *testing.T) {
	app := NewChatApp(http.NewServeMux(), testutil.TestLogger(t), nil, &database.MockChatRepository{}, nil, &config.Config{})

	handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected panic to become a 500")
	assert.Equal(t, "close", rr.Header().Get("Connection"), "expected connection close header")
}
