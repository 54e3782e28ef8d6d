package middlewarectx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/remindmybill/remindmybill/internal/http/middlewarectx"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) ValidateToken(ctx context.Context, token string) (string, string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.String(1), args.Error(2)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	authService := new(AuthServiceMock)
	authService.On("ValidateToken", mock.Anything, "good-token").
		Return("testuser", "user", nil)

	var gotUsername, gotRole string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUsername, _ = r.Context().Value(middlewarectx.User).(string)
		gotRole, _ = r.Context().Value(middlewarectx.Role).(string)
	})

	handler := middlewarectx.JWTMiddleware(authService, discardLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "testuser", gotUsername)
	assert.Equal(t, "user", gotRole)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	authService := new(AuthServiceMock)

	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("next handler should not be called")
	})

	handler := middlewarectx.JWTMiddleware(authService, discardLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	authService.AssertNotCalled(t, "ValidateToken")
}

func TestJWTMiddleware_InvalidToken(t *testing.T) {
	authService := new(AuthServiceMock)
	authService.On("ValidateToken", mock.Anything, "bad-token").
		Return("", "", errors.New("token is malformed"))

	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("next handler should not be called")
	})

	handler := middlewarectx.JWTMiddleware(authService, discardLogger())(next)

	req := httptest.NewRequest(http.MethodGet, "/subscriptions", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
