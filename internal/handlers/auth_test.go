package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/csm/internal/auth"
	"github.com/BradenHooton/csm/internal/handlers"
	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/services"
)

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(_ context.Context, username, password string) (*services.LoginResult, error) {
			assert.Equal(t, "bob", username)
			return &services.LoginResult{Username: "bob", Roles: []string{models.RoleAdmin}, Token: "tok"}, nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth)

	w := httptest.NewRecorder()
	handler.Login(w, handlers.NewTestRequest(t, "POST", "/api/v1/login", handlers.LoginRequest{Username: " bob ", Password: "x"}))

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Bearer tok", w.Header().Get("Authorization"))
	assert.Equal(t, "tok", resp.Token)
}

func TestLogin_Failures(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{})

	w := httptest.NewRecorder()
	handler.Login(w, handlers.NewTestRequest(t, "POST", "/api/v1/login", handlers.LoginRequest{Username: "bob", Password: "y"}))
	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, models.KeyInvalidCredentials)
	assert.Empty(t, w.Header().Get("Authorization"))

	w = httptest.NewRecorder()
	handler.Login(w, handlers.NewTestRequest(t, "POST", "/api/v1/login", handlers.LoginRequest{Username: "bob"}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyInvalidRequestBody)
}

func TestLogout(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context) error {
			if auth.Caller(ctx) == "" {
				return models.Unauthorized("unauthorized", "not logged in")
			}
			return nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth)

	w := httptest.NewRecorder()
	handler.Logout(w, handlers.WithAuthContext(handlers.NewTestRequest(t, "POST", "/api/v1/logout", nil), "bob"))
	handlers.AssertJSONResponse(t, w, http.StatusOK, nil)

	w = httptest.NewRecorder()
	handler.Logout(w, handlers.NewTestRequest(t, "POST", "/api/v1/logout", nil))
	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestPermissions(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		PermissionsFunc: func(ctx context.Context) models.Permissions {
			return models.PermissionsForRoles(auth.ClaimsFromContext(ctx).Roles)
		},
	}
	handler := handlers.NewAuthHandler(mockAuth)

	req := handlers.WithAuthContext(handlers.NewTestRequest(t, "GET", "/api/v1/permissions", nil), "bob", models.RoleMonitor)
	w := httptest.NewRecorder()
	handler.Permissions(w, req)

	var resp models.Permissions
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Allows(models.PermUsers, models.ActionRead))
	assert.False(t, resp.Allows(models.PermUsers, models.ActionWrite))
}

func TestHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := httptest.NewRecorder()
	handlers.NewHealthHandler(&handlers.MockHealthChecker{}, "sqlite", logger).Health(w, httptest.NewRequest("GET", "/health", nil))
	var resp handlers.HealthResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sqlite", resp.Storage)

	w = httptest.NewRecorder()
	handlers.NewHealthHandler(&handlers.MockHealthChecker{Err: errors.New("locked")}, "sqlite", logger).Health(w, httptest.NewRequest("GET", "/health", nil))
	handlers.AssertJSONResponse(t, w, http.StatusServiceUnavailable, &resp)
	assert.Equal(t, "unhealthy", resp.Status)
}
