package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/services"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// AuthService defines the interface for session handling
type AuthService interface {
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context) error
	Permissions(ctx context.Context) models.Permissions
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// Login checks credentials and returns the access token both in the
// Authorization header and in the body
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+res.Token)
	pkghttp.WriteJSON(w, http.StatusOK, res)
}

// Logout revokes the presented token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// Permissions lists what the caller's roles allow
func (h *AuthHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.Permissions(r.Context()))
}
