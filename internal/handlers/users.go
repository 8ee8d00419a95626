package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/csm/internal/services"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// UserService defines the interface for user business logic
type UserService interface {
	CreateUser(ctx context.Context, userID, password string, opts services.UserOptions) (services.UserView, error)
	GetUser(ctx context.Context, userID string) (services.UserView, error)
	GetUserList(ctx context.Context, limit, offset int, sortBy, sortDir string) ([]services.UserView, error)
	DeleteUser(ctx context.Context, userID string) error
	UpdateUser(ctx context.Context, userID string, upd services.UserUpdate) (services.UserView, error)
}

// UserHandler handles CSM user HTTP requests
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// UserOptionsRequest holds the optional user fields shared by create and update
type UserOptionsRequest struct {
	UserType    *string  `json:"user_type,omitempty"`
	Interfaces  []string `json:"interfaces,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Temperature *string  `json:"temperature,omitempty"`
	Language    *string  `json:"language,omitempty"`
	Timeout     *int     `json:"timeout,omitempty"`
}

func (o UserOptionsRequest) options() services.UserOptions {
	return services.UserOptions{
		UserType:    o.UserType,
		Interfaces:  o.Interfaces,
		Roles:       o.Roles,
		Temperature: o.Temperature,
		Language:    o.Language,
		Timeout:     o.Timeout,
	}
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Password string `json:"password" validate:"required"`
	UserOptionsRequest
}

// UpdateUserRequest represents the request body for updating a user. Absent
// fields are left unchanged.
type UpdateUserRequest struct {
	UserID   *string `json:"user_id,omitempty"`
	Password *string `json:"password,omitempty"`
	UserOptionsRequest
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users []services.UserView `json:"users"`
}

// ListUsers returns a page of users
//
// Query: limit, offset, sortby, dir
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	q := r.URL.Query()
	users, err := h.service.GetUserList(r.Context(), limit, offset, q.Get("sortby"), q.Get("dir"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, ListUsersResponse{Users: users})
}

// GetUser returns a single user
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// CreateUser creates a new CSM user
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.UserID, req.Password, req.options())
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, user)
}

// UpdateUser changes fields of an existing user, renaming it when user_id
// is given
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "user_id"), services.UserUpdate{
		UserID:      req.UserID,
		Password:    req.Password,
		UserOptions: req.options(),
	})
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// DeleteUser deletes a user
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "User " + userID + " deleted"})
}
