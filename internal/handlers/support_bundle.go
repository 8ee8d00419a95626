package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/csm/internal/services"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// SupportBundleService defines the interface for support bundle operations
type SupportBundleService interface {
	Create(ctx context.Context, comment string) (services.SupportBundleView, error)
	List(ctx context.Context) ([]services.SupportBundleView, error)
	Delete(ctx context.Context, id string) error
}

// SupportBundleHandler handles support bundle HTTP requests
type SupportBundleHandler struct {
	service SupportBundleService
}

func NewSupportBundleHandler(service SupportBundleService) *SupportBundleHandler {
	return &SupportBundleHandler{service: service}
}

// CreateSupportBundleRequest represents the optional body of a create call
type CreateSupportBundleRequest struct {
	Comment string `json:"comment" validate:"max=1024"`
}

// ListSupportBundlesResponse represents a list of bundles
type ListSupportBundlesResponse struct {
	SupportBundles []services.SupportBundleView `json:"support_bundles"`
}

// Create generates a bundle. The body may be omitted.
func (h *SupportBundleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSupportBundleRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, &req) {
		return
	}

	bundle, err := h.service.Create(r.Context(), req.Comment)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, bundle)
}

func (h *SupportBundleHandler) List(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.service.List(r.Context())
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListSupportBundlesResponse{SupportBundles: bundles})
}

func (h *SupportBundleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "bundle_id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "Support bundle " + id + " deleted"})
}
