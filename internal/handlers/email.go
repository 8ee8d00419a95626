package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/csm/internal/services"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// EmailService defines the interface for notification settings
type EmailService interface {
	Show(ctx context.Context) (services.EmailConfigView, error)
	Configure(ctx context.Context, sender string, weeklyReport bool) (services.EmailConfigView, error)
	Reset(ctx context.Context) error
	Subscribe(ctx context.Context, address string) (services.EmailConfigView, error)
	Unsubscribe(ctx context.Context, address string) (services.EmailConfigView, error)
	SendTest(ctx context.Context) error
}

// EmailHandler handles email configuration HTTP requests
type EmailHandler struct {
	service EmailService
}

func NewEmailHandler(service EmailService) *EmailHandler {
	return &EmailHandler{service: service}
}

// EmailConfigRequest represents the request body for configuring email
type EmailConfigRequest struct {
	Sender       string `json:"sender" validate:"required"`
	WeeklyReport bool   `json:"weekly_report"`
}

// SubscriptionRequest names the address to subscribe or unsubscribe
type SubscriptionRequest struct {
	Address string `json:"address" validate:"required"`
}

func (h *EmailHandler) ShowConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Show(r.Context())
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, cfg)
}

func (h *EmailHandler) Configure(w http.ResponseWriter, r *http.Request) {
	var req EmailConfigRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cfg, err := h.service.Configure(r.Context(), req.Sender, req.WeeklyReport)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, cfg)
}

func (h *EmailHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context()); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "Email configuration has been reset"})
}

func (h *EmailHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cfg, err := h.service.Subscribe(r.Context(), req.Address)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, cfg)
}

func (h *EmailHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	cfg, err := h.service.Unsubscribe(r.Context(), req.Address)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, cfg)
}

// SendTest mails a test message to every subscriber
func (h *EmailHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SendTest(r.Context()); err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, messageResponse{Message: "Test email has been sent"})
}
