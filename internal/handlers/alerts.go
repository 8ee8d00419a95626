package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/csm/internal/services"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// AlertService defines the interface for alert business logic
type AlertService interface {
	Create(ctx context.Context, in services.AlertInput) (services.AlertView, error)
	List(ctx context.Context, duration string, limit int, showAll bool) ([]services.AlertView, error)
	Acknowledge(ctx context.Context, id int64, comment string) (services.AlertView, error)
	Resolve(ctx context.Context, id int64) (services.AlertView, error)
}

// AlertHandler handles alert HTTP requests
type AlertHandler struct {
	service AlertService
}

func NewAlertHandler(service AlertService) *AlertHandler {
	return &AlertHandler{service: service}
}

// UpdateAlertRequest acknowledges an alert and optionally resolves it
type UpdateAlertRequest struct {
	Comment string `json:"comment" validate:"max=1024"`
	Resolve bool   `json:"resolve"`
}

// ListAlertsResponse represents a list of alerts
type ListAlertsResponse struct {
	Alerts []services.AlertView `json:"alerts"`
}

// ListAlerts returns recent alerts
//
// Query: duration (60s, 5m, 2h, 1d), limit, all
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", services.DefaultAlertLimit)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	showAll, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	alerts, err := h.service.List(r.Context(), r.URL.Query().Get("duration"), limit, showAll)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListAlertsResponse{Alerts: alerts})
}

// CreateAlert ingests an alert from the monitoring pipeline
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req services.AlertInput
	if !decodeRequest(w, r, &req) {
		return
	}

	alert, err := h.service.Create(r.Context(), req)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, alert)
}

// UpdateAlert acknowledges the alert in the path
func (h *AlertHandler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	id, err := services.ValidateAlertID(chi.URLParam(r, "alert_id"))
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	var req UpdateAlertRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	alert, err := h.service.Acknowledge(r.Context(), id, req.Comment)
	if err == nil && req.Resolve {
		alert, err = h.service.Resolve(r.Context(), id)
	}
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, alert)
}
