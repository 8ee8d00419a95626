package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/csm/internal/models"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// AuditService defines the interface for audit log queries
type AuditService interface {
	GetByRange(ctx context.Context, component string, start, end int64) ([]string, error)
	Download(ctx context.Context, component string, start, end int64) (string, []byte, error)
}

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	service AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// AuditLogResponse carries the formatted entries of one range query
type AuditLogResponse struct {
	Logs []string `json:"logs"`
}

// auditRange reads the required start_date and end_date unix timestamps
func auditRange(r *http.Request) (start, end int64, err error) {
	parse := func(name string) (int64, error) {
		raw := r.URL.Query().Get(name)
		n, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return 0, models.InvalidRequest(models.KeyAuditLogInvalidRange, "%s must be a unix timestamp, got %q", name, raw)
		}
		return n, nil
	}
	if start, err = parse("start_date"); err != nil {
		return 0, 0, err
	}
	if end, err = parse("end_date"); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Show returns the entries of a component between start_date and end_date
func (h *AuditHandler) Show(w http.ResponseWriter, r *http.Request) {
	start, end, err := auditRange(r)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	logs, err := h.service.GetByRange(r.Context(), chi.URLParam(r, "component"), start, end)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, AuditLogResponse{Logs: logs})
}

// Download streams the same range as a tar.gz attachment
func (h *AuditHandler) Download(w http.ResponseWriter, r *http.Request) {
	start, end, err := auditRange(r)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	name, data, err := h.service.Download(r.Context(), chi.URLParam(r, "component"), start, end)
	if err != nil {
		pkghttp.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
