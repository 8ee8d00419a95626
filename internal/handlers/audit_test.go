package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/csm/internal/handlers"
	"github.com/BradenHooton/csm/internal/models"
)

func withComponent(r *http.Request, component string) *http.Request {
	return handlers.WithChiRouteContext(r, map[string]string{"component": component})
}

func TestAuditHandler_Show(t *testing.T) {
	var gotStart, gotEnd int64
	mockService := &handlers.MockAuditService{
		GetByRangeFunc: func(_ context.Context, component string, start, end int64) ([]string, error) {
			assert.Equal(t, models.AuditComponentCsm, component)
			gotStart, gotEnd = start, end
			return []string{"line two", "line one"}, nil
		},
	}
	handler := handlers.NewAuditHandler(mockService)

	req := withComponent(handlers.NewTestRequest(t, "GET", "/api/v1/auditlogs/show/csm?start_date=100&end_date=200", nil), "csm")
	w := httptest.NewRecorder()
	handler.Show(w, req)

	var resp handlers.AuditLogResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, []string{"line two", "line one"}, resp.Logs)
	assert.Equal(t, int64(100), gotStart)
	assert.Equal(t, int64(200), gotEnd)
}

func TestAuditHandler_ShowBadRange(t *testing.T) {
	handler := handlers.NewAuditHandler(&handlers.MockAuditService{})

	for _, query := range []string{"", "?start_date=1", "?start_date=a&end_date=2"} {
		req := withComponent(handlers.NewTestRequest(t, "GET", "/api/v1/auditlogs/show/csm"+query, nil), "csm")
		w := httptest.NewRecorder()
		handler.Show(w, req)
		handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyAuditLogInvalidRange)
	}
}

func TestAuditHandler_Download(t *testing.T) {
	mockService := &handlers.MockAuditService{
		DownloadFunc: func(_ context.Context, component string, start, end int64) (string, []byte, error) {
			return "csm_1_2.tar.gz", []byte{0x1f, 0x8b}, nil
		},
	}
	handler := handlers.NewAuditHandler(mockService)

	req := withComponent(handlers.NewTestRequest(t, "GET", "/api/v1/auditlogs/download/csm?start_date=1&end_date=2", nil), "csm")
	w := httptest.NewRecorder()
	handler.Download(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="csm_1_2.tar.gz"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, []byte{0x1f, 0x8b}, w.Body.Bytes())
}

func TestAuditHandler_DownloadUnknownComponent(t *testing.T) {
	handler := handlers.NewAuditHandler(&handlers.MockAuditService{})

	req := withComponent(handlers.NewTestRequest(t, "GET", "/api/v1/auditlogs/download/s3?start_date=1&end_date=2", nil), "s3")
	w := httptest.NewRecorder()
	handler.Download(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, models.KeyNoAuditLogForComponent)
}
