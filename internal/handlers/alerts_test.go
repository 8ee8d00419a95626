package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/csm/internal/handlers"
	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/services"
)

func TestListAlerts(t *testing.T) {
	var gotDuration string
	var gotLimit int
	var gotAll bool
	mockService := &handlers.MockAlertService{
		ListFunc: func(_ context.Context, duration string, limit int, showAll bool) ([]services.AlertView, error) {
			gotDuration, gotLimit, gotAll = duration, limit, showAll
			return []services.AlertView{{AlertID: 3}}, nil
		},
	}
	handler := handlers.NewAlertHandler(mockService)

	w := httptest.NewRecorder()
	handler.ListAlerts(w, handlers.NewTestRequest(t, "GET", "/api/v1/alerts?duration=5m&all=true", nil))

	var resp handlers.ListAlertsResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Len(t, resp.Alerts, 1)
	assert.Equal(t, "5m", gotDuration)
	assert.Equal(t, services.DefaultAlertLimit, gotLimit)
	assert.True(t, gotAll)
}

func TestListAlerts_InvalidDuration(t *testing.T) {
	mockService := &handlers.MockAlertService{
		ListFunc: func(_ context.Context, duration string, _ int, _ bool) ([]services.AlertView, error) {
			_, err := services.ParseAlertDuration(duration)
			return nil, err
		},
	}
	handler := handlers.NewAlertHandler(mockService)

	w := httptest.NewRecorder()
	handler.ListAlerts(w, handlers.NewTestRequest(t, "GET", "/api/v1/alerts?duration=forever", nil))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyAlertsInvalidDuration)
}

func TestCreateAlert(t *testing.T) {
	handler := handlers.NewAlertHandler(&handlers.MockAlertService{})

	w := httptest.NewRecorder()
	handler.CreateAlert(w, handlers.NewTestRequest(t, "POST", "/api/v1/alerts", services.AlertInput{
		AlertUUID: "a1", Severity: models.SeverityCritical, Module: "disk",
	}))
	var resp services.AlertView
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, models.SeverityCritical, resp.Severity)

	w = httptest.NewRecorder()
	handler.CreateAlert(w, handlers.NewTestRequest(t, "POST", "/api/v1/alerts", services.AlertInput{
		AlertUUID: "a1", Severity: "apocalyptic", Module: "disk",
	}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyInvalidRequestBody)
}

func TestUpdateAlert(t *testing.T) {
	resolved := false
	mockService := &handlers.MockAlertService{
		ResolveFunc: func(_ context.Context, id int64) (services.AlertView, error) {
			resolved = true
			return services.AlertView{AlertID: id, Acknowledged: true, Resolved: true}, nil
		},
	}
	handler := handlers.NewAlertHandler(mockService)

	req := handlers.NewTestRequest(t, "PATCH", "/api/v1/alerts/7", handlers.UpdateAlertRequest{Comment: "on it"})
	req = handlers.WithChiRouteContext(req, map[string]string{"alert_id": "7"})
	w := httptest.NewRecorder()
	handler.UpdateAlert(w, req)

	var resp services.AlertView
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Acknowledged)
	assert.Equal(t, "on it", resp.Comment)
	assert.False(t, resolved)

	req = handlers.NewTestRequest(t, "PATCH", "/api/v1/alerts/7", handlers.UpdateAlertRequest{Resolve: true})
	req = handlers.WithChiRouteContext(req, map[string]string{"alert_id": "7"})
	w = httptest.NewRecorder()
	handler.UpdateAlert(w, req)
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resolved)
}

func TestUpdateAlert_Errors(t *testing.T) {
	mockService := &handlers.MockAlertService{
		AcknowledgeFunc: func(_ context.Context, id int64, _ string) (services.AlertView, error) {
			return services.AlertView{}, models.NotFound(models.KeyAlertsNotFound, "Alert was not found: %d", id)
		},
	}
	handler := handlers.NewAlertHandler(mockService)

	req := handlers.NewTestRequest(t, "PATCH", "/api/v1/alerts/abc", handlers.UpdateAlertRequest{})
	req = handlers.WithChiRouteContext(req, map[string]string{"alert_id": "abc"})
	w := httptest.NewRecorder()
	handler.UpdateAlert(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyInvalidRequestBody)

	req = handlers.NewTestRequest(t, "PATCH", "/api/v1/alerts/9", handlers.UpdateAlertRequest{})
	req = handlers.WithChiRouteContext(req, map[string]string{"alert_id": "9"})
	w = httptest.NewRecorder()
	handler.UpdateAlert(w, req)
	handlers.AssertErrorResponse(t, w, http.StatusNotFound, models.KeyAlertsNotFound)
}
