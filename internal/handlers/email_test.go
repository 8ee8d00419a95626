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

func TestEmailHandler_Configure(t *testing.T) {
	handler := handlers.NewEmailHandler(&handlers.MockEmailService{})

	w := httptest.NewRecorder()
	handler.Configure(w, handlers.NewTestRequest(t, "PUT", "/api/v1/email/config", handlers.EmailConfigRequest{
		Sender: "csm@example.com", WeeklyReport: true,
	}))

	var resp services.EmailConfigView
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "csm@example.com", resp.Sender)
	assert.True(t, resp.WeeklyReport)

	w = httptest.NewRecorder()
	handler.Configure(w, handlers.NewTestRequest(t, "PUT", "/api/v1/email/config", map[string]any{"weekly_report": true}))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyInvalidRequestBody)
}

func TestEmailHandler_Subscriptions(t *testing.T) {
	handler := handlers.NewEmailHandler(&handlers.MockEmailService{})

	w := httptest.NewRecorder()
	handler.Subscribe(w, handlers.NewTestRequest(t, "POST", "/api/v1/email/subscribe", handlers.SubscriptionRequest{Address: "ops@example.com"}))
	var resp services.EmailConfigView
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, []string{"ops@example.com"}, resp.Subscribers)

	w = httptest.NewRecorder()
	handler.Unsubscribe(w, handlers.NewTestRequest(t, "POST", "/api/v1/email/unsubscribe", handlers.SubscriptionRequest{Address: "dev@example.com"}))
	handlers.AssertErrorResponse(t, w, http.StatusNotFound, models.KeyEmailNotSubscribed)
}

func TestEmailHandler_ShowResetAndTest(t *testing.T) {
	mockService := &handlers.MockEmailService{
		SendTestFunc: func(context.Context) error {
			return models.InvalidRequest(models.KeyEmailNotConfigured, "email notifications are not configured")
		},
	}
	handler := handlers.NewEmailHandler(mockService)

	w := httptest.NewRecorder()
	handler.ShowConfig(w, handlers.NewTestRequest(t, "GET", "/api/v1/email/config", nil))
	handlers.AssertJSONResponse(t, w, http.StatusOK, nil)

	w = httptest.NewRecorder()
	handler.Reset(w, handlers.NewTestRequest(t, "DELETE", "/api/v1/email/config", nil))
	handlers.AssertJSONResponse(t, w, http.StatusOK, nil)

	w = httptest.NewRecorder()
	handler.SendTest(w, handlers.NewTestRequest(t, "POST", "/api/v1/email/test", nil))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, models.KeyEmailNotConfigured)
}
