package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/csm/internal/auth"
	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/services"
	pkghttp "github.com/BradenHooton/csm/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds caller claims to the request context
func WithAuthContext(req *http.Request, userID string, roles ...string) *http.Request {
	claims := &models.TokenClaims{
		Type:   models.TokenTypeAccess,
		UserID: userID,
		Roles:  roles,
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is an error carrying key
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedKey string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedKey, resp.Error, "Error key mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockUserService implements UserService for testing
type MockUserService struct {
	CreateUserFunc  func(ctx context.Context, userID, password string, opts services.UserOptions) (services.UserView, error)
	GetUserFunc     func(ctx context.Context, userID string) (services.UserView, error)
	GetUserListFunc func(ctx context.Context, limit, offset int, sortBy, sortDir string) ([]services.UserView, error)
	DeleteUserFunc  func(ctx context.Context, userID string) error
	UpdateUserFunc  func(ctx context.Context, userID string, upd services.UserUpdate) (services.UserView, error)
}

func (m *MockUserService) CreateUser(ctx context.Context, userID, password string, opts services.UserOptions) (services.UserView, error) {
	if m.CreateUserFunc == nil {
		return services.UserView{}, models.InvalidRequest(models.KeyUsersAlreadyExists, "User already exists: %s", userID)
	}
	return m.CreateUserFunc(ctx, userID, password, opts)
}

func (m *MockUserService) GetUser(ctx context.Context, userID string) (services.UserView, error) {
	if m.GetUserFunc == nil {
		return services.UserView{}, models.NotFound(models.KeyUsersNotFound, "There is no such user: %s", userID)
	}
	return m.GetUserFunc(ctx, userID)
}

func (m *MockUserService) GetUserList(ctx context.Context, limit, offset int, sortBy, sortDir string) ([]services.UserView, error) {
	if m.GetUserListFunc == nil {
		return []services.UserView{}, nil
	}
	return m.GetUserListFunc(ctx, limit, offset, sortBy, sortDir)
}

func (m *MockUserService) DeleteUser(ctx context.Context, userID string) error {
	if m.DeleteUserFunc == nil {
		return nil
	}
	return m.DeleteUserFunc(ctx, userID)
}

func (m *MockUserService) UpdateUser(ctx context.Context, userID string, upd services.UserUpdate) (services.UserView, error) {
	if m.UpdateUserFunc == nil {
		return services.UserView{}, models.NotFound(models.KeyUsersNotFound, "There is no such user: %s", userID)
	}
	return m.UpdateUserFunc(ctx, userID, upd)
}

// MockAlertService implements AlertService for testing
type MockAlertService struct {
	CreateFunc      func(ctx context.Context, in services.AlertInput) (services.AlertView, error)
	ListFunc        func(ctx context.Context, duration string, limit int, showAll bool) ([]services.AlertView, error)
	AcknowledgeFunc func(ctx context.Context, id int64, comment string) (services.AlertView, error)
	ResolveFunc     func(ctx context.Context, id int64) (services.AlertView, error)
}

func (m *MockAlertService) Create(ctx context.Context, in services.AlertInput) (services.AlertView, error) {
	if m.CreateFunc == nil {
		return services.AlertView{AlertID: 1, Severity: in.Severity}, nil
	}
	return m.CreateFunc(ctx, in)
}

func (m *MockAlertService) List(ctx context.Context, duration string, limit int, showAll bool) ([]services.AlertView, error) {
	if m.ListFunc == nil {
		return []services.AlertView{}, nil
	}
	return m.ListFunc(ctx, duration, limit, showAll)
}

func (m *MockAlertService) Acknowledge(ctx context.Context, id int64, comment string) (services.AlertView, error) {
	if m.AcknowledgeFunc == nil {
		return services.AlertView{AlertID: id, Acknowledged: true, Comment: comment}, nil
	}
	return m.AcknowledgeFunc(ctx, id, comment)
}

func (m *MockAlertService) Resolve(ctx context.Context, id int64) (services.AlertView, error) {
	if m.ResolveFunc == nil {
		return services.AlertView{AlertID: id, Acknowledged: true, Resolved: true}, nil
	}
	return m.ResolveFunc(ctx, id)
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	ShowFunc        func(ctx context.Context) (services.EmailConfigView, error)
	ConfigureFunc   func(ctx context.Context, sender string, weeklyReport bool) (services.EmailConfigView, error)
	ResetFunc       func(ctx context.Context) error
	SubscribeFunc   func(ctx context.Context, address string) (services.EmailConfigView, error)
	UnsubscribeFunc func(ctx context.Context, address string) (services.EmailConfigView, error)
	SendTestFunc    func(ctx context.Context) error
}

func (m *MockEmailService) Show(ctx context.Context) (services.EmailConfigView, error) {
	if m.ShowFunc == nil {
		return services.EmailConfigView{Subscribers: []string{}}, nil
	}
	return m.ShowFunc(ctx)
}

func (m *MockEmailService) Configure(ctx context.Context, sender string, weeklyReport bool) (services.EmailConfigView, error) {
	if m.ConfigureFunc == nil {
		return services.EmailConfigView{Sender: sender, WeeklyReport: weeklyReport}, nil
	}
	return m.ConfigureFunc(ctx, sender, weeklyReport)
}

func (m *MockEmailService) Reset(ctx context.Context) error {
	if m.ResetFunc == nil {
		return nil
	}
	return m.ResetFunc(ctx)
}

func (m *MockEmailService) Subscribe(ctx context.Context, address string) (services.EmailConfigView, error) {
	if m.SubscribeFunc == nil {
		return services.EmailConfigView{Subscribers: []string{address}}, nil
	}
	return m.SubscribeFunc(ctx, address)
}

func (m *MockEmailService) Unsubscribe(ctx context.Context, address string) (services.EmailConfigView, error) {
	if m.UnsubscribeFunc == nil {
		return services.EmailConfigView{}, models.NotFound(models.KeyEmailNotSubscribed, "%s is not subscribed", address)
	}
	return m.UnsubscribeFunc(ctx, address)
}

func (m *MockEmailService) SendTest(ctx context.Context) error {
	if m.SendTestFunc == nil {
		return nil
	}
	return m.SendTestFunc(ctx)
}

// MockSupportBundleService implements SupportBundleService for testing
type MockSupportBundleService struct {
	CreateFunc func(ctx context.Context, comment string) (services.SupportBundleView, error)
	ListFunc   func(ctx context.Context) ([]services.SupportBundleView, error)
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *MockSupportBundleService) Create(ctx context.Context, comment string) (services.SupportBundleView, error) {
	if m.CreateFunc == nil {
		return services.SupportBundleView{BundleID: "b1", Comment: comment, Status: models.BundleStatusReady}, nil
	}
	return m.CreateFunc(ctx, comment)
}

func (m *MockSupportBundleService) List(ctx context.Context) ([]services.SupportBundleView, error) {
	if m.ListFunc == nil {
		return []services.SupportBundleView{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockSupportBundleService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return models.NotFound(models.KeySupportBundleNotFound, "Support bundle was not found: %s", id)
	}
	return m.DeleteFunc(ctx, id)
}

// MockAuditService implements AuditService for testing
type MockAuditService struct {
	GetByRangeFunc func(ctx context.Context, component string, start, end int64) ([]string, error)
	DownloadFunc   func(ctx context.Context, component string, start, end int64) (string, []byte, error)
}

func (m *MockAuditService) GetByRange(ctx context.Context, component string, start, end int64) ([]string, error) {
	if m.GetByRangeFunc == nil {
		return []string{}, nil
	}
	return m.GetByRangeFunc(ctx, component, start, end)
}

func (m *MockAuditService) Download(ctx context.Context, component string, start, end int64) (string, []byte, error) {
	if m.DownloadFunc == nil {
		return "", nil, models.NotFound(models.KeyNoAuditLogForComponent, "No audit logs for %s", component)
	}
	return m.DownloadFunc(ctx, component, start, end)
}

// MockAuthService implements AuthService for testing
type MockAuthService struct {
	LoginFunc       func(ctx context.Context, username, password string) (*services.LoginResult, error)
	LogoutFunc      func(ctx context.Context) error
	PermissionsFunc func(ctx context.Context) models.Permissions
}

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.Unauthorized(models.KeyInvalidCredentials, "Invalid username or password")
	}
	return m.LoginFunc(ctx, username, password)
}

func (m *MockAuthService) Logout(ctx context.Context) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx)
}

func (m *MockAuthService) Permissions(ctx context.Context) models.Permissions {
	if m.PermissionsFunc == nil {
		return models.PermissionsForRoles(nil)
	}
	return m.PermissionsFunc(ctx)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(context.Context) error {
	return m.Err
}
