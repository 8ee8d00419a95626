package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal server error")
)

// Message keys carried by CsmError
const (
	KeyUsersNotFound          = "users_not_found"
	KeyUsersAlreadyExists     = "users_already_exists"
	KeyUsersNonSortableField  = "users_non_sortable_field"
	KeyUsersInvalidField      = "users_invalid_field"
	KeyAlertsNotFound         = "alerts_not_found"
	KeyAlertsInvalidDuration  = "alerts_invalid_duration"
	KeyEmailNotSubscribed     = "email_not_subscribed"
	KeyEmailInvalidAddress    = "email_invalid_address"
	KeyEmailNotConfigured     = "email_not_configured"
	KeySupportBundleNotFound  = "support_bundle_not_found"
	KeyNoAuditLogForComponent = "no_audit_log_for_component"
	KeyAuditLogInvalidRange   = "audit_log_invalid_range"
	KeyInvalidCredentials     = "invalid_credentials"
	KeyPermissionDenied       = "permission_denied"
	KeyInvalidRequestBody     = "invalid_request_body"
	KeyStorageUnavailable     = "storage_unavailable"
	KeyInvalidArgument        = "invalid_argument"
	KeyNotAuthorized          = "not_authorized"
	KeyAgentUnavailable       = "agent_unavailable"
	KeyInvalidResponse        = "invalid_response"
)

// CsmError is a classified failure carrying a stable message key that
// clients can match on
type CsmError struct {
	Kind    error
	Key     string
	Message string
}

func (e *CsmError) Error() string {
	if e.Message == "" {
		return e.Key
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func (e *CsmError) Unwrap() error {
	return e.Kind
}

func newCsmError(kind error, key, format string, args ...any) *CsmError {
	return &CsmError{Kind: kind, Key: key, Message: fmt.Sprintf(format, args...)}
}

// InvalidRequest reports a request the caller must correct
func InvalidRequest(key, format string, args ...any) *CsmError {
	return newCsmError(ErrInvalidRequest, key, format, args...)
}

// NotFound reports a missing resource
func NotFound(key, format string, args ...any) *CsmError {
	return newCsmError(ErrNotFound, key, format, args...)
}

func Unauthorized(key, format string, args ...any) *CsmError {
	return newCsmError(ErrUnauthorized, key, format, args...)
}

func Forbidden(key, format string, args ...any) *CsmError {
	return newCsmError(ErrForbidden, key, format, args...)
}

func ServiceUnavailable(key, format string, args ...any) *CsmError {
	return newCsmError(ErrServiceUnavailable, key, format, args...)
}

// ErrorKey extracts the message key of err, or "" when err is not a CsmError
func ErrorKey(err error) string {
	var ce *CsmError
	if errors.As(err, &ce) {
		return ce.Key
	}
	return ""
}
