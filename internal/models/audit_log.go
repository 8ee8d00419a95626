package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit components that can be queried
const (
	AuditComponentCsm = "csm"
)

// Resource types
const (
	AuditResourceUser          = "user"
	AuditResourceAlert         = "alert"
	AuditResourceEmail         = "email"
	AuditResourceSupportBundle = "support_bundle"
	AuditResourceSession       = "session"
)

// Actions
const (
	AuditActionCreate      = "create"
	AuditActionUpdate      = "update"
	AuditActionDelete      = "delete"
	AuditActionLogin       = "login"
	AuditActionLogout      = "logout"
	AuditActionAcknowledge = "acknowledge"
)

type AuditLog struct {
	ID          uuid.UUID
	Component   string
	CreatedTime time.Time
	User        string
	Action      string
	Resource    string
	Success     bool
	Message     string
}

// NewAuditLog stamps a csm component entry with a fresh id
func NewAuditLog(user, action, resource string, success bool, message string) *AuditLog {
	return &AuditLog{
		ID:          uuid.New(),
		Component:   AuditComponentCsm,
		CreatedTime: time.Now().UTC(),
		User:        user,
		Action:      action,
		Resource:    resource,
		Success:     success,
		Message:     message,
	}
}
