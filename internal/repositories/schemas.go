package repositories

import (
	"fmt"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
	"github.com/google/uuid"
)

// Collection names
const (
	UsersCollection          = "users"
	AlertsCollection         = "alerts"
	EmailConfigCollection    = "email_config"
	SupportBundlesCollection = "support_bundles"
	AuditLogsCollection      = "audit_logs"
)

// Field names shared by the schemas and the query code
const (
	FieldUserID      = "user_id"
	FieldUserType    = "user_type"
	FieldCreatedTime = "created_time"
	FieldUpdatedTime = "updated_time"

	FieldAlertID      = "alert_id"
	FieldAcknowledged = "acknowledged"
	FieldResolved     = "resolved"

	FieldConfigID = "config_id"
	FieldBundleID = "bundle_id"

	FieldAuditID   = "id"
	FieldComponent = "component"
)

var UserSchema = storage.Schema[models.User]{
	Name: UsersCollection,
	Key:  FieldUserID,
	Fields: []string{
		FieldUserID, "password_hash", FieldUserType, "interfaces", "roles",
		"temperature", "language", "timeout", FieldCreatedTime, FieldUpdatedTime,
	},
	Values: func(u models.User) []any {
		return []any{
			u.UserID, u.PasswordHash, u.UserType, u.Interfaces, u.Roles,
			u.Temperature, u.Language, u.Timeout, u.CreatedTime, u.UpdatedTime,
		}
	},
	Scan: func(scan func(dest ...any) error) (models.User, error) {
		var u models.User
		err := scan(
			&u.UserID, &u.PasswordHash, &u.UserType, &u.Interfaces, &u.Roles,
			&u.Temperature, &u.Language, &u.Timeout, &u.CreatedTime, &u.UpdatedTime,
		)
		return u, err
	},
}

var AlertSchema = storage.Schema[models.Alert]{
	Name: AlertsCollection,
	Key:  FieldAlertID,
	Fields: []string{
		FieldAlertID, "alert_uuid", "severity", "state", "module", "resource",
		"description", "health", "health_recommendation", FieldAcknowledged,
		FieldResolved, "comment", FieldCreatedTime, FieldUpdatedTime,
	},
	Values: func(a models.Alert) []any {
		return []any{
			a.AlertID, a.AlertUUID, a.Severity, a.State, a.Module, a.Resource,
			a.Description, a.Health, a.HealthRecommendation, a.Acknowledged,
			a.Resolved, a.Comment, a.CreatedTime, a.UpdatedTime,
		}
	},
	Scan: func(scan func(dest ...any) error) (models.Alert, error) {
		var a models.Alert
		err := scan(
			&a.AlertID, &a.AlertUUID, &a.Severity, &a.State, &a.Module, &a.Resource,
			&a.Description, &a.Health, &a.HealthRecommendation, &a.Acknowledged,
			&a.Resolved, &a.Comment, &a.CreatedTime, &a.UpdatedTime,
		)
		return a, err
	},
}

var EmailConfigSchema = storage.Schema[models.EmailConfig]{
	Name:   EmailConfigCollection,
	Key:    FieldConfigID,
	Fields: []string{FieldConfigID, "sender", "subscribers", "weekly_report", FieldUpdatedTime},
	Values: func(c models.EmailConfig) []any {
		return []any{c.ConfigID, c.Sender, c.Subscribers, c.WeeklyReport, c.UpdatedTime}
	},
	Scan: func(scan func(dest ...any) error) (models.EmailConfig, error) {
		var c models.EmailConfig
		err := scan(&c.ConfigID, &c.Sender, &c.Subscribers, &c.WeeklyReport, &c.UpdatedTime)
		return c, err
	},
}

var SupportBundleSchema = storage.Schema[models.SupportBundle]{
	Name:   SupportBundlesCollection,
	Key:    FieldBundleID,
	Fields: []string{FieldBundleID, "comment", "status", "object_key", "size", FieldCreatedTime},
	Values: func(b models.SupportBundle) []any {
		return []any{b.BundleID, b.Comment, b.Status, b.ObjectKey, b.Size, b.CreatedTime}
	},
	Scan: func(scan func(dest ...any) error) (models.SupportBundle, error) {
		var b models.SupportBundle
		err := scan(&b.BundleID, &b.Comment, &b.Status, &b.ObjectKey, &b.Size, &b.CreatedTime)
		return b, err
	},
}

var AuditLogSchema = storage.Schema[models.AuditLog]{
	Name: AuditLogsCollection,
	Key:  FieldAuditID,
	Fields: []string{
		FieldAuditID, FieldComponent, FieldCreatedTime, "username", "action",
		"resource", "success", "message",
	},
	Values: func(l models.AuditLog) []any {
		return []any{
			l.ID.String(), l.Component, l.CreatedTime, l.User, l.Action,
			l.Resource, l.Success, l.Message,
		}
	},
	Scan: func(scan func(dest ...any) error) (models.AuditLog, error) {
		var (
			l  models.AuditLog
			id string
		)
		if err := scan(&id, &l.Component, &l.CreatedTime, &l.User, &l.Action,
			&l.Resource, &l.Success, &l.Message); err != nil {
			return l, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return l, fmt.Errorf("parse audit log id %q: %w", id, err)
		}
		l.ID = parsed
		return l, nil
	},
}
