package services

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/csm/internal/metrics"
	"github.com/BradenHooton/csm/internal/models"
)

const (
	DefaultAlertDuration = "60s"
	DefaultAlertLimit    = 1000
)

// AlertRepository defines alert data access
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	GetByID(ctx context.Context, id int64) (*models.Alert, error)
	List(ctx context.Context, since time.Time, limit int, showAll bool) ([]*models.Alert, error)
	Save(ctx context.Context, alert *models.Alert) error
}

// AlertNotifier tells subscribers about a newly stored alert
type AlertNotifier interface {
	NotifyAlert(ctx context.Context, alert *models.Alert) error
}

// AlertInput is an alert reported by the monitoring pipeline
type AlertInput struct {
	AlertUUID            string `json:"alert_uuid" validate:"required,max=128"`
	Severity             string `json:"severity" validate:"required,oneof=critical error warning informational"`
	State                string `json:"state" validate:"omitempty,max=64"`
	Module               string `json:"module" validate:"required,max=128"`
	Resource             string `json:"resource" validate:"max=256"`
	Description          string `json:"description" validate:"max=4096"`
	Health               string `json:"health" validate:"max=256"`
	HealthRecommendation string `json:"health_recommendation" validate:"max=4096"`
}

// AlertView is the serialized form of an alert
type AlertView struct {
	AlertID              int64  `json:"alert_id" xml:"alert_id"`
	AlertUUID            string `json:"alert_uuid" xml:"alert_uuid"`
	Severity             string `json:"severity" xml:"severity"`
	State                string `json:"state" xml:"state"`
	Module               string `json:"module" xml:"module"`
	Resource             string `json:"resource" xml:"resource"`
	Description          string `json:"description" xml:"description"`
	Health               string `json:"health" xml:"health"`
	HealthRecommendation string `json:"health_recommendation" xml:"health_recommendation"`
	Acknowledged         bool   `json:"acknowledged" xml:"acknowledged"`
	Resolved             bool   `json:"resolved" xml:"resolved"`
	Comment              string `json:"comment" xml:"comment"`
	CreatedTime          string `json:"created_time" xml:"created_time"`
	UpdatedTime          string `json:"updated_time" xml:"updated_time"`
}

func newAlertView(a *models.Alert) AlertView {
	return AlertView{
		AlertID:              a.AlertID,
		AlertUUID:            a.AlertUUID,
		Severity:             a.Severity,
		State:                a.State,
		Module:               a.Module,
		Resource:             a.Resource,
		Description:          a.Description,
		Health:               a.Health,
		HealthRecommendation: a.HealthRecommendation,
		Acknowledged:         a.Acknowledged,
		Resolved:             a.Resolved,
		Comment:              a.Comment,
		CreatedTime:          FormatTimestamp(a.CreatedTime),
		UpdatedTime:          FormatTimestamp(a.UpdatedTime),
	}
}

// ParseAlertDuration accepts a count with an optional s, m, h or d suffix.
// A bare count is seconds.
func ParseAlertDuration(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		raw = DefaultAlertDuration
	}

	s = raw
	unit := time.Second
	switch s[len(s)-1] {
	case 's':
		s = s[:len(s)-1]
	case 'm':
		unit, s = time.Minute, s[:len(s)-1]
	case 'h':
		unit, s = time.Hour, s[:len(s)-1]
	case 'd':
		unit, s = 24*time.Hour, s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 || n > math.MaxInt64/int64(unit) {
		return 0, models.InvalidRequest(models.KeyAlertsInvalidDuration, "invalid duration %q", raw)
	}
	return time.Duration(n) * unit, nil
}

// AlertService handles alert business logic
type AlertService struct {
	repo     AlertRepository
	notifier AlertNotifier
	audit    Auditor
	logger   *slog.Logger
	now      func() time.Time
}

// NewAlertService creates a new AlertService. notifier may be nil.
func NewAlertService(repo AlertRepository, notifier AlertNotifier, audit Auditor, logger *slog.Logger) *AlertService {
	return &AlertService{
		repo:     repo,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a reported alert under the next id and mails subscribers
// about critical and error alerts
func (s *AlertService) Create(ctx context.Context, in AlertInput) (AlertView, error) {
	now := s.now().UTC()
	state := in.State
	if state == "" {
		state = models.AlertStateNew
	}

	alert, err := s.repo.Create(ctx, &models.Alert{
		AlertUUID:            in.AlertUUID,
		Severity:             in.Severity,
		State:                state,
		Module:               in.Module,
		Resource:             in.Resource,
		Description:          in.Description,
		Health:               in.Health,
		HealthRecommendation: in.HealthRecommendation,
		CreatedTime:          now,
		UpdatedTime:          now,
	})
	if err != nil {
		return AlertView{}, err
	}
	metrics.AlertsIngested.WithLabelValues(alert.Severity).Inc()

	if alert.Notifiable() && s.notifier != nil {
		if err := s.notifier.NotifyAlert(ctx, alert); err != nil {
			s.logger.Warn("alert notification failed",
				slog.Int64("alert_id", alert.AlertID),
				slog.Any("error", err),
			)
		}
	}

	return newAlertView(alert), nil
}

// List returns alerts raised within duration, newest first. Alerts that are
// both acknowledged and resolved are only included with showAll.
func (s *AlertService) List(ctx context.Context, duration string, limit int, showAll bool) ([]AlertView, error) {
	window, err := ParseAlertDuration(duration)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAlertLimit
	}

	alerts, err := s.repo.List(ctx, s.now().Add(-window), limit, showAll)
	if err != nil {
		return nil, err
	}

	views := make([]AlertView, len(alerts))
	for i, a := range alerts {
		views[i] = newAlertView(a)
	}
	return views, nil
}

func (s *AlertService) get(ctx context.Context, id int64) (*models.Alert, error) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, models.NotFound(models.KeyAlertsNotFound, "Alert was not found: %d", id)
	}
	return alert, nil
}

func (s *AlertService) update(ctx context.Context, action string, id int64, change func(*models.Alert)) (AlertView, error) {
	alert, err := s.get(ctx, id)
	if err == nil {
		change(alert)
		alert.UpdatedTime = s.now().UTC()
		err = s.repo.Save(ctx, alert)
	}
	s.audit.Record(ctx, action, models.AuditResourceAlert, strconv.FormatInt(id, 10), err)
	if err != nil {
		return AlertView{}, err
	}
	return newAlertView(alert), nil
}

// Acknowledge marks the alert as seen by an operator
func (s *AlertService) Acknowledge(ctx context.Context, id int64, comment string) (AlertView, error) {
	return s.update(ctx, models.AuditActionAcknowledge, id, func(a *models.Alert) {
		a.Acknowledged = true
		if comment != "" {
			a.Comment = comment
		}
	})
}

// Resolve marks the underlying condition as cleared
func (s *AlertService) Resolve(ctx context.Context, id int64) (AlertView, error) {
	return s.update(ctx, models.AuditActionUpdate, id, func(a *models.Alert) {
		a.Resolved = true
		a.State = models.AlertStateResolved
	})
}

// ValidateAlertID parses a path segment into an alert id
func ValidateAlertID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.InvalidRequest(models.KeyInvalidRequestBody, "alert id must be a positive integer, got %s", raw)
	}
	return id, nil
}
