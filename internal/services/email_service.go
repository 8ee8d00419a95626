package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/csm/internal/metrics"
	"github.com/BradenHooton/csm/internal/models"
	pkglogger "github.com/BradenHooton/csm/pkg/logger"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// EmailConfigRepository defines access to the single email configuration
type EmailConfigRepository interface {
	Get(ctx context.Context) (*models.EmailConfig, error)
	Save(ctx context.Context, cfg *models.EmailConfig) error
	Delete(ctx context.Context) error
}

// EmailConfigView is the serialized email configuration
type EmailConfigView struct {
	Sender       string   `json:"sender" xml:"sender"`
	Subscribers  []string `json:"subscribers" xml:"subscribers>address"`
	WeeklyReport bool     `json:"weekly_report" xml:"weekly_report"`
	UpdatedTime  string   `json:"updated_time,omitempty" xml:"updated_time,omitempty"`
}

// EmailService manages notification settings and sends notification mail.
// Changes to the single config record are read-modify-write and are
// serialized within the process.
type EmailService struct {
	mu            sync.Mutex
	repo          EmailConfigRepository
	sender        EmailSender
	defaultSender string
	audit         Auditor
	logger        *slog.Logger
	now           func() time.Time
}

// NewEmailService creates a new EmailService. defaultSender is used until a
// sender is configured.
func NewEmailService(repo EmailConfigRepository, sender EmailSender, defaultSender string, audit Auditor, logger *slog.Logger) *EmailService {
	return &EmailService{
		repo:          repo,
		sender:        sender,
		defaultSender: defaultSender,
		audit:         audit,
		logger:        logger,
		now:           time.Now,
	}
}

func validateAddress(address string) error {
	if err := validate.Var(address, "required,email,max=254"); err != nil {
		return models.InvalidRequest(models.KeyEmailInvalidAddress, "invalid email address: %s", address)
	}
	return nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// load returns the stored configuration or a fresh default one
func (s *EmailService) load(ctx context.Context) (*models.EmailConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &models.EmailConfig{ConfigID: models.EmailConfigID, Sender: s.defaultSender}
	}
	return cfg, nil
}

func (s *EmailService) save(ctx context.Context, action, target string, cfg *models.EmailConfig) (EmailConfigView, error) {
	cfg.UpdatedTime = s.now().UTC()
	err := s.repo.Save(ctx, cfg)
	s.audit.Record(ctx, action, models.AuditResourceEmail, target, err)
	if err != nil {
		return EmailConfigView{}, err
	}
	return newEmailConfigView(cfg), nil
}

func newEmailConfigView(cfg *models.EmailConfig) EmailConfigView {
	view := EmailConfigView{
		Sender:       cfg.Sender,
		Subscribers:  append([]string{}, cfg.Subscribers...),
		WeeklyReport: cfg.WeeklyReport,
	}
	if !cfg.UpdatedTime.IsZero() {
		view.UpdatedTime = FormatTimestamp(cfg.UpdatedTime)
	}
	return view
}

// Show returns the current configuration
func (s *EmailService) Show(ctx context.Context) (EmailConfigView, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		return EmailConfigView{}, err
	}
	return newEmailConfigView(cfg), nil
}

// Configure sets the sender address and the weekly report flag
func (s *EmailService) Configure(ctx context.Context, sender string, weeklyReport bool) (EmailConfigView, error) {
	sender = normalizeAddress(sender)
	if err := validateAddress(sender); err != nil {
		return EmailConfigView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(ctx)
	if err != nil {
		return EmailConfigView{}, err
	}
	cfg.Sender = sender
	cfg.WeeklyReport = weeklyReport
	return s.save(ctx, models.AuditActionUpdate, "config", cfg)
}

// Reset drops the stored configuration, subscribers included
func (s *EmailService) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.Delete(ctx)
	s.audit.Record(ctx, models.AuditActionDelete, models.AuditResourceEmail, "config", err)
	return err
}

// Subscribe adds address to the notification list. Subscribing twice is
// not an error.
func (s *EmailService) Subscribe(ctx context.Context, address string) (EmailConfigView, error) {
	address = normalizeAddress(address)
	if err := validateAddress(address); err != nil {
		return EmailConfigView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(ctx)
	if err != nil {
		return EmailConfigView{}, err
	}
	if cfg.IsSubscribed(address) {
		return newEmailConfigView(cfg), nil
	}
	cfg.Subscribers = append(slices.Clip(cfg.Subscribers), address)
	return s.save(ctx, models.AuditActionCreate, "subscriber", cfg)
}

// Unsubscribe removes address from the notification list
func (s *EmailService) Unsubscribe(ctx context.Context, address string) (EmailConfigView, error) {
	address = normalizeAddress(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load(ctx)
	if err != nil {
		return EmailConfigView{}, err
	}
	if !cfg.IsSubscribed(address) {
		return EmailConfigView{}, models.NotFound(models.KeyEmailNotSubscribed, "%s is not subscribed", address)
	}

	kept := make([]string, 0, len(cfg.Subscribers))
	for _, sub := range cfg.Subscribers {
		if sub != address {
			kept = append(kept, sub)
		}
	}
	cfg.Subscribers = kept
	return s.save(ctx, models.AuditActionDelete, "subscriber", cfg)
}

func (s *EmailService) deliver(ctx context.Context, kind string, cfg *models.EmailConfig, msg EmailMessage) error {
	msg.From = cfg.Sender
	msg.To = cfg.Subscribers
	err := s.sender.Send(ctx, msg)
	metrics.EmailsSent.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return models.ServiceUnavailable(models.KeyEmailNotConfigured, "failed to send mail: %v", err)
	}
	for _, to := range msg.To {
		s.logger.Info("notification mail sent",
			slog.String("kind", kind),
			slog.String("to", pkglogger.SanitizedEmail(to)),
		)
	}
	return nil
}

// SendTest mails every subscriber a test message
func (s *EmailService) SendTest(ctx context.Context) error {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || len(cfg.Subscribers) == 0 || cfg.Sender == "" {
		return models.InvalidRequest(models.KeyEmailNotConfigured, "email notifications are not configured")
	}
	return s.deliver(ctx, "test", cfg, testMessage(s.now()))
}

// NotifyAlert mails subscribers about alert. Without subscribers it does
// nothing.
func (s *EmailService) NotifyAlert(ctx context.Context, alert *models.Alert) error {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || len(cfg.Subscribers) == 0 || cfg.Sender == "" {
		return nil
	}
	return s.deliver(ctx, "alert", cfg, alertMessage(alert))
}

func testMessage(now time.Time) EmailMessage {
	return EmailMessage{
		Subject: "CSM test notification",
		Text: fmt.Sprintf("This is a test message sent by the CSM agent at %s.\n"+
			"You receive it because this address is subscribed to CSM notifications.\n",
			FormatTimestamp(now)),
	}
}

func alertMessage(a *models.Alert) EmailMessage {
	return EmailMessage{
		Subject: fmt.Sprintf("[CSM] %s alert %d on %s", strings.ToUpper(a.Severity), a.AlertID, a.Module),
		Text: fmt.Sprintf("Alert %d (%s)\n\nSeverity: %s\nModule: %s\nResource: %s\nRaised: %s\n\n%s\n\nHealth: %s\nRecommendation: %s\n",
			a.AlertID, a.AlertUUID, a.Severity, a.Module, a.Resource,
			FormatTimestamp(a.CreatedTime), a.Description, a.Health, a.HealthRecommendation),
	}
}
