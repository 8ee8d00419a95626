package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/BradenHooton/csm/internal/metrics"
	"github.com/BradenHooton/csm/internal/models"
)

// bundleWindow is how far back a bundle collects alerts and audit logs
const bundleWindow = 24 * time.Hour

// SupportBundleRepository defines support bundle data access
type SupportBundleRepository interface {
	Create(ctx context.Context, bundle *models.SupportBundle) error
	Save(ctx context.Context, bundle *models.SupportBundle) error
	GetByID(ctx context.Context, id string) (*models.SupportBundle, error)
	List(ctx context.Context) ([]*models.SupportBundle, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.SupportBundle, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// UserCounter reports how many users exist
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// SupportBundleView is the serialized form of a bundle
type SupportBundleView struct {
	BundleID    string `json:"bundle_id" xml:"bundle_id"`
	Comment     string `json:"comment" xml:"comment"`
	Status      string `json:"status" xml:"status"`
	Location    string `json:"location,omitempty" xml:"location,omitempty"`
	Size        int64  `json:"size" xml:"size"`
	CreatedTime string `json:"created_time" xml:"created_time"`
}

type bundleManifest struct {
	BundleID    string `json:"bundle_id"`
	Comment     string `json:"comment"`
	Host        string `json:"host"`
	CreatedTime string `json:"created_time"`
	WindowStart string `json:"window_start"`
	UsersCount  int64  `json:"users_count"`
	AlertsCount int    `json:"alerts_count"`
	AuditCount  int    `json:"audit_log_count"`
}

// SupportBundleService collects diagnostic archives
type SupportBundleService struct {
	repo   SupportBundleRepository
	alerts AlertRepository
	audits AuditLogRepository
	users  UserCounter
	store  BundleStore
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewSupportBundleService creates a new SupportBundleService
func NewSupportBundleService(repo SupportBundleRepository, alerts AlertRepository, audits AuditLogRepository, users UserCounter, store BundleStore, audit Auditor, logger *slog.Logger) *SupportBundleService {
	return &SupportBundleService{
		repo:   repo,
		alerts: alerts,
		audits: audits,
		users:  users,
		store:  store,
		audit:  audit,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
}

// BundleObjectKey is where the archive of bundle id is stored
func BundleObjectKey(id string) string {
	return "support_bundle/" + id + ".tar.gz"
}

func (s *SupportBundleService) view(b *models.SupportBundle) SupportBundleView {
	v := SupportBundleView{
		BundleID:    b.BundleID,
		Comment:     b.Comment,
		Status:      b.Status,
		Size:        b.Size,
		CreatedTime: FormatTimestamp(b.CreatedTime),
	}
	if b.ObjectKey != "" {
		v.Location = s.store.Location(b.ObjectKey)
	}
	return v
}

// Create generates a bundle, uploads it and records the outcome. A failed
// upload leaves a record with status failed.
func (s *SupportBundleService) Create(ctx context.Context, comment string) (SupportBundleView, error) {
	bundle := &models.SupportBundle{
		BundleID:    s.newID(),
		Comment:     strings.TrimSpace(comment),
		Status:      models.BundleStatusInProgress,
		CreatedTime: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, bundle); err != nil {
		return SupportBundleView{}, err
	}

	err := s.generate(ctx, bundle)
	if err != nil {
		bundle.Status = models.BundleStatusFailed
		s.logger.Error("support bundle generation failed",
			slog.String("bundle_id", bundle.BundleID),
			slog.Any("error", err),
		)
	} else {
		bundle.Status = models.BundleStatusReady
	}
	metrics.SupportBundles.WithLabelValues(bundle.Status).Inc()

	if saveErr := s.repo.Save(ctx, bundle); saveErr != nil {
		return SupportBundleView{}, saveErr
	}
	s.audit.Record(ctx, models.AuditActionCreate, models.AuditResourceSupportBundle, bundle.BundleID, err)
	if err != nil {
		return s.view(bundle), models.ServiceUnavailable(models.KeyStorageUnavailable, "support bundle %s could not be generated", bundle.BundleID)
	}

	s.logger.Info("support bundle created",
		slog.String("bundle_id", bundle.BundleID),
		slog.Int64("size", bundle.Size),
	)
	return s.view(bundle), nil
}

func (s *SupportBundleService) generate(ctx context.Context, bundle *models.SupportBundle) error {
	since := bundle.CreatedTime.Add(-bundleWindow)

	alerts, err := s.alerts.List(ctx, since, DefaultAlertLimit, true)
	if err != nil {
		return fmt.Errorf("collect alerts: %w", err)
	}
	alertViews := make([]AlertView, len(alerts))
	for i, a := range alerts {
		alertViews[i] = newAlertView(a)
	}
	alertsJSON, err := json.MarshalIndent(alertViews, "", "  ")
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}

	logs, err := s.audits.GetByRange(ctx, models.AuditComponentCsm, since, bundle.CreatedTime, MaxAuditResultWindow)
	if err != nil {
		return fmt.Errorf("collect audit logs: %w", err)
	}
	var auditText strings.Builder
	for _, l := range logs {
		auditText.WriteString(l.Message)
		auditText.WriteByte('\n')
	}

	users, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}

	host, _ := os.Hostname()
	manifest, err := json.MarshalIndent(bundleManifest{
		BundleID:    bundle.BundleID,
		Comment:     bundle.Comment,
		Host:        host,
		CreatedTime: FormatTimestamp(bundle.CreatedTime),
		WindowStart: FormatTimestamp(since),
		UsersCount:  users,
		AlertsCount: len(alerts),
		AuditCount:  len(logs),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	archive, err := tarGz([]archiveFile{
		{Name: "manifest.json", Body: manifest},
		{Name: "alerts.json", Body: alertsJSON},
		{Name: "audit_log.txt", Body: []byte(auditText.String())},
	}, bundle.CreatedTime)
	if err != nil {
		return fmt.Errorf("pack bundle: %w", err)
	}

	key := BundleObjectKey(bundle.BundleID)
	if err := s.store.Put(ctx, key, archive); err != nil {
		return err
	}
	bundle.ObjectKey = key
	bundle.Size = int64(len(archive))
	return nil
}

// List returns every bundle, newest first
func (s *SupportBundleService) List(ctx context.Context) ([]SupportBundleView, error) {
	bundles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SupportBundleView, len(bundles))
	for i, b := range bundles {
		views[i] = s.view(b)
	}
	return views, nil
}

func (s *SupportBundleService) remove(ctx context.Context, b *models.SupportBundle) error {
	if b.ObjectKey != "" {
		if err := s.store.Delete(ctx, b.ObjectKey); err != nil {
			return err
		}
	}
	_, err := s.repo.Delete(ctx, b.BundleID)
	return err
}

// Delete removes the archive and then the record
func (s *SupportBundleService) Delete(ctx context.Context, id string) error {
	bundle, err := s.repo.GetByID(ctx, id)
	if err == nil && bundle == nil {
		err = models.NotFound(models.KeySupportBundleNotFound, "Support bundle was not found: %s", id)
	}
	if err == nil {
		err = s.remove(ctx, bundle)
	}
	s.audit.Record(ctx, models.AuditActionDelete, models.AuditResourceSupportBundle, id, err)
	return err
}

// PurgeOlderThan deletes bundles created before cutoff and reports how many
// were removed. It stops at the first failure.
func (s *SupportBundleService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for i, b := range stale {
		if err := s.remove(ctx, b); err != nil {
			return i, fmt.Errorf("purge bundle %s: %w", b.BundleID, err)
		}
	}
	return len(stale), nil
}
