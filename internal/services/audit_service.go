package services

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/csm/internal/auth"
	"github.com/BradenHooton/csm/internal/models"
	pkglogger "github.com/BradenHooton/csm/pkg/logger"
)

// MaxAuditResultWindow caps the entries returned by one range query
const MaxAuditResultWindow = 10000

// Auditor records the outcome of a state changing operation
type Auditor interface {
	Record(ctx context.Context, action, resource, target string, err error)
}

// AuditLogRepository defines audit log data access
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	GetByRange(ctx context.Context, component string, start, end time.Time, limit int) ([]*models.AuditLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// auditFormats renders one stored entry per queryable component
var auditFormats = map[string]func(*models.AuditLog) string{
	models.AuditComponentCsm: func(l *models.AuditLog) string { return l.Message },
}

// AuditService handles audit logging with dual-write pattern (slog + storage)
type AuditService struct {
	repo   AuditLogRepository
	audit  *pkglogger.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(repo AuditLogRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		audit:  pkglogger.NewAuditLogger(logger),
		logger: logger,
		now:    time.Now,
	}
}

func describeOutcome(err error) string {
	if err == nil {
		return "success"
	}
	if key := models.ErrorKey(err); key != "" {
		return "failed (" + key + ")"
	}
	return "failed"
}

// Record writes the event to the structured log and persists it. A storage
// failure is logged and never returned to the caller.
func (s *AuditService) Record(ctx context.Context, action, resource, target string, err error) {
	user := auth.Caller(ctx)
	if user == "" {
		user = "-"
	}
	now := s.now().UTC()
	message := fmt.Sprintf("%s %s %s %s %s: %s",
		now.Format(time.RFC3339), user, action, resource, target, describeOutcome(err))

	entry := models.NewAuditLog(user, action, resource, err == nil, message)
	entry.CreatedTime = now

	s.audit.Log(ctx, pkglogger.AuditEvent{
		Action:   action,
		Resource: resource,
		UserID:   user,
		Success:  err == nil,
		Message:  describeOutcome(err),
		Metadata: map[string]string{"target": target},
	})

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit log",
			slog.String("action", action),
			slog.String("resource", resource),
			slog.Any("error", err),
		)
	}
}

func (s *AuditService) formatRange(ctx context.Context, component string, start, end int64) ([]string, error) {
	format, ok := auditFormats[component]
	if !ok {
		return nil, models.NotFound(models.KeyNoAuditLogForComponent, "No audit logs for %s", component)
	}
	if start > end {
		return nil, models.InvalidRequest(models.KeyAuditLogInvalidRange, "start_date %d is after end_date %d", start, end)
	}

	logs, err := s.repo.GetByRange(ctx, component, time.Unix(start, 0), time.Unix(end, 0), MaxAuditResultWindow)
	if err != nil {
		return nil, err
	}

	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = format(l)
	}
	return lines, nil
}

// GetByRange returns the formatted entries of component between the unix
// timestamps start and end, newest first
func (s *AuditService) GetByRange(ctx context.Context, component string, start, end int64) ([]string, error) {
	s.logger.InfoContext(ctx, "audit logs requested",
		slog.String("component", component),
		slog.Int64("start", start),
		slog.Int64("end", end),
	)
	return s.formatRange(ctx, component, start, end)
}

// AuditLogFileName is the base name of a downloaded audit log range
func AuditLogFileName(component string, start, end int64) string {
	return fmt.Sprintf("%s_%d_%d", component, start, end)
}

// Download packs the range into a gzipped tarball holding a single
// <component>_<start>_<end>.txt and returns the archive name and bytes
func (s *AuditService) Download(ctx context.Context, component string, start, end int64) (string, []byte, error) {
	lines, err := s.formatRange(ctx, component, start, end)
	if err != nil {
		return "", nil, err
	}

	base := AuditLogFileName(component, start, end)
	var text strings.Builder
	for _, line := range lines {
		text.WriteString(line)
		text.WriteByte('\n')
	}

	data, err := tarGz([]archiveFile{{Name: base + ".txt", Body: []byte(text.String())}}, s.now())
	if err != nil {
		return "", nil, fmt.Errorf("failed to pack audit logs: %w", err)
	}
	return base + ".tar.gz", data, nil
}

// Purge deletes entries created before cutoff
func (s *AuditService) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, cutoff)
}

type archiveFile struct {
	Name string
	Body []byte
}

func tarGz(files []archiveFile, modTime time.Time) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, f := range files {
		hdr := &tar.Header{
			Name:    f.Name,
			Mode:    0o644,
			Size:    int64(len(f.Body)),
			ModTime: modTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(f.Body); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
