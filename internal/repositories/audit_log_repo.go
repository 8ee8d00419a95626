package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
)

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	logs storage.Collection[models.AuditLog]
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(logs storage.Collection[models.AuditLog]) *AuditLogRepository {
	return &AuditLogRepository{logs: logs}
}

// Create creates a new audit log entry
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if err := r.logs.Insert(ctx, *log); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetByRange returns the component's entries with start <= time <= end,
// newest first and at most limit of them (zero means no limit)
func (r *AuditLogRepository) GetByRange(ctx context.Context, component string, start, end time.Time, limit int) ([]*models.AuditLog, error) {
	filter := storage.AllOf(
		storage.Eq(FieldComponent, component),
		storage.Cmp(FieldCreatedTime, storage.OpGe, start.UTC()),
		storage.Cmp(FieldCreatedTime, storage.OpLe, end.UTC()),
	)

	logs, err := r.logs.Get(ctx, storage.NewQuery().
		FilterBy(filter).
		OrderBy(FieldCreatedTime, storage.Desc).
		Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	out := make([]*models.AuditLog, len(logs))
	for i := range logs {
		out[i] = &logs[i]
	}
	return out, nil
}

// DeleteOlderThan removes entries created before cutoff
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.logs.Delete(ctx, storage.Cmp(FieldCreatedTime, storage.OpLt, cutoff.UTC()))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit logs: %w", err)
	}
	return n, nil
}
