package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
)

// maxIDAttempts bounds the retries when concurrent creates pick the same id
const maxIDAttempts = 5

type AlertRepository struct {
	alerts storage.Collection[models.Alert]
}

func NewAlertRepository(alerts storage.Collection[models.Alert]) *AlertRepository {
	return &AlertRepository{alerts: alerts}
}

func (r *AlertRepository) nextID(ctx context.Context) (int64, error) {
	latest, err := r.alerts.Get(ctx, storage.NewQuery().OrderBy(FieldAlertID, storage.Desc).Limit(1))
	if err != nil {
		return 0, err
	}
	if len(latest) == 0 {
		return 1, nil
	}
	return latest[0].AlertID + 1, nil
}

// Create assigns the next sequential id and stores the alert
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := r.nextID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate alert id: %w", err)
		}
		alert.AlertID = id

		err = r.alerts.Insert(ctx, *alert)
		if err == nil {
			return alert, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create alert: %w", err)
		}
	}
	return nil, fmt.Errorf("failed to create alert: id allocation kept colliding")
}

// GetByID returns the alert or nil when absent
func (r *AlertRepository) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	alerts, err := r.alerts.Get(ctx, storage.NewQuery().FilterBy(storage.Eq(FieldAlertID, id)).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	if len(alerts) == 0 {
		return nil, nil
	}
	return &alerts[0], nil
}

// List returns alerts created at or after since, newest first. Unless
// showAll is set, alerts both acknowledged and resolved are skipped.
func (r *AlertRepository) List(ctx context.Context, since time.Time, limit int, showAll bool) ([]*models.Alert, error) {
	filter := storage.AllOf(storage.Cmp(FieldCreatedTime, storage.OpGe, since.UTC()))
	if !showAll {
		filter = storage.AllOf(filter, storage.AnyOf(
			storage.Eq(FieldAcknowledged, false),
			storage.Eq(FieldResolved, false),
		))
	}

	alerts, err := r.alerts.Get(ctx, storage.NewQuery().
		FilterBy(filter).
		OrderBy(FieldCreatedTime, storage.Desc).
		Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	out := make([]*models.Alert, len(alerts))
	for i := range alerts {
		out[i] = &alerts[i]
	}
	return out, nil
}

// Save stores changes to an existing alert
func (r *AlertRepository) Save(ctx context.Context, alert *models.Alert) error {
	if err := r.alerts.Store(ctx, *alert); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.alerts.Count(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}
