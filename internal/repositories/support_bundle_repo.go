package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
)

type SupportBundleRepository struct {
	bundles storage.Collection[models.SupportBundle]
}

func NewSupportBundleRepository(bundles storage.Collection[models.SupportBundle]) *SupportBundleRepository {
	return &SupportBundleRepository{bundles: bundles}
}

func (r *SupportBundleRepository) Create(ctx context.Context, bundle *models.SupportBundle) error {
	if err := r.bundles.Insert(ctx, *bundle); err != nil {
		return fmt.Errorf("failed to create support bundle: %w", err)
	}
	return nil
}

func (r *SupportBundleRepository) Save(ctx context.Context, bundle *models.SupportBundle) error {
	if err := r.bundles.Store(ctx, *bundle); err != nil {
		return fmt.Errorf("failed to save support bundle: %w", err)
	}
	return nil
}

// GetByID returns the bundle or nil when absent
func (r *SupportBundleRepository) GetByID(ctx context.Context, id string) (*models.SupportBundle, error) {
	bundles, err := r.bundles.Get(ctx, storage.NewQuery().FilterBy(storage.Eq(FieldBundleID, id)).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get support bundle: %w", err)
	}
	if len(bundles) == 0 {
		return nil, nil
	}
	return &bundles[0], nil
}

// List returns bundles newest first
func (r *SupportBundleRepository) List(ctx context.Context) ([]*models.SupportBundle, error) {
	return r.list(ctx, nil)
}

// ListOlderThan returns bundles created before cutoff
func (r *SupportBundleRepository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*models.SupportBundle, error) {
	return r.list(ctx, storage.Cmp(FieldCreatedTime, storage.OpLt, cutoff.UTC()))
}

func (r *SupportBundleRepository) list(ctx context.Context, f storage.Filter) ([]*models.SupportBundle, error) {
	bundles, err := r.bundles.Get(ctx, storage.NewQuery().FilterBy(f).OrderBy(FieldCreatedTime, storage.Desc))
	if err != nil {
		return nil, fmt.Errorf("failed to list support bundles: %w", err)
	}
	out := make([]*models.SupportBundle, len(bundles))
	for i := range bundles {
		out[i] = &bundles[i]
	}
	return out, nil
}

func (r *SupportBundleRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.bundles.Delete(ctx, storage.Eq(FieldBundleID, id))
	if err != nil {
		return false, fmt.Errorf("failed to delete support bundle: %w", err)
	}
	return n > 0, nil
}
