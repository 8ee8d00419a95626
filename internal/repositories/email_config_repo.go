package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
)

// EmailConfigRepository persists the single email configuration record
type EmailConfigRepository struct {
	configs storage.Collection[models.EmailConfig]
}

func NewEmailConfigRepository(configs storage.Collection[models.EmailConfig]) *EmailConfigRepository {
	return &EmailConfigRepository{configs: configs}
}

func byConfigID() storage.Filter {
	return storage.Eq(FieldConfigID, models.EmailConfigID)
}

// Get returns the configuration or nil when none was saved
func (r *EmailConfigRepository) Get(ctx context.Context) (*models.EmailConfig, error) {
	configs, err := r.configs.Get(ctx, storage.NewQuery().FilterBy(byConfigID()).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get email config: %w", err)
	}
	if len(configs) == 0 {
		return nil, nil
	}
	return &configs[0], nil
}

func (r *EmailConfigRepository) Save(ctx context.Context, cfg *models.EmailConfig) error {
	cfg.ConfigID = models.EmailConfigID
	if err := r.configs.Store(ctx, *cfg); err != nil {
		return fmt.Errorf("failed to save email config: %w", err)
	}
	return nil
}

func (r *EmailConfigRepository) Delete(ctx context.Context) error {
	if _, err := r.configs.Delete(ctx, byConfigID()); err != nil {
		return fmt.Errorf("failed to delete email config: %w", err)
	}
	return nil
}
