package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-platform/backend/services/order-service/models"
)

type StoreRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	Create(ctx context.Context, store *models.Store) error
	UpdateSettings(ctx context.Context, id uuid.UUID, settings StoreSettings) error
}

// StoreSettings is a signed settings change. SignedAt is the message
// timestamp in unix seconds.
type StoreSettings struct {
	Name        string
	Description string
	Currency    string
	SignedAt    int64
}

type GormStoreRepository struct {
	db *gorm.DB
}

func NewGormStoreRepository(db *gorm.DB) StoreRepository {
	return &GormStoreRepository{db: db}
}

func (r *GormStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&store).Error; err != nil {
		return nil, translate(err)
	}
	return &store, nil
}

func (r *GormStoreRepository) Create(ctx context.Context, store *models.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

// UpdateSettings overwrites the editable store fields when settings is newer
// than the last applied change. An empty currency keeps the current one.
func (r *GormStoreRepository) UpdateSettings(ctx context.Context, id uuid.UUID, settings StoreSettings) error {
	updates := map[string]any{
		"name":               settings.Name,
		"description":        settings.Description,
		"settings_signed_at": settings.SignedAt,
	}
	if settings.Currency != "" {
		updates["currency"] = settings.Currency
	}
	result := r.db.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ? AND settings_signed_at < ?", id, settings.SignedAt).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Store{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleSettings
}
