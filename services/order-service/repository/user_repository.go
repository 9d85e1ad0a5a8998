package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront-platform/backend/services/order-service/models"
)

type UserRepository interface {
	// FindByAddress loads the user with its signing keys.
	FindByAddress(ctx context.Context, address string) (*models.User, error)
	UpdateDetails(ctx context.Context, address, name, email string) error
	// AddKey creates the user if needed and registers key. It reports false
	// when the key was already registered.
	AddKey(ctx context.Context, key *models.SigningKey) (bool, error)
}

type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Preload("SigningKeys").
		Where("address = ?", address).
		First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) UpdateDetails(ctx context.Context, address, name, email string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("address = ?", address).
		Updates(map[string]any{"name": name, "email": email})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormUserRepository) AddKey(ctx context.Context, key *models.SigningKey) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{Address: key.Address}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error; err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}, {Name: "thumbprint"}},
			DoNothing: true,
		}).Create(key)
		if result.Error != nil {
			return result.Error
		}
		created = result.RowsAffected > 0
		return nil
	})
	return created, err
}
