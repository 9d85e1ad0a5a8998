package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-platform/backend/services/order-service/models"
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	FindByStore(ctx context.Context, storeID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	FindByIDAndStore(ctx context.Context, orderID, storeID uuid.UUID) (*models.Order, error)
	// TransitionStatus moves an order from one status to another and stamps
	// the matching timestamp column.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to string, at time.Time) error
	// CreateFromCheckout inserts order unless one already exists for its
	// checkout id, reporting whether a row was created.
	CreateFromCheckout(ctx context.Context, order *models.Order) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByStore retrieves a store's orders, newest first.
func (r *GormOrderRepository) FindByStore(ctx context.Context, storeID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("store_id = ?", storeID).
		Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("OrderItems").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) FindByIDAndStore(ctx context.Context, orderID, storeID uuid.UUID) (*models.Order, error) {
	var order models.Order

	if err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("id = ? AND store_id = ?", orderID, storeID).
		First(&order).Error; err != nil {
		return nil, translate(err)
	}

	return &order, nil
}

func (r *GormOrderRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to string, at time.Time) error {
	updates := map[string]any{"status": to}
	switch to {
	case models.StatusCanceled:
		updates["canceled_at"] = at
	case models.StatusFulfilled:
		updates["fulfilled_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *GormOrderRepository) CreateFromCheckout(ctx context.Context, order *models.Order) (bool, error) {
	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Order
		err := tx.Where("checkout_id = ?", order.CheckoutID).First(&existing).Error
		if err == nil {
			*order = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
