package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

type OrderFilter struct {
	UserID *uuid.UUID
	Status models.OrderStatus
}

// CreateOrder inserts the order and its items in one statement batch.
func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

func (r *GormRepo) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withItems(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetUserOrder(ctx context.Context, userID uuid.UUID, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withItems(ctx).Where("user_id = ?", userID).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter, offset, limit int) (int64, []models.Order, error) {
	var total int64
	if err := r.filteredOrders(ctx, f).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	orders := make([]models.Order, 0, limit)
	if err := r.filteredOrders(ctx, f).
		Preload("Items", orderItemsByID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error; err != nil {
		return 0, nil, err
	}
	return total, orders, nil
}

// CompareAndSetStatus moves the order from one status to another and reports
// false when the order was no longer in the expected status.
func (r *GormRepo) CompareAndSetStatus(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

func (r *GormRepo) filteredOrders(ctx context.Context, f OrderFilter) *gorm.DB {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (r *GormRepo) withItems(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Preload("Items", orderItemsByID).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func orderItemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
