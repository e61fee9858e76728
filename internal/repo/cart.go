package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

// GetCart returns the user's lines ordered by product id, each with its
// current product. Lines whose product was deleted come back with a nil Product.
func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("product_id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *GormRepo) GetCartItem(ctx context.Context, userID uuid.UUID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB.WithContext(ctx).
		Preload("Product").
		Where("id = ? AND user_id = ?", itemID, userID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertCartItem sets the quantity of (user, product), inserting the line if needed.
func (r *GormRepo) UpsertCartItem(ctx context.Context, item *models.CartItem) error {
	if err := r.DB.WithContext(ctx).
		Omit("Product").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(item).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).
		Preload("Product").
		Where("user_id = ? AND product_id = ?", item.UserID, item.ProductID).
		First(item).Error
}

func (r *GormRepo) SaveCartItem(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Omit("Product").Save(item).Error
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, userID uuid.UUID, itemID uint) (bool, error) {
	res := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.DB.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteCartItemsForProduct drops every cart line that references productID.
func (r *GormRepo) DeleteCartItemsForProduct(ctx context.Context, productID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
