package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
)

// DecrementStock lowers stock by qty only if at least qty units are
// available when the UPDATE applies. The row lock taken by the UPDATE
// serializes concurrent decrements of the same product.
func (r *GormRepo) DecrementStock(ctx context.Context, productID uint, qty uint) error {
	if qty == 0 {
		return fmt.Errorf("%w: quantity must be positive", apperr.ErrValidation)
	}

	res := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var p models.Product
	if err := r.DB.WithContext(ctx).Select("id", "stock").First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product %d: %w", productID, apperr.ErrNotFound)
		}
		return err
	}
	return &apperr.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
}

// RestoreStock returns units to a product. A product deleted since the
// order was placed is skipped.
func (r *GormRepo) RestoreStock(ctx context.Context, productID uint, qty uint) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))
	return res.RowsAffected == 1, res.Error
}
