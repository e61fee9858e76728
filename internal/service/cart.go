package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
)

// CartService keeps per-user carts. Stock checks here are advisory: stock is
// only reserved when an order is placed.
type CartService struct {
	Repo *repo.GormRepo
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (transport.CartResponse, error) {
	items, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return transport.CartResponse{}, apperr.Classify("get cart", err)
	}
	return cartResponse(items), nil
}

func cartResponse(items []models.CartItem) transport.CartResponse {
	total := decimal.Zero
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return transport.CartResponse{Items: items, Total: total, Count: len(items)}
}

// AddToCart sets the quantity of a product in the cart, creating the line
// if needed.
func (s *CartService) AddToCart(ctx context.Context, userID uuid.UUID, req transport.AddToCartRequest) (*models.CartItem, error) {
	if req.ProductID == 0 {
		return nil, fmt.Errorf("%w: product_id required", apperr.ErrValidation)
	}
	if req.Quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", apperr.ErrValidation)
	}

	p, err := s.Repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, apperr.Classify(fmt.Sprintf("product %d", req.ProductID), err)
	}
	if err := checkAvailable(p, req.Quantity); err != nil {
		return nil, err
	}

	item := &models.CartItem{UserID: userID, ProductID: p.ID, Quantity: req.Quantity}
	if err := s.Repo.UpsertCartItem(ctx, item); err != nil {
		return nil, apperr.Classify("add to cart", err)
	}
	return item, nil
}

func (s *CartService) UpdateItem(ctx context.Context, userID uuid.UUID, itemID uint, qty uint) (*models.CartItem, error) {
	if qty == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", apperr.ErrValidation)
	}

	item, err := s.Repo.GetCartItem(ctx, userID, itemID)
	if err != nil {
		return nil, apperr.Classify(fmt.Sprintf("cart item %d", itemID), err)
	}
	if item.Product == nil {
		return nil, fmt.Errorf("product %d: %w", item.ProductID, apperr.ErrNotFound)
	}
	if err := checkAvailable(item.Product, qty); err != nil {
		return nil, err
	}

	item.Quantity = qty
	if err := s.Repo.SaveCartItem(ctx, item); err != nil {
		return nil, apperr.Classify("update cart item", err)
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID uuid.UUID, itemID uint) error {
	ok, err := s.Repo.DeleteCartItem(ctx, userID, itemID)
	if err != nil {
		return apperr.Classify("remove cart item", err)
	}
	if !ok {
		return apperr.Classify(fmt.Sprintf("cart item %d", itemID), gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := s.Repo.ClearCart(ctx, userID)
	return apperr.Classify("clear cart", err)
}

func checkAvailable(p *models.Product, qty uint) error {
	if p.Stock < 0 || uint(p.Stock) < qty {
		return &apperr.InsufficientStockError{ProductID: p.ID, Requested: qty, Available: p.Stock}
	}
	return nil
}
