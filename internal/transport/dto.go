package transport

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/util"
)

// ListProductsQuery is also the input of the catalog cache fingerprint, so
// it must stay a plain value with a stable JSON encoding.
type ListProductsQuery struct {
	CategoryID *uint  `json:"category_id,omitempty"`
	Search     string `json:"search,omitempty"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
}

type ProductListing struct {
	Data []models.Product `json:"data"`
	Meta util.Meta        `json:"meta"`
}

type CreateProductRequest struct {
	CategoryID  uint            `json:"category_id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image"`
}

type PatchProductRequest struct {
	CategoryID  *uint            `json:"category_id"`
	Name        *string          `json:"name"`
	Slug        *string          `json:"slug"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Image       *string          `json:"image"`
}

type AddToCartRequest struct {
	ProductID uint `json:"product_id"`
	Quantity  uint `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity uint `json:"quantity"`
}

type CartResponse struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
	Count int               `json:"count"`
}

type PlaceOrderRequest struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type UpdateStatusRequest struct {
	Status models.OrderStatus `json:"status"`
}

type OrderListing struct {
	Data []models.Order `json:"data"`
	Meta util.Meta      `json:"meta"`
}

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	ProductID uint   `json:"product_id,omitempty"`
	Requested uint   `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}
