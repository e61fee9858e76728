package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CartHTTP struct {
	Svc *service.CartService
}

func unauthorized(c echo.Context, event string, err error) error {
	logging.FromContext(c.Request().Context()).Warn(event, "status", http.StatusUnauthorized, "error", err)
	return echo.NewHTTPError(http.StatusUnauthorized, transport.ErrorResponse{Code: CodeUnauthorized, Message: "unauthorized"})
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "get_cart_failed", err)
	}

	cart, err := h.Svc.GetCart(ctx, uid)
	if err != nil {
		return mapError(l, "get_cart_failed", err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "add_to_cart_failed", err)
	}

	var req transport.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_to_cart_failed", "invalid body", err)
	}

	item, err := h.Svc.AddToCart(ctx, uid, req)
	if err != nil {
		return mapError(l, "add_to_cart_failed", err)
	}

	l.Info("cart_item_added", "product_id", item.ProductID, "quantity", item.Quantity)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update_item")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "update_cart_item_failed", err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_cart_item_failed", err.Error(), err)
	}

	var req transport.UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_cart_item_failed", "invalid body", err)
	}

	item, err := h.Svc.UpdateItem(ctx, uid, id, req.Quantity)
	if err != nil {
		return mapError(l, "update_cart_item_failed", err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "remove_cart_item_failed", err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "remove_cart_item_failed", err.Error(), err)
	}

	if err := h.Svc.RemoveItem(ctx, uid, id); err != nil {
		return mapError(l, "remove_cart_item_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "clear_cart_failed", err)
	}

	if err := h.Svc.Clear(ctx, uid); err != nil {
		return mapError(l, "clear_cart_failed", err)
	}

	l.Info("cart_cleared")
	return c.NoContent(http.StatusNoContent)
}
