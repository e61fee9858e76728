package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.place")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "place_order_failed", err)
	}

	var req transport.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "place_order_failed", "invalid body", err)
	}

	order, err := h.Svc.PlaceOrder(ctx, uid, req)
	if err != nil {
		return mapError(l, "place_order_failed", err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "list_orders_failed", err)
	}

	page, size := pageParams(c)
	listing, err := h.Svc.ListOrders(ctx, uid, page, size)
	if err != nil {
		return mapError(l, "list_orders_failed", err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	uid, err := userID(c)
	if err != nil {
		return unauthorized(c, "get_order_failed", err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_order_failed", err.Error(), err)
	}

	order, err := h.Svc.GetOrder(ctx, uid, id)
	if err != nil {
		return mapError(l, "get_order_failed", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) AdminListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	page, size := pageParams(c)
	listing, err := h.Svc.ListAllOrders(ctx, models.OrderStatus(c.QueryParam("status")), page, size)
	if err != nil {
		return mapError(l, "admin_list_orders_failed", err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *OrderHTTP) AdminGetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.get_order")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "admin_get_order_failed", err.Error(), err)
	}

	order, err := h.Svc.GetOrderAdmin(ctx, id)
	if err != nil {
		return mapError(l, "admin_get_order_failed", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_order_status")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "update_order_status_failed", err.Error(), err)
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_order_status_failed", "invalid body", err)
	}

	order, err := h.Svc.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return mapError(l, "update_order_status_failed", err)
	}
	return c.JSON(http.StatusOK, order)
}

func pageParams(c echo.Context) (int, int) {
	return util.Normalize(
		util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize),
	)
}
