package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CatalogHTTP struct {
	Svc *service.CatalogService
}

func (h *CatalogHTTP) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.list_categories")

	cats, err := h.Svc.ListCategories(ctx)
	if err != nil {
		return mapError(l, "list_categories_failed", err)
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *CatalogHTTP) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_products")

	q, err := listQuery(c)
	if err != nil {
		return badRequest(l, "get_products_failed", "category_id must be a positive integer", err)
	}

	listing, hit, err := h.Svc.GetProducts(ctx, q)
	if err != nil {
		return mapError(l, "get_products_failed", err)
	}

	l.Debug("get_products_success", "cache_hit", hit, "total", listing.Meta.Total)
	return c.JSON(http.StatusOK, listing)
}

func (h *CatalogHTTP) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.get_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "get_product_failed", err.Error(), err)
	}

	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		return mapError(l, "get_product_failed", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) AdminListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_products")

	q, err := listQuery(c)
	if err != nil {
		return badRequest(l, "admin_list_products_failed", "category_id must be a positive integer", err)
	}

	listing, err := h.Svc.AdminListProducts(ctx, q)
	if err != nil {
		return mapError(l, "admin_list_products_failed", err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *CatalogHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_product")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_create_failed", "invalid body", err)
	}

	product, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		return mapError(l, "product_create_failed", err)
	}

	l.Info("product_created", "product_id", product.ID)
	return c.JSON(http.StatusCreated, product)
}

func (h *CatalogHTTP) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.patch_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "product_patch_failed", err.Error(), err)
	}

	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "product_patch_failed", "invalid body", err)
	}

	product, err := h.Svc.PatchProduct(ctx, id, req)
	if err != nil {
		return mapError(l, "product_patch_failed", err)
	}

	l.Info("product_updated", "product_id", id)
	return c.JSON(http.StatusOK, product)
}

func (h *CatalogHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_product")

	id, err := pathID(c, "id")
	if err != nil {
		return badRequest(l, "product_delete_failed", err.Error(), err)
	}

	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		return mapError(l, "product_delete_failed", err)
	}

	l.Info("product_deleted", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}

func listQuery(c echo.Context) (transport.ListProductsQuery, error) {
	q := transport.ListProductsQuery{
		Search:  c.QueryParam("search"),
		Page:    util.ParseIntDefault(c.QueryParam("page"), 1),
		PerPage: util.ParseIntDefault(c.QueryParam("per_page"), util.DefaultPageSize),
	}
	if raw := c.QueryParam("category_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || v == 0 {
			return q, errInvalidCategory
		}
		id := uint(v)
		q.CategoryID = &id
	}
	return q, nil
}
