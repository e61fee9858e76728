package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

const (
	maxNameLen  = 255
	maxImageLen = 255
)

type CatalogService struct {
	Repo  *repo.GormRepo
	Cache *cache.CatalogCache
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	cats, err := s.Repo.ListCategories(ctx)
	return cats, apperr.Classify("list categories", err)
}

// GetProducts serves the public listing through the catalog cache. The bool
// result reports a cache hit.
func (s *CatalogService) GetProducts(ctx context.Context, q transport.ListProductsQuery) (transport.ProductListing, bool, error) {
	q = normalizeQuery(q)
	listing, hit, err := cache.GetOrLoad(ctx, s.Cache, q, func(ctx context.Context) (transport.ProductListing, error) {
		return s.listProducts(ctx, q)
	})
	if err != nil {
		return transport.ProductListing{}, false, apperr.Classify("list products", err)
	}
	return listing, hit, nil
}

// AdminListProducts bypasses the cache so stock figures are always current.
func (s *CatalogService) AdminListProducts(ctx context.Context, q transport.ListProductsQuery) (transport.ProductListing, error) {
	listing, err := s.listProducts(ctx, normalizeQuery(q))
	return listing, apperr.Classify("list products", err)
}

func (s *CatalogService) listProducts(ctx context.Context, q transport.ListProductsQuery) (transport.ProductListing, error) {
	offset, limit := util.Calculate(q.Page, q.PerPage)
	total, items, err := s.Repo.ListProducts(ctx, repo.ProductFilter{CategoryID: q.CategoryID, Search: q.Search}, offset, limit)
	if err != nil {
		return transport.ProductListing{}, err
	}
	return transport.ProductListing{Data: items, Meta: util.NewMeta(q.Page, q.PerPage, total)}, nil
}

func normalizeQuery(q transport.ListProductsQuery) transport.ListProductsQuery {
	q.Page, q.PerPage = util.Normalize(q.Page, q.PerPage)
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, id)
	if err != nil {
		return nil, apperr.Classify(fmt.Sprintf("get product %d", id), err)
	}
	return p, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	p := &models.Product{
		CategoryID:  req.CategoryID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        strings.TrimSpace(req.Slug),
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
	}
	if p.Slug == "" {
		p.Slug = util.Slugify(p.Name)
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		if err := checkProductRefs(ctx, tx, p, true); err != nil {
			return err
		}
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		return notify.NotifyProduct(ctx, tx, notify.EventProductCreated, p)
	})
	if err != nil {
		return nil, apperr.Classify("create product", err)
	}

	s.invalidate(ctx, "product_created")
	return s.GetProduct(ctx, p.ID)
}

func (s *CatalogService) PatchProduct(ctx context.Context, id uint, req transport.PatchProductRequest) (*models.Product, error) {
	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}

		categoryChanged := req.CategoryID != nil && *req.CategoryID != p.CategoryID
		slugChanged := req.Slug != nil && strings.TrimSpace(*req.Slug) != p.Slug
		fields := applyPatch(p, req)
		if err := validateProduct(p); err != nil {
			return err
		}
		if err := checkProductRefs(ctx, tx, p, categoryChanged || slugChanged); err != nil {
			return err
		}

		if err := tx.UpdateProductFields(ctx, id, fields); err != nil {
			return err
		}
		return notify.NotifyProduct(ctx, tx, notify.EventProductUpdated, p)
	})
	if err != nil {
		return nil, apperr.Classify(fmt.Sprintf("patch product %d", id), err)
	}

	s.invalidate(ctx, "product_updated")
	return s.GetProduct(ctx, id)
}

// DeleteProduct soft-deletes the product and drops it from every cart.
// Order items keep resolving it.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteCartItemsForProduct(ctx, id); err != nil {
			return err
		}
		return notify.NotifyProduct(ctx, tx, notify.EventProductDeleted, p)
	})
	if err != nil {
		return apperr.Classify(fmt.Sprintf("delete product %d", id), err)
	}

	s.invalidate(ctx, "product_deleted")
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, reason string) {
	invalidateCatalog(ctx, s.Cache, reason)
}

// invalidateCatalog bumps the listing generation. A failure only delays
// freshness until the TTL, so it is logged and not returned.
func invalidateCatalog(ctx context.Context, c *cache.CatalogCache, reason string) {
	gen, err := c.Invalidate(ctx)
	l := logging.FromContext(ctx).With("component", "catalog_cache")
	if err != nil {
		l.WarnContext(ctx, "cache_invalidate_failed", "reason", reason, "error", err)
		return
	}
	if c != nil {
		l.DebugContext(ctx, "cache_invalidated", "reason", reason, "generation", gen)
	}
}

// applyPatch copies the set fields of req onto p and returns them keyed by
// column for a partial update.
func applyPatch(p *models.Product, req transport.PatchProductRequest) map[string]any {
	fields := make(map[string]any)
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
		fields["category_id"] = p.CategoryID
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
		fields["name"] = p.Name
	}
	if req.Slug != nil {
		p.Slug = strings.TrimSpace(*req.Slug)
		fields["slug"] = p.Slug
	}
	if req.Description != nil {
		p.Description = *req.Description
		fields["description"] = p.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
		fields["price"] = p.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
		fields["stock"] = p.Stock
	}
	if req.Image != nil {
		p.Image = *req.Image
		fields["image"] = p.Image
	}
	return fields
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name required", apperr.ErrValidation)
	case len(p.Name) > maxNameLen:
		return fmt.Errorf("%w: name longer than %d", apperr.ErrValidation, maxNameLen)
	case p.Slug == "":
		return fmt.Errorf("%w: slug required", apperr.ErrValidation)
	case len(p.Slug) > maxNameLen:
		return fmt.Errorf("%w: slug longer than %d", apperr.ErrValidation, maxNameLen)
	case p.CategoryID == 0:
		return fmt.Errorf("%w: category_id required", apperr.ErrValidation)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must be >= 0", apperr.ErrValidation)
	case !p.Price.Equal(p.Price.Round(2)):
		return fmt.Errorf("%w: price has more than 2 decimal places", apperr.ErrValidation)
	case p.Price.GreaterThanOrEqual(decimal.New(1, 10)):
		return fmt.Errorf("%w: price too large", apperr.ErrValidation)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock must be >= 0", apperr.ErrValidation)
	case len(p.Image) > maxImageLen:
		return fmt.Errorf("%w: image longer than %d", apperr.ErrValidation, maxImageLen)
	}
	return nil
}

func checkProductRefs(ctx context.Context, tx *repo.GormRepo, p *models.Product, check bool) error {
	if !check {
		return nil
	}
	ok, err := tx.CategoryExists(ctx, p.CategoryID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: category %d does not exist", apperr.ErrValidation, p.CategoryID)
	}
	taken, err := tx.SlugTaken(ctx, p.Slug, p.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: slug %q already in use", apperr.ErrConflict, p.Slug)
	}
	return nil
}
