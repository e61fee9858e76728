// Package seed loads the demo catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

type product struct {
	category    string
	name        string
	slug        string
	description string
	price       string
	stock       int
}

var categories = []models.Category{
	{Name: "Electronics", Slug: "electronics", Description: "Electronic devices and gadgets"},
	{Name: "Clothing", Slug: "clothing", Description: "Apparel and fashion items"},
	{Name: "Books", Slug: "books", Description: "Books and reading materials"},
	{Name: "Home & Garden", Slug: "home-garden", Description: "Home improvement and garden supplies"},
	{Name: "Sports", Slug: "sports", Description: "Sports equipment and accessories"},
}

var products = []product{
	{"electronics", "Smartphone X", "smartphone-x", "Latest smartphone with advanced features", "599.99", 50},
	{"electronics", "Laptop Pro", "laptop-pro", "High-performance laptop for professionals", "1299.99", 30},
	{"electronics", "Wireless Headphones", "wireless-headphones", "Premium noise-cancelling headphones", "199.99", 75},
	{"electronics", "Smart Watch", "smart-watch", "Feature-rich smartwatch", "299.99", 40},
	{"electronics", "Tablet Air", "tablet-air", "Lightweight tablet for everyday use", "449.99", 25},
	{"clothing", "T-Shirt Classic", "tshirt-classic", "Comfortable cotton t-shirt", "19.99", 100},
	{"clothing", "Jeans Slim Fit", "jeans-slim-fit", "Modern slim-fit jeans", "49.99", 80},
	{"clothing", "Winter Jacket", "winter-jacket", "Warm winter jacket", "89.99", 60},
	{"clothing", "Running Shoes", "running-shoes", "Comfortable running shoes", "79.99", 90},
	{"books", "Programming Guide", "programming-guide", "Complete guide to programming", "29.99", 120},
	{"books", "Design Patterns Book", "design-patterns-book", "Essential design patterns reference", "39.99", 70},
	{"home-garden", "Garden Tools Set", "garden-tools-set", "Complete garden tools collection", "59.99", 45},
	{"home-garden", "Indoor Plant Pot", "indoor-plant-pot", "Decorative plant pot", "14.99", 150},
	{"sports", "Basketball", "basketball", "Official size basketball", "24.99", 65},
	{"sports", "Yoga Mat", "yoga-mat", "Premium yoga mat", "34.99", 55},
}

type Result struct {
	Categories int64
	Products   int64
}

// Run inserts the demo catalog. Rows whose slug already exists are left
// untouched, so running it again is harmless.
func Run(ctx context.Context, db *gorm.DB) (Result, error) {
	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]uint, len(categories))
		for _, c := range categories {
			r := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).Create(&c)
			if r.Error != nil {
				return fmt.Errorf("seed category %s: %w", c.Slug, r.Error)
			}
			res.Categories += r.RowsAffected

			var stored models.Category
			if err := tx.Where("slug = ?", c.Slug).First(&stored).Error; err != nil {
				return fmt.Errorf("load category %s: %w", c.Slug, err)
			}
			ids[c.Slug] = stored.ID
		}

		for _, p := range products {
			row := models.Product{
				CategoryID:  ids[p.category],
				Name:        p.name,
				Slug:        p.slug,
				Description: p.description,
				Price:       decimal.RequireFromString(p.price),
				Stock:       p.stock,
			}
			r := tx.Omit("Category").
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
				Create(&row)
			if r.Error != nil {
				return fmt.Errorf("seed product %s: %w", p.slug, r.Error)
			}
			res.Products += r.RowsAffected
		}
		return nil
	})
	return res, err
}
