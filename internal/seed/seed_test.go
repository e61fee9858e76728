package seed

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/testdb"
)

func TestRun_IsIdempotent(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	res, err := Run(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, Result{Categories: 5, Products: 15}, res)

	res, err = Run(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	var laptop models.Product
	require.NoError(t, db.Preload("Category").Where("slug = ?", "laptop-pro").First(&laptop).Error)
	assert.Equal(t, "Electronics", laptop.Category.Name)
	assert.True(t, decimal.RequireFromString("1299.99").Equal(laptop.Price))
	assert.Equal(t, 30, laptop.Stock)

	var count int64
	require.NoError(t, db.Model(&models.Product{}).Where("category_id = ?", laptop.CategoryID).Count(&count).Error)
	assert.Equal(t, int64(5), count)
}
