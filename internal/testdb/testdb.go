// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/util"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
)

// PostgresEnv names the DSN of a disposable PostgreSQL database. Tests that
// need real row-level contention skip when it is unset.
const PostgresEnv = "STOREFRONT_TEST_DATABASE_URL"

// Open returns a fresh database. The pool is pinned to one connection so the
// in-memory database survives for the whole test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// OpenPostgres connects to the database named by PostgresEnv, migrates it
// and empties every table before and after the test.
func OpenPostgres(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresEnv)
	}

	ctx := context.Background()
	db, err := pkgdb.Open(ctx, dsn)
	require.NoError(t, err)
	db.Logger = logger.Default.LogMode(logger.Silent)
	require.NoError(t, db.WithContext(ctx).AutoMigrate(models.All()...))

	wipe(t, db)
	t.Cleanup(func() {
		wipe(t, db)
		_ = pkgdb.Close(db)
	})
	return db
}

func wipe(t testing.TB, db *gorm.DB) {
	t.Helper()
	all := models.All()
	for i := len(all) - 1; i >= 0; i-- {
		require.NoError(t, db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error)
	}
}

func Category(t testing.TB, db *gorm.DB, name string) models.Category {
	t.Helper()
	c := models.Category{Name: name, Slug: util.Slugify(name)}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func Product(t testing.TB, db *gorm.DB, categoryID uint, name, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		CategoryID:  categoryID,
		Name:        name,
		Slug:        util.Slugify(name),
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func Stock(t testing.TB, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.Unscoped().Select("id", "stock").First(&p, productID).Error)
	return p.Stock
}
