package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/testdb"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

type testEnv struct {
	DB      *gorm.DB
	Repo    *repo.GormRepo
	Redis   *miniredis.Miniredis
	Metrics *metrics.Metrics
	Catalog *CatalogService
	Cart    *CartService
	Orders  *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDB(t, testdb.Open(t))
}

func newTestEnvWithDB(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()
	r := repo.New(db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	m := metrics.New(prometheus.NewRegistry())
	c := cache.NewCatalogCache(rdb, time.Hour, m)

	return &testEnv{
		DB:      db,
		Repo:    r,
		Redis:   mr,
		Metrics: m,
		Catalog: &CatalogService{Repo: r, Cache: c},
		Cart:    &CartService{Repo: r},
		Orders:  &OrderService{Repo: r, Cache: c, Metrics: m, TxTimeout: 10 * time.Second},
	}
}

func (e *testEnv) addToCart(t *testing.T, userID uuid.UUID, productID uint, qty uint) {
	t.Helper()
	_, err := e.Cart.AddToCart(context.Background(), userID, transport.AddToCartRequest{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func (e *testEnv) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(model).Count(&n).Error)
	return n
}

var checkout = transport.PlaceOrderRequest{Address: "12 Baker Street, London", Phone: "+44 20 7946 0000"}
