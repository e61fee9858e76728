package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/testdb"
	"github.com/Skotchmaster/storefront/internal/transport"
)

func TestPlaceOrder_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Electronics")
	a := testdb.Product(t, env.DB, cat.ID, "Cable", "10.00", 5)
	b := testdb.Product(t, env.DB, cat.ID, "Charger", "25.00", 1)
	user := uuid.New()

	env.addToCart(t, user, a.ID, 2)
	env.addToCart(t, user, b.ID, 1)

	order, err := env.Orders.PlaceOrder(ctx, user, checkout)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.RequireFromString("45.00").Equal(order.Total), order.Total.String())
	require.Len(t, order.Items, 2)
	assert.Equal(t, a.ID, order.Items[0].ProductID)
	assert.Equal(t, uint(2), order.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(order.Items[0].Price))
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, "Cable", order.Items[0].Product.Name)
	assert.Equal(t, b.ID, order.Items[1].ProductID)

	assert.Equal(t, 3, testdb.Stock(t, env.DB, a.ID))
	assert.Equal(t, 0, testdb.Stock(t, env.DB, b.ID))

	cart, err := env.Cart.GetCart(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	var rows []models.OutboxMessage
	require.NoError(t, env.DB.Where("topic = ?", notify.TopicOrders).Find(&rows).Error)
	require.Len(t, rows, 1)
	var evt notify.Event
	require.NoError(t, json.Unmarshal([]byte(rows[0].Payload), &evt))
	assert.Equal(t, notify.EventOrderCreated, evt.Type)
	var payload notify.OrderPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, order.ID, payload.OrderID)
	assert.Equal(t, user, payload.UserID)
	assert.True(t, order.Total.Equal(payload.Total))

	assert.Equal(t, 1.0, testutil.ToFloat64(env.Metrics.OrdersPlaced.WithLabelValues("placed")))
}

func TestPlaceOrder_InsufficientStockChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Electronics")
	a := testdb.Product(t, env.DB, cat.ID, "Cable", "10.00", 5)
	b := testdb.Product(t, env.DB, cat.ID, "Charger", "25.00", 1)

	first, second := uuid.New(), uuid.New()
	env.addToCart(t, first, b.ID, 1)
	env.addToCart(t, second, a.ID, 2)
	env.addToCart(t, second, b.ID, 1)

	_, err := env.Orders.PlaceOrder(ctx, first, checkout)
	require.NoError(t, err)

	_, err = env.Orders.PlaceOrder(ctx, second, checkout)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	var ise *apperr.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, b.ID, ise.ProductID)
	assert.Equal(t, uint(1), ise.Requested)
	assert.Equal(t, 0, ise.Available)

	// the decrement of A rolled back with the failed line
	assert.Equal(t, 5, testdb.Stock(t, env.DB, a.ID))
	assert.Equal(t, 0, testdb.Stock(t, env.DB, b.ID))

	cart, err := env.Cart.GetCart(ctx, second)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, int64(1), env.countRows(t, &models.Order{}))
	assert.Equal(t, int64(1), env.countRows(t, &models.OutboxMessage{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.Metrics.OrdersPlaced.WithLabelValues("insufficient_stock")))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Orders.PlaceOrder(context.Background(), uuid.New(), checkout)
	require.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Zero(t, env.countRows(t, &models.Order{}))
	assert.Zero(t, env.countRows(t, &models.OutboxMessage{}))
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}

	cases := []struct {
		name string
		req  transport.PlaceOrderRequest
	}{
		{"missing address", transport.PlaceOrderRequest{Phone: "555"}},
		{"blank address", transport.PlaceOrderRequest{Address: "   ", Phone: "555"}},
		{"missing phone", transport.PlaceOrderRequest{Address: "1 Main St"}},
		{"long address", transport.PlaceOrderRequest{Address: string(long), Phone: "555"}},
		{"long phone", transport.PlaceOrderRequest{Address: "1 Main St", Phone: "012345678901234567890"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Orders.PlaceOrder(context.Background(), uuid.New(), tc.req)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestPlaceOrder_DeletedProductInCart(t *testing.T) {
	env := newTestEnv(t)
	cat := testdb.Category(t, env.DB, "Books")
	p := testdb.Product(t, env.DB, cat.ID, "Atlas", "30.00", 3)
	user := uuid.New()
	env.addToCart(t, user, p.ID, 1)

	require.NoError(t, env.DB.Delete(&models.Product{}, p.ID).Error)

	_, err := env.Orders.PlaceOrder(context.Background(), user, checkout)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, env.countRows(t, &models.Order{}))
}

func TestPlaceOrder_PriceSnapshotSurvivesPriceChange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Books")
	p := testdb.Product(t, env.DB, cat.ID, "Atlas", "30.00", 3)
	user := uuid.New()
	env.addToCart(t, user, p.ID, 2)

	order, err := env.Orders.PlaceOrder(ctx, user, checkout)
	require.NoError(t, err)

	price := decimal.RequireFromString("99.99")
	_, err = env.Catalog.PatchProduct(ctx, p.ID, transport.PatchProductRequest{Price: &price})
	require.NoError(t, err)

	got, err := env.Orders.GetOrder(ctx, user, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("60.00").Equal(got.Total))
	assert.True(t, decimal.RequireFromString("30.00").Equal(got.Items[0].Price))
	assert.True(t, price.Equal(got.Items[0].Product.Price))
}

// On SQLite the placements serialize on the single connection; the Postgres
// variant exercises concurrent transactions contending for the stock row.
func TestPlaceOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	assertBuyersNeverOversell(t, newTestEnv(t))
}

func TestPlaceOrder_ConcurrentBuyersNeverOversellPostgres(t *testing.T) {
	assertBuyersNeverOversell(t, newTestEnvWithDB(t, testdb.OpenPostgres(t)))
}

func assertBuyersNeverOversell(t *testing.T, env *testEnv) {
	t.Helper()
	cat := testdb.Category(t, env.DB, "Electronics")
	p := testdb.Product(t, env.DB, cat.ID, "Console", "499.00", 5)

	const buyers = 12
	users := make([]uuid.UUID, buyers)
	for i := range users {
		users[i] = uuid.New()
		env.addToCart(t, users[i], p.ID, 1)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		shortage int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u uuid.UUID) {
			defer wg.Done()
			_, err := env.Orders.PlaceOrder(context.Background(), u, checkout)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case errors.Is(err, apperr.ErrInsufficientStock):
				shortage++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 5, placed)
	assert.Equal(t, buyers-5, shortage)
	assert.Equal(t, 0, testdb.Stock(t, env.DB, p.ID))
	assert.Equal(t, int64(5), env.countRows(t, &models.Order{}))
}

func TestPlaceOrder_InvalidatesCatalogListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Sports")
	p := testdb.Product(t, env.DB, cat.ID, "Football", "20.00", 4)
	user := uuid.New()

	q := transport.ListProductsQuery{}
	listing, hit, err := env.Catalog.GetProducts(ctx, q)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, listing.Data, 1)
	assert.Equal(t, 4, listing.Data[0].Stock)

	_, hit, err = env.Catalog.GetProducts(ctx, q)
	require.NoError(t, err)
	assert.True(t, hit)

	env.addToCart(t, user, p.ID, 3)
	_, err = env.Orders.PlaceOrder(ctx, user, checkout)
	require.NoError(t, err)

	listing, hit, err = env.Catalog.GetProducts(ctx, q)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, listing.Data[0].Stock)
}

func TestOrders_ReadsAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Books")
	p := testdb.Product(t, env.DB, cat.ID, "Atlas", "30.00", 10)
	alice, bob := uuid.New(), uuid.New()

	var ids []uint
	for i := 0; i < 3; i++ {
		env.addToCart(t, alice, p.ID, 1)
		o, err := env.Orders.PlaceOrder(ctx, alice, checkout)
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	listing, err := env.Orders.ListOrders(ctx, alice, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), listing.Meta.Total)
	require.Len(t, listing.Data, 2)
	assert.Equal(t, ids[2], listing.Data[0].ID)
	assert.True(t, listing.Meta.HasNext)

	listing, err = env.Orders.ListOrders(ctx, bob, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, listing.Data)

	_, err = env.Orders.GetOrder(ctx, bob, ids[0])
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	o, err := env.Orders.GetOrderAdmin(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, alice, o.UserID)
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		path []models.OrderStatus
		next models.OrderStatus
		ok   bool
	}{
		{nil, models.OrderStatusProcessing, true},
		{nil, models.OrderStatusCancelled, true},
		{nil, models.OrderStatusShipped, false},
		{nil, models.OrderStatusDelivered, false},
		{nil, models.OrderStatusPending, false},
		{[]models.OrderStatus{models.OrderStatusProcessing}, models.OrderStatusShipped, true},
		{[]models.OrderStatus{models.OrderStatusProcessing}, models.OrderStatusCancelled, true},
		{[]models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped}, models.OrderStatusDelivered, true},
		{[]models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped}, models.OrderStatusCancelled, false},
		{[]models.OrderStatus{models.OrderStatusProcessing, models.OrderStatusShipped, models.OrderStatusDelivered}, models.OrderStatusPending, false},
		{[]models.OrderStatus{models.OrderStatusCancelled}, models.OrderStatusProcessing, false},
	}

	for _, tc := range cases {
		name := string(models.OrderStatusPending)
		for _, s := range tc.path {
			name += ">" + string(s)
		}
		name += ">" + string(tc.next)

		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			cat := testdb.Category(t, env.DB, "Books")
			p := testdb.Product(t, env.DB, cat.ID, "Atlas", "30.00", 10)
			user := uuid.New()
			env.addToCart(t, user, p.ID, 1)
			o, err := env.Orders.PlaceOrder(ctx, user, checkout)
			require.NoError(t, err)

			for _, s := range tc.path {
				_, err := env.Orders.UpdateStatus(ctx, o.ID, s)
				require.NoError(t, err)
			}

			got, err := env.Orders.UpdateStatus(ctx, o.ID, tc.next)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.next, got.Status)
				return
			}
			require.ErrorIs(t, err, apperr.ErrInvalidTransition)
			o, err = env.Orders.GetOrderAdmin(ctx, o.ID)
			require.NoError(t, err)
			if len(tc.path) > 0 {
				assert.Equal(t, tc.path[len(tc.path)-1], o.Status)
			} else {
				assert.Equal(t, models.OrderStatusPending, o.Status)
			}
		})
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Orders.UpdateStatus(context.Background(), 1, models.OrderStatus("refunded"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.Orders.UpdateStatus(context.Background(), 404, models.OrderStatusProcessing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStatus_CancelRestoresStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Home & Garden")
	lamp := testdb.Product(t, env.DB, cat.ID, "Lamp", "15.50", 4)
	rug := testdb.Product(t, env.DB, cat.ID, "Rug", "80.00", 2)
	user := uuid.New()
	env.addToCart(t, user, lamp.ID, 3)
	env.addToCart(t, user, rug.ID, 2)

	o, err := env.Orders.PlaceOrder(ctx, user, checkout)
	require.NoError(t, err)
	assert.Equal(t, 1, testdb.Stock(t, env.DB, lamp.ID))
	assert.Equal(t, 0, testdb.Stock(t, env.DB, rug.ID))

	_, err = env.Orders.UpdateStatus(ctx, o.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	got, err := env.Orders.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.True(t, o.Total.Equal(got.Total))

	assert.Equal(t, 4, testdb.Stock(t, env.DB, lamp.ID))
	assert.Equal(t, 2, testdb.Stock(t, env.DB, rug.ID))

	var rows []models.OutboxMessage
	require.NoError(t, env.DB.Where("topic = ?", notify.TopicOrders).Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 3)
	var evt notify.Event
	require.NoError(t, json.Unmarshal([]byte(rows[2].Payload), &evt))
	assert.Equal(t, notify.EventOrderStatusChanged, evt.Type)
	var payload notify.OrderPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, models.OrderStatusCancelled, payload.Status)
	assert.Equal(t, models.OrderStatusProcessing, payload.PreviousStatus)
}

func TestListAllOrders_FiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cat := testdb.Category(t, env.DB, "Books")
	p := testdb.Product(t, env.DB, cat.ID, "Atlas", "30.00", 10)

	for i := 0; i < 3; i++ {
		u := uuid.New()
		env.addToCart(t, u, p.ID, 1)
		o, err := env.Orders.PlaceOrder(ctx, u, checkout)
		require.NoError(t, err)
		if i == 0 {
			_, err := env.Orders.UpdateStatus(ctx, o.ID, models.OrderStatusProcessing)
			require.NoError(t, err)
		}
	}

	all, err := env.Orders.ListAllOrders(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Meta.Total)

	processing, err := env.Orders.ListAllOrders(ctx, models.OrderStatusProcessing, 1, 10)
	require.NoError(t, err)
	require.Len(t, processing.Data, 1)
	assert.Equal(t, models.OrderStatusProcessing, processing.Data[0].Status)

	_, err = env.Orders.ListAllOrders(ctx, "lost", 1, 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
