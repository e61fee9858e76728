package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/testdb"
)

func TestDecrementStock(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	cat := testdb.Category(t, db, "Books")
	p := testdb.Product(t, db, cat.ID, "Go Book", "30.00", 5)

	require.NoError(t, r.DecrementStock(ctx, p.ID, 2))
	assert.Equal(t, 3, testdb.Stock(t, db, p.ID))

	require.NoError(t, r.DecrementStock(ctx, p.ID, 3))
	assert.Equal(t, 0, testdb.Stock(t, db, p.ID))

	err := r.DecrementStock(ctx, p.ID, 1)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	var ise *apperr.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, p.ID, ise.ProductID)
	assert.EqualValues(t, 1, ise.Requested)
	assert.Equal(t, 0, ise.Available)
	assert.Equal(t, 0, testdb.Stock(t, db, p.ID))
}

func TestDecrementStock_NotFoundAndDeleted(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	cat := testdb.Category(t, db, "Books")
	p := testdb.Product(t, db, cat.ID, "Old Book", "5.00", 10)

	require.ErrorIs(t, r.DecrementStock(ctx, 9999, 1), apperr.ErrNotFound)

	require.NoError(t, r.DeleteProduct(ctx, p.ID))
	require.ErrorIs(t, r.DecrementStock(ctx, p.ID, 1), apperr.ErrNotFound)
	assert.Equal(t, 10, testdb.Stock(t, db, p.ID))

	require.ErrorIs(t, r.DecrementStock(ctx, p.ID, 0), apperr.ErrValidation)
}

// SQLite runs on a single connection, so the buyers here are serialized.
// TestDecrementStock_ConcurrentNeverNegativePostgres covers real row contention.
func TestDecrementStock_ConcurrentNeverNegative(t *testing.T) {
	assertNoOversell(t, testdb.Open(t))
}

func TestDecrementStock_ConcurrentNeverNegativePostgres(t *testing.T) {
	assertNoOversell(t, testdb.OpenPostgres(t))
}

func assertNoOversell(t *testing.T, db *gorm.DB) {
	t.Helper()
	r := New(db)
	ctx := context.Background()
	cat := testdb.Category(t, db, "Electronics")
	p := testdb.Product(t, db, cat.ID, "Last Units", "99.00", 5)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.DecrementStock(ctx, p.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 0, testdb.Stock(t, db, p.ID))
}

func TestRestoreStock(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	cat := testdb.Category(t, db, "Sports")
	p := testdb.Product(t, db, cat.ID, "Ball", "12.00", 1)

	ok, err := r.RestoreStock(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, testdb.Stock(t, db, p.ID))

	ok, err = r.RestoreStock(ctx, 4242, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInTx_RollsBackDecrements(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	cat := testdb.Category(t, db, "Home")
	a := testdb.Product(t, db, cat.ID, "Lamp", "10.00", 5)
	b := testdb.Product(t, db, cat.ID, "Rug", "25.00", 0)

	err := r.InTx(ctx, func(tx *GormRepo) error {
		if err := tx.DecrementStock(ctx, a.ID, 2); err != nil {
			return err
		}
		return tx.DecrementStock(ctx, b.ID, 1)
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, 5, testdb.Stock(t, db, a.ID))
	assert.Equal(t, 0, testdb.Stock(t, db, b.ID))
}
