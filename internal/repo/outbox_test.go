package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/testdb"
)

func TestOutbox_PendingLifecycle(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	now := time.Now().UTC()

	due := models.OutboxMessage{EventID: uuid.New(), Topic: "order_events", Key: "1", Payload: `{"n":1}`, AvailableAt: now.Add(-time.Hour)}
	later := models.OutboxMessage{EventID: uuid.New(), Topic: "order_events", Key: "2", Payload: `{"n":2}`, AvailableAt: now.Add(time.Hour)}
	require.NoError(t, r.InsertOutbox(ctx, &due))
	require.NoError(t, r.InsertOutbox(ctx, &later))

	pending, err := r.FetchPendingOutbox(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, due.EventID, pending[0].EventID)

	require.NoError(t, r.MarkOutboxFailed(ctx, due.ID, "broker down", now.Add(2*time.Hour)))
	pending, err = r.FetchPendingOutbox(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = r.FetchPendingOutbox(ctx, now.Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "broker down", pending[0].LastError)

	require.NoError(t, r.MarkOutboxSent(ctx, due.ID, now))
	pending, err = r.FetchPendingOutbox(ctx, now.Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.EventID, pending[0].EventID)
}

func TestInsertNotification_Dedupes(t *testing.T) {
	db := testdb.Open(t)
	r := New(db)
	ctx := context.Background()
	eventID := uuid.New()

	ok, err := r.InsertNotification(ctx, &models.Notification{EventID: eventID, OrderID: 1, Kind: "order_created"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.InsertNotification(ctx, &models.Notification{EventID: eventID, OrderID: 1, Kind: "order_created"})
	require.NoError(t, err)
	assert.False(t, ok)
}
