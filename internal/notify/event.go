package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

const (
	TopicOrders   = "order_events"
	TopicProducts = "product_events"

	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventProductCreated     = "product_created"
	EventProductUpdated     = "product_updated"
	EventProductDeleted     = "product_deleted"
)

type Event struct {
	EventID    uuid.UUID       `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OrderPayload struct {
	OrderID        uint               `json:"order_id"`
	UserID         uuid.UUID          `json:"user_id"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	Total          decimal.Decimal    `json:"total"`
	Items          int                `json:"items"`
}

type ProductPayload struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name,omitempty"`
}

func NewEvent(typ string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{
		EventID:    uuid.New(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Outbox is the durable enqueue primitive; *repo.GormRepo bound to a
// transaction satisfies it.
type Outbox interface {
	InsertOutbox(ctx context.Context, msg *models.OutboxMessage) error
}

// Notify enqueues evt through tx. The message becomes visible to the relay
// only when tx commits and is delivered at least once after that.
func Notify(ctx context.Context, tx Outbox, topic, key string, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return tx.InsertOutbox(ctx, &models.OutboxMessage{
		EventID:     evt.EventID,
		Topic:       topic,
		Key:         key,
		Payload:     string(body),
		AvailableAt: evt.OccurredAt,
	})
}

func NotifyOrder(ctx context.Context, tx Outbox, typ string, o *models.Order, prev models.OrderStatus) error {
	evt, err := NewEvent(typ, OrderPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: prev,
		Total:          o.Total,
		Items:          len(o.Items),
	})
	if err != nil {
		return err
	}
	return Notify(ctx, tx, TopicOrders, strconv.FormatUint(uint64(o.ID), 10), evt)
}

func NotifyProduct(ctx context.Context, tx Outbox, typ string, p *models.Product) error {
	evt, err := NewEvent(typ, ProductPayload{ProductID: p.ID, Name: p.Name})
	if err != nil {
		return err
	}
	return Notify(ctx, tx, TopicProducts, strconv.FormatUint(uint64(p.ID), 10), evt)
}
