package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// OrderNotifier delivers customer notifications for order events. Delivery
// is idempotent per event id, so redelivered messages are acknowledged
// without notifying twice.
type OrderNotifier struct {
	Repo *repo.GormRepo
}

func NewOrderNotifier(r *repo.GormRepo) *OrderNotifier {
	return &OrderNotifier{Repo: r}
}

func (n *OrderNotifier) Handle(ctx context.Context, body []byte) error {
	l := logging.FromContext(ctx).With("component", "order_notifier")

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch evt.Type {
	case EventOrderCreated, EventOrderStatusChanged:
	default:
		l.DebugContext(ctx, "event_ignored", "event_id", evt.EventID, "type", evt.Type)
		return nil
	}

	var p OrderPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("%w: order payload: %v", ErrMalformed, err)
	}

	fresh, err := n.Repo.InsertNotification(ctx, &models.Notification{
		EventID: evt.EventID,
		OrderID: p.OrderID,
		Kind:    evt.Type,
	})
	if err != nil {
		return fmt.Errorf("record notification %s: %w", evt.EventID, err)
	}
	if !fresh {
		l.InfoContext(ctx, "notification_duplicate", "event_id", evt.EventID, "order_id", p.OrderID)
		return nil
	}

	l.InfoContext(ctx, "notification_sent",
		"event_id", evt.EventID,
		"type", evt.Type,
		"order_id", p.OrderID,
		"user_id", p.UserID,
		"status", p.Status,
		"previous_status", p.PreviousStatus,
		"total", p.Total.StringFixed(2),
	)
	return nil
}
