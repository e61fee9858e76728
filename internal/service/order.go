package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/cache"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

const (
	DefaultTxTimeout = 5 * time.Second

	maxAddressLen = 500
	maxPhoneLen   = 20
)

var tracer = otel.Tracer("github.com/Skotchmaster/storefront/internal/service")

type OrderService struct {
	Repo      *repo.GormRepo
	Cache     *cache.CatalogCache
	Metrics   *metrics.Metrics
	TxTimeout time.Duration
}

// PlaceOrder converts the user's cart into a pending order in one
// transaction. Stock is decremented per line in ascending product id order;
// any shortfall rolls back every earlier decrement.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, req transport.PlaceOrderRequest) (_ *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	l := logging.FromContext(ctx).With("component", "order_service", "user_id", userID)

	address, phone, err := validateCheckout(req)
	if err != nil {
		s.Metrics.ObserveOrder("invalid")
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout())
	defer cancel()

	var placed models.Order
	err = s.Repo.InTx(txCtx, func(tx *repo.GormRepo) error {
		if err := tx.SetLockTimeout(txCtx, s.txTimeout()); err != nil {
			return err
		}

		lines, err := tx.GetCart(txCtx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.ErrEmptyCart
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			if line.Product == nil {
				return fmt.Errorf("product %d: %w", line.ProductID, apperr.ErrNotFound)
			}
			if err := tx.DecrementStock(txCtx, line.ProductID, line.Quantity); err != nil {
				return err
			}
			item := models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.Product.Price,
			}
			total = total.Add(item.LineTotal())
			items = append(items, item)
		}

		placed = models.Order{
			UserID:  userID,
			Status:  models.OrderStatusPending,
			Total:   total,
			Address: address,
			Phone:   phone,
			Items:   items,
		}
		if err := tx.CreateOrder(txCtx, &placed); err != nil {
			return err
		}
		if _, err := tx.ClearCart(txCtx, userID); err != nil {
			return err
		}
		return notify.NotifyOrder(txCtx, tx, notify.EventOrderCreated, &placed, "")
	})
	if err != nil {
		err = apperr.Classify("place order", err)
		s.Metrics.ObserveOrder(placementResult(err))
		l.WarnContext(ctx, "order_place_failed", "reason", placementResult(err), "error", err)
		return nil, err
	}

	s.Metrics.ObserveOrder("placed")
	span.SetAttributes(attribute.Int64("order.id", int64(placed.ID)), attribute.String("order.total", placed.Total.StringFixed(2)))
	l.InfoContext(ctx, "order_placed", "order_id", placed.ID, "total", placed.Total.StringFixed(2), "items", len(placed.Items))

	invalidateCatalog(ctx, s.Cache, "order_placed")

	full, err := s.Repo.GetOrder(ctx, placed.ID)
	if err != nil {
		l.WarnContext(ctx, "order_reload_failed", "order_id", placed.ID, "error", err)
		return &placed, nil
	}
	return full, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, page, size int) (transport.OrderListing, error) {
	return s.list(ctx, repo.OrderFilter{UserID: &userID}, page, size)
}

func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, id uint) (*models.Order, error) {
	o, err := s.Repo.GetUserOrder(ctx, userID, id)
	if err != nil {
		return nil, apperr.Classify(fmt.Sprintf("order %d", id), err)
	}
	return o, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context, status models.OrderStatus, page, size int) (transport.OrderListing, error) {
	if status != "" && !status.Valid() {
		return transport.OrderListing{}, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, status)
	}
	return s.list(ctx, repo.OrderFilter{Status: status}, page, size)
}

func (s *OrderService) GetOrderAdmin(ctx context.Context, id uint) (*models.Order, error) {
	o, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, apperr.Classify(fmt.Sprintf("order %d", id), err)
	}
	return o, nil
}

func (s *OrderService) list(ctx context.Context, f repo.OrderFilter, page, size int) (transport.OrderListing, error) {
	page, size = util.Normalize(page, size)
	offset, limit := util.Calculate(page, size)
	total, orders, err := s.Repo.ListOrders(ctx, f, offset, limit)
	if err != nil {
		return transport.OrderListing{}, apperr.Classify("list orders", err)
	}
	return transport.OrderListing{Data: orders, Meta: util.NewMeta(page, size, total)}, nil
}

// UpdateStatus applies one transition of the order state machine. The write
// is a compare-and-set on the status read, so of two concurrent updates only
// one applies. Cancelling returns the items to stock.
func (s *OrderService) UpdateStatus(ctx context.Context, id uint, to models.OrderStatus) (*models.Order, error) {
	l := logging.FromContext(ctx).With("component", "order_service", "order_id", id)
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, to)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout())
	defer cancel()

	var from models.OrderStatus
	err := s.Repo.InTx(txCtx, func(tx *repo.GormRepo) error {
		if err := tx.SetLockTimeout(txCtx, s.txTimeout()); err != nil {
			return err
		}

		o, err := tx.GetOrder(txCtx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if from.Terminal() {
			return fmt.Errorf("%w: order %d is already %s", apperr.ErrInvalidTransition, id, from)
		}
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
		}

		ok, err := tx.CompareAndSetStatus(txCtx, id, from, to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: order %d changed concurrently", apperr.ErrConflict, id)
		}

		if to == models.OrderStatusCancelled {
			for _, it := range o.Items {
				restored, err := tx.RestoreStock(txCtx, it.ProductID, it.Quantity)
				if err != nil {
					return err
				}
				if !restored {
					l.InfoContext(ctx, "restock_skipped", "product_id", it.ProductID, "reason", "product deleted")
				}
			}
		}

		o.Status = to
		return notify.NotifyOrder(txCtx, tx, notify.EventOrderStatusChanged, o, from)
	})
	if err != nil {
		err = apperr.Classify(fmt.Sprintf("update order %d status", id), err)
		l.WarnContext(ctx, "order_status_update_failed", "to", to, "error", err)
		return nil, err
	}

	l.InfoContext(ctx, "order_status_updated", "from", from, "to", to)
	if to == models.OrderStatusCancelled {
		invalidateCatalog(ctx, s.Cache, "order_cancelled")
	}
	return s.GetOrderAdmin(ctx, id)
}

func (s *OrderService) txTimeout() time.Duration {
	if s.TxTimeout <= 0 {
		return DefaultTxTimeout
	}
	return s.TxTimeout
}

func validateCheckout(req transport.PlaceOrderRequest) (string, string, error) {
	address := strings.TrimSpace(req.Address)
	phone := strings.TrimSpace(req.Phone)
	switch {
	case address == "":
		return "", "", fmt.Errorf("%w: address required", apperr.ErrValidation)
	case utf8.RuneCountInString(address) > maxAddressLen:
		return "", "", fmt.Errorf("%w: address longer than %d", apperr.ErrValidation, maxAddressLen)
	case phone == "":
		return "", "", fmt.Errorf("%w: phone required", apperr.ErrValidation)
	case utf8.RuneCountInString(phone) > maxPhoneLen:
		return "", "", fmt.Errorf("%w: phone longer than %d", apperr.ErrValidation, maxPhoneLen)
	}
	return address, phone, nil
}

func placementResult(err error) string {
	switch {
	case errors.Is(err, apperr.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
