package notify

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
)

const (
	DefaultBatchSize  = 50
	DefaultInterval   = time.Second
	DefaultMaxBackoff = 5 * time.Minute

	maxErrorLen = 500
)

// Dispatcher relays committed outbox rows to the broker. A row is marked sent
// only after Publish returned nil, so a crash between the two republishes it.
type Dispatcher struct {
	Repo       *repo.GormRepo
	Publisher  Publisher
	BatchSize  int
	Interval   time.Duration
	MaxBackoff time.Duration
	Metrics    *metrics.Metrics

	now func() time.Time
}

func NewDispatcher(r *repo.GormRepo, p Publisher, batchSize int, interval time.Duration, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		Repo:       r,
		Publisher:  p,
		BatchSize:  batchSize,
		Interval:   interval,
		MaxBackoff: DefaultMaxBackoff,
		Metrics:    m,
	}
}

func (d *Dispatcher) Run(ctx context.Context) error {
	l := logging.FromContext(ctx).With("component", "outbox_dispatcher")
	interval := d.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	l.InfoContext(ctx, "dispatcher_started", "interval", interval.String(), "batch_size", d.batchSize())
	for {
		select {
		case <-ctx.Done():
			l.InfoContext(ctx, "dispatcher_stopped")
			return nil
		case <-t.C:
		}

		// drain full batches without waiting for the next tick
		for {
			n, err := d.DispatchOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.ErrorContext(ctx, "dispatch_failed", "error", err)
				break
			}
			if n < d.batchSize() {
				break
			}
		}
	}
}

// DispatchOnce publishes one batch of due messages and returns how many rows
// it processed. Failed publishes are rescheduled with exponential backoff.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	l := logging.FromContext(ctx).With("component", "outbox_dispatcher")

	processed := 0
	err := d.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		now := d.clock()
		msgs, err := tx.FetchPendingOutbox(ctx, now, d.batchSize())
		if err != nil {
			return err
		}

		for _, m := range msgs {
			processed++
			perr := d.Publisher.Publish(ctx, Message{
				ID:    m.EventID,
				Topic: m.Topic,
				Key:   m.Key,
				Value: []byte(m.Payload),
			})
			if perr != nil {
				next := now.Add(d.backoff(m.Attempts + 1))
				l.WarnContext(ctx, "publish_failed",
					"event_id", m.EventID,
					"topic", m.Topic,
					"attempt", m.Attempts+1,
					"retry_at", next,
					"error", perr,
				)
				d.Metrics.ObserveDispatch(m.Topic, "failed")
				if err := tx.MarkOutboxFailed(ctx, m.ID, truncate(perr.Error(), maxErrorLen), next); err != nil {
					return err
				}
				continue
			}

			d.Metrics.ObserveDispatch(m.Topic, "sent")
			if err := tx.MarkOutboxSent(ctx, m.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	ceiling := d.MaxBackoff
	if ceiling <= 0 {
		ceiling = DefaultMaxBackoff
	}
	delay := time.Second
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	return delay
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return d.BatchSize
}

func (d *Dispatcher) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now().UTC()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
