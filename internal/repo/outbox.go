package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
	pkgdb "github.com/Skotchmaster/storefront/pkg/db"
)

func (r *GormRepo) InsertOutbox(ctx context.Context, msg *models.OutboxMessage) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

// FetchPendingOutbox returns due, unsent messages oldest first. On PostgreSQL
// the rows stay locked for the rest of the transaction and concurrent relays
// skip them.
func (r *GormRepo) FetchPendingOutbox(ctx context.Context, now time.Time, limit int) ([]models.OutboxMessage, error) {
	q := r.DB.WithContext(ctx).
		Where("sent_at IS NULL AND available_at <= ?", now).
		Order("id ASC").
		Limit(limit)
	if pkgdb.IsPostgres(r.DB) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var out []models.OutboxMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) MarkOutboxSent(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"sent_at": at, "attempts": gorm.Expr("attempts + 1"), "last_error": ""}).Error
}

func (r *GormRepo) MarkOutboxFailed(ctx context.Context, id uint, lastErr string, next time.Time) error {
	return r.DB.WithContext(ctx).
		Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"available_at": next, "attempts": gorm.Expr("attempts + 1"), "last_error": lastErr}).Error
}

// InsertNotification records a handled event and reports false when the
// event id was already recorded.
func (r *GormRepo) InsertNotification(ctx context.Context, n *models.Notification) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(n)
	return res.RowsAffected > 0, res.Error
}
