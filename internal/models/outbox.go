package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is written in the same transaction as the state change it
// announces and relayed to the broker afterwards.
type OutboxMessage struct {
	ID          uint       `gorm:"primaryKey;autoIncrement"`
	EventID     uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	Topic       string     `gorm:"type:varchar(100);not null"`
	Key         string     `gorm:"type:varchar(100);not null"`
	Payload     string     `gorm:"type:text;not null"`
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
	AvailableAt time.Time  `gorm:"index;not null"`
	SentAt      *time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// Notification records an event the notifier has already handled.
type Notification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	EventID   uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	OrderID   uint      `gorm:"index;not null"`
	Kind      string    `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time
}

func All() []any {
	return []any{&Category{}, &Product{}, &CartItem{}, &Order{}, &OrderItem{}, &OutboxMessage{}, &Notification{}}
}
