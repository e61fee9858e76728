package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMalformed marks a message that can never be handled; consumers drop it
// instead of redelivering.
var ErrMalformed = errors.New("malformed message")

type Message struct {
	ID    uuid.UUID
	Topic string
	Key   string
	Value []byte
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

type HandlerFunc func(ctx context.Context, body []byte) error

func (f HandlerFunc) Handle(ctx context.Context, body []byte) error {
	return f(ctx, body)
}
