package domain

import "context"

// QueueMessage is a single delivery from the durable trade queue. ID is the
// broker-assigned identifier used to acknowledge the message.
type QueueMessage struct {
	ID      string
	Payload []byte
}

// TradeQueue is a durable, at-least-once message queue. Receive blocks until
// a message is available or the context is cancelled. Messages must be
// acknowledged only after handling completes; unacknowledged messages are
// redelivered after a broker-side timeout or on consumer restart.
type TradeQueue interface {
	Receive(ctx context.Context) (QueueMessage, error)
	Ack(ctx context.Context, id string) error
	Publish(ctx context.Context, payload []byte) error
}
