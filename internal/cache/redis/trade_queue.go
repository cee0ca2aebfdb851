package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ilertha/Solana-AI-agent-tool/internal/domain"
)

// queueMaxLen is the approximate maximum stream length, enforced via
// XADD MAXLEN ~.
const queueMaxLen int64 = 10000

// blockInterval bounds each XREADGROUP block so Receive can observe context
// cancellation between polls.
const blockInterval = 5 * time.Second

// TradeQueue implements domain.TradeQueue on a Redis stream with a consumer
// group. Entries are acknowledged with XACK only after the caller has handled
// them; on restart the consumer first drains its own pending entries, giving
// at-least-once delivery across crashes mid-processing.
type TradeQueue struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string

	// pendingDrained flips once the consumer has replayed entries that were
	// delivered but never acknowledged by a previous incarnation.
	pendingDrained bool
}

// NewTradeQueue creates a TradeQueue and ensures the consumer group exists,
// creating the stream if necessary.
func NewTradeQueue(ctx context.Context, c *Client, stream, group, consumer string) (*TradeQueue, error) {
	q := &TradeQueue{
		rdb:      c.Underlying(),
		stream:   stream,
		group:    group,
		consumer: consumer,
	}

	err := q.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("redis: create consumer group %s on %s: %w", group, stream, err)
	}
	return q, nil
}

// Publish appends a payload to the stream.
func (q *TradeQueue) Publish(ctx context.Context, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: queueMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := q.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: queue publish %s: %w", q.stream, err)
	}
	return nil
}

// Receive blocks until a message is available or the context is cancelled.
// Unacknowledged entries from a previous run of this consumer are delivered
// first.
func (q *TradeQueue) Receive(ctx context.Context) (domain.QueueMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.QueueMessage{}, err
		}

		id := ">"
		if !q.pendingDrained {
			id = "0"
		}

		args := &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, id},
			Count:    1,
			Block:    blockInterval,
		}

		results, err := q.rdb.XReadGroup(ctx, args).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return domain.QueueMessage{}, ctx.Err()
			}
			return domain.QueueMessage{}, fmt.Errorf("redis: queue read %s: %w", q.stream, err)
		}

		msg, ok := firstMessage(results)
		if !ok {
			// An empty batch on id "0" means the pending backlog is drained.
			if !q.pendingDrained {
				q.pendingDrained = true
			}
			continue
		}
		return msg, nil
	}
}

// Ack acknowledges a handled message so the group never redelivers it.
func (q *TradeQueue) Ack(ctx context.Context, id string) error {
	if err := q.rdb.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		return fmt.Errorf("redis: queue ack %s/%s: %w", q.stream, id, err)
	}
	return nil
}

func firstMessage(results []redis.XStream) (domain.QueueMessage, bool) {
	for _, s := range results {
		for _, msg := range s.Messages {
			payload, ok := msg.Values["payload"]
			if !ok {
				continue
			}
			var data []byte
			switch v := payload.(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}
			return domain.QueueMessage{ID: msg.ID, Payload: data}, true
		}
	}
	return domain.QueueMessage{}, false
}

// Compile-time interface check.
var _ domain.TradeQueue = (*TradeQueue)(nil)
