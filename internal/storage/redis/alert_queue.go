package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prohori/internal/domain"
	"prohori/pkg/e"
)

const DefaultAlertQueueKey = "sos:dispatch"

// AlertQueue is a FIFO of SOS dispatches: LPUSH on accept, BRPOP by the
// dispatcher.
type AlertQueue struct {
	client *redis.Client
	key    string
}

func NewAlertQueue(client *redis.Client, key string) *AlertQueue {
	if key == "" {
		key = DefaultAlertQueueKey
	}
	return &AlertQueue{client: client, key: key}
}

func (q *AlertQueue) Enqueue(ctx context.Context, d domain.SosDispatch) error {
	const op = "redis.AlertQueue.Enqueue"

	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return e.WrapError(ctx, op, err)
	}
	return nil
}

// Dequeue blocks up to timeout. An empty queue yields ErrAlertQueueEmpty.
func (q *AlertQueue) Dequeue(ctx context.Context, timeout time.Duration) (domain.SosDispatch, error) {
	const op = "redis.AlertQueue.Dequeue"

	var d domain.SosDispatch
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return d, e.ErrAlertQueueEmpty
		}
		return d, e.WrapError(ctx, op, err)
	}
	if len(res) < 2 {
		return d, e.ErrAlertQueueEmpty
	}
	if err := json.Unmarshal([]byte(res[1]), &d); err != nil {
		return d, fmt.Errorf("%s: decode: %w", op, err)
	}
	return d, nil
}
