package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// dequeueScript atomically reclaims messages whose visibility period has
// expired, then pops one due message into the processing set. KEYS[1] is the
// due sorted set, KEYS[2] the processing sorted set; ARGV[1] is now and
// ARGV[2] the visibility deadline, both in unix seconds.
var dequeueScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, member in ipairs(expired) do
	redis.call('ZREM', KEYS[2], member)
	redis.call('ZADD', KEYS[1], ARGV[1], member)
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #due == 0 then
	return false
end
redis.call('ZREM', KEYS[1], due[1])
redis.call('ZADD', KEYS[2], ARGV[2], due[1])
return due[1]
`)

// RedisDelayQueue implements DelayQueue on two sorted sets: "due" scored by
// delivery instant and "processing" scored by visibility deadline. Messages
// are unique by instance id, so the raw body doubles as the set member and
// the ack receipt.
type RedisDelayQueue struct {
	client            *redis.Client
	dueKey            string
	processingKey     string
	visibilityTimeout time.Duration
	pollInterval      time.Duration
}

func NewRedisDelayQueue(client *redis.Client, name string, visibilityTimeout time.Duration) *RedisDelayQueue {
	return &RedisDelayQueue{
		client:            client,
		dueKey:            fmt.Sprintf("cronq:%s:due", name),
		processingKey:     fmt.Sprintf("cronq:%s:processing", name),
		visibilityTimeout: visibilityTimeout,
		pollInterval:      time.Second,
	}
}

func (q *RedisDelayQueue) Enqueue(ctx context.Context, body []byte, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	deliverAt := time.Now().Add(delay).Unix()
	if err := q.client.ZAdd(ctx, q.dueKey, redis.Z{Score: float64(deliverAt), Member: body}).Err(); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

func (q *RedisDelayQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		res, err := dequeueScript.Run(ctx, q.client,
			[]string{q.dueKey, q.processingKey},
			now.Unix(), now.Add(q.visibilityTimeout).Unix(),
		).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to dequeue message: %w", err)
		}
		if err == nil {
			body, ok := res.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected dequeue script result: %v", res)
			}
			return &Delivery{Body: []byte(body), Receipt: body}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *RedisDelayQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.client.ZRem(ctx, q.processingKey, d.Receipt).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

func (q *RedisDelayQueue) Close() error {
	return q.client.Close()
}
