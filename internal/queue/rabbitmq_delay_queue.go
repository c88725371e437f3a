package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQDelayQueue implements DelayQueue with a wait queue whose messages
// carry a per-message TTL and dead-letter into the ready queue. Consuming is
// manual-ack, so an unacknowledged delivery is redelivered when the consumer
// channel drops.
//
// RabbitMQ expires messages only at the head of the wait queue, so a
// long-TTL message ahead of a short-TTL one holds the shorter one back.
// Enqueue therefore requires producers to publish each batch in ascending
// delay order (the scheduler sorts a cycle's claims by fire instant before
// publishing); then expiry order matches queue order and the only residual
// hold-back is the previous cycle's tail message, whose TTL elapses at
// that cycle's window end, i.e. when the next cycle starts publishing.
// Zero-delay messages bypass the wait queue entirely.
type RabbitMQDelayQueue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	queueName  string
	waitQueue  string
	exchange   string
	routingKey string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
	unacked    map[string]amqp.Delivery
	closed     bool
}

func NewRabbitMQDelayQueue(url, exchange, queue, routingKey string) (*RabbitMQDelayQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	waitQueue := queue + ".wait"
	if _, err := ch.QueueDeclare(
		waitQueue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    exchange,
			"x-dead-letter-routing-key": routingKey,
		},
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQDelayQueue{
		conn:       conn,
		channel:    ch,
		queueName:  queue,
		waitQueue:  waitQueue,
		exchange:   exchange,
		routingKey: routingKey,
		unacked:    make(map[string]amqp.Delivery),
	}, nil
}

func (q *RabbitMQDelayQueue) Enqueue(ctx context.Context, body []byte, delay time.Duration) error {
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}

	if delay <= 0 {
		return q.channel.PublishWithContext(ctx, q.exchange, q.routingKey, false, false, publishing)
	}

	publishing.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	return q.channel.PublishWithContext(ctx, "", q.waitQueue, false, false, publishing)
}

func (q *RabbitMQDelayQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	deliveries, err := q.consumeChannel()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return nil, ErrClosed
		}
		receipt := strconv.FormatUint(d.DeliveryTag, 10)
		q.mu.Lock()
		q.unacked[receipt] = d
		q.mu.Unlock()
		return &Delivery{Body: d.Body, Receipt: receipt}, nil
	}
}

func (q *RabbitMQDelayQueue) Ack(ctx context.Context, d *Delivery) error {
	q.mu.Lock()
	delivery, ok := q.unacked[d.Receipt]
	delete(q.unacked, d.Receipt)
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown delivery receipt: %s", d.Receipt)
	}
	return delivery.Ack(false)
}

func (q *RabbitMQDelayQueue) consumeChannel() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	if q.deliveries != nil {
		return q.deliveries, nil
	}

	deliveries, err := q.channel.Consume(
		q.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

func (q *RabbitMQDelayQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	if err := q.channel.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
