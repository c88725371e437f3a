package queue

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Dequeue after Close.
var ErrClosed = errors.New("queue closed")

// Delivery is one received message. Receipt is the driver-specific token
// needed to acknowledge it.
type Delivery struct {
	Body    []byte
	Receipt string
}

// DelayQueue decouples "decided to run a job" from "run a job" by instant.
//
// Enqueue makes the message visible to consumers no earlier than now+delay.
// Dequeue blocks until a visible message is available or ctx is done; the
// returned message stays hidden from other consumers until acknowledged or
// until its visibility period elapses, so delivery is at-least-once and
// consumers must tolerate duplicates. Ack removes the message permanently.
type DelayQueue interface {
	Enqueue(ctx context.Context, body []byte, delay time.Duration) error
	Dequeue(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Close() error
}
