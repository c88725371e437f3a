package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"cronq/internal/queue"
)

// EnqueuedMessage is one captured Enqueue call.
type EnqueuedMessage struct {
	Body  []byte
	Delay time.Duration
}

// MockDelayQueue is an in-memory DelayQueue. Enqueued messages are captured
// for assertions; Dequeue delivers them in order regardless of delay unless
// the test inspects delays itself.
type MockDelayQueue struct {
	mu          sync.Mutex
	messages    []EnqueuedMessage
	pending     []queue.Delivery
	acked       map[string]bool
	seq         int
	EnqueueFunc func(ctx context.Context, body []byte, delay time.Duration) error
	DequeueFunc func(ctx context.Context) error
}

func NewMockDelayQueue() *MockDelayQueue {
	return &MockDelayQueue{
		acked: make(map[string]bool),
	}
}

func (m *MockDelayQueue) Enqueue(ctx context.Context, body []byte, delay time.Duration) error {
	if m.EnqueueFunc != nil {
		if err := m.EnqueueFunc(ctx, body, delay); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, EnqueuedMessage{Body: body, Delay: delay})
	m.seq++
	m.pending = append(m.pending, queue.Delivery{Body: body, Receipt: strconv.Itoa(m.seq)})
	return nil
}

func (m *MockDelayQueue) Dequeue(ctx context.Context) (*queue.Delivery, error) {
	if m.DequeueFunc != nil {
		if err := m.DequeueFunc(ctx); err != nil {
			return nil, err
		}
	}
	for {
		m.mu.Lock()
		if len(m.pending) > 0 {
			delivery := m.pending[0]
			m.pending = m.pending[1:]
			m.mu.Unlock()
			return &delivery, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (m *MockDelayQueue) Ack(ctx context.Context, d *queue.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked[d.Receipt] = true
	return nil
}

func (m *MockDelayQueue) Close() error {
	return nil
}

// Enqueued returns a copy of every captured Enqueue call.
func (m *MockDelayQueue) Enqueued() []EnqueuedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EnqueuedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// AckedCount returns how many deliveries have been acknowledged.
func (m *MockDelayQueue) AckedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.acked)
}
