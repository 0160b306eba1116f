// Package memory provides an in-process queue for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Queue keeps per-name FIFO queues in memory. Messages round-trip through
// JSON so payload handling matches the durable implementation.
type Queue struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

// New constructs an empty Queue.
func New() *Queue {
	return &Queue{queues: make(map[string][][]byte)}
}

// Send appends a message to the named queue.
func (q *Queue) Send(ctx context.Context, queueName string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send canceled: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", queueName, err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[queueName] = append(q.queues[queueName], body)
	return nil
}

// Pop removes the oldest message from the named queue and decodes it into
// out. It reports ok=false when the queue is empty.
func (q *Queue) Pop(ctx context.Context, queueName string, out any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("pop canceled: %w", err)
	}
	q.mu.Lock()
	msgs := q.queues[queueName]
	if len(msgs) == 0 {
		q.mu.Unlock()
		return false, nil
	}
	head := msgs[0]
	q.queues[queueName] = msgs[1:]
	q.mu.Unlock()

	if err := json.Unmarshal(head, out); err != nil {
		return false, fmt.Errorf("decode message from %s: %w", queueName, err)
	}
	return true, nil
}

// Len reports the number of messages waiting on the named queue.
func (q *Queue) Len(queueName string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queueName])
}
