// Package notify carries change notifications from write strategies to the
// invalidation coordinator over a bounded in-memory queue.
package notify

import (
	"context"
	"sync"

	"github.com/tkhorram/convoytrack/internal/domain/types"
	"github.com/tkhorram/convoytrack/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10000
)

// Notification is the payload type flowing through the queue.
type Notification = types.Notification

// Queue provides non-blocking publish and channel-based subscribe semantics.
type Queue interface {
	// Publish adds a notification to the queue.
	// Returns false if the queue is full and the notification was dropped.
	Publish(ctx context.Context, n Notification) bool

	// Subscribe returns a channel that receives notifications as they arrive.
	// The channel is closed when the queue is closed.
	Subscribe(ctx context.Context) <-chan Notification

	// Len returns the current number of queued notifications.
	Len(ctx context.Context) int

	// Close shuts down the queue. After closing, Publish returns false and
	// subscriber channels drain and close.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Notification
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.events = make(chan Notification, q.capacity)

	metrics.UpdateNotificationQueueSize(0)

	return q
}

// Publish adds a notification to the queue.
func (q *InMemoryQueue) Publish(ctx context.Context, n Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordNotificationDropped()
		return false
	}

	select {
	case q.events <- n:
		metrics.RecordNotificationPublished()
		metrics.UpdateNotificationQueueSize(len(q.events))
		return true
	case <-ctx.Done():
		metrics.RecordNotificationDropped()
		return false
	default:
		// Backpressure: invalidation is advisory, dropping is safe because
		// every cached key still carries its TTL tier.
		metrics.RecordNotificationDropped()
		return false
	}
}

// Subscribe returns a channel that receives notifications as they arrive.
func (q *InMemoryQueue) Subscribe(ctx context.Context) <-chan Notification {
	out := make(chan Notification)
	go func() {
		defer close(out)
		for n := range q.events {
			select {
			case out <- n:
				metrics.UpdateNotificationQueueSize(len(q.events))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued notifications.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.events)
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.events)
	q.closed = true

	return nil
}
