package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tkhorram/convoytrack/internal/domain/types"
)

func note(kind types.EntityKind) Notification {
	return Notification{
		Kind:      kind,
		ConvoyID:  uuid.New(),
		ID:        uuid.New(),
		Op:        types.OpUpdate,
		Timestamp: time.Now().UTC(),
	}
}

func TestPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(8))
	defer q.Close()

	if !q.Publish(ctx, note(types.KindUnit)) {
		t.Fatal("publish failed on empty queue")
	}
	if got := q.Len(ctx); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}

	sub := q.Subscribe(ctx)
	select {
	case n := <-sub:
		if n.Kind != types.KindUnit {
			t.Errorf("kind = %s, want unit", n.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestPublishBackpressure(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(2))
	defer q.Close()

	if !q.Publish(ctx, note(types.KindTelemetry)) || !q.Publish(ctx, note(types.KindTelemetry)) {
		t.Fatal("publish failed below capacity")
	}
	if q.Publish(ctx, note(types.KindTelemetry)) {
		t.Error("publish succeeded above capacity; expected drop")
	}
}

func TestCloseDrainsSubscribers(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(WithCapacity(4))

	q.Publish(ctx, note(types.KindConvoy))
	sub := q.Subscribe(ctx)

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Double close is a no-op.
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	// Queued item still drains, then the channel closes.
	select {
	case n, ok := <-sub:
		if !ok {
			t.Fatal("channel closed before draining queued notification")
		}
		if n.Kind != types.KindConvoy {
			t.Errorf("kind = %s, want convoy", n.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out draining")
	}
	select {
	case _, ok := <-sub:
		if ok {
			t.Error("expected closed channel after drain")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}

	if q.Publish(ctx, note(types.KindConvoy)) {
		t.Error("publish succeeded on closed queue")
	}
}
