package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type captureNotifier struct {
	mu       sync.Mutex
	payloads [][]byte
	done     chan struct{}
	want     int
}

func newCaptureNotifier(want int) *captureNotifier {
	return &captureNotifier{done: make(chan struct{}), want: want}
}

func (n *captureNotifier) Notify(ctx context.Context, payload []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	if len(n.payloads) == n.want {
		close(n.done)
	}
	return nil
}

func TestDispatcherDeliversQueuedPayloads(t *testing.T) {
	notifier := newCaptureNotifier(3)
	dispatcher := NewNotificationDispatcher(notifier, 8, 2, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	dispatcher.Dispatch([]byte(`{"payment_id":1}`))
	dispatcher.Dispatch([]byte(`{"payment_id":2}`))
	dispatcher.Dispatch([]byte(`{"payment_id":3}`))

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifications not delivered in time")
	}

	cancel()
	dispatcher.Stop()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Len(t, notifier.payloads, 3)
}

func TestDispatchDropsWhenQueueFull(t *testing.T) {
	// No workers started: the queue fills and further dispatches must not block.
	dispatcher := NewNotificationDispatcher(newCaptureNotifier(0), 1, 1, time.Second)

	done := make(chan struct{})
	go func() {
		dispatcher.Dispatch([]byte(`1`))
		dispatcher.Dispatch([]byte(`2`))
		dispatcher.Dispatch([]byte(`3`))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	assert.Len(t, dispatcher.queue, 1)
}
