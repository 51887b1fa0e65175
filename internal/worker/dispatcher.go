package worker

import (
	"context"
	"sync"
	"time"

	"payment-service/internal/util"

	"go.uber.org/zap"
)

// Notifier delivers one notification payload
type Notifier interface {
	Notify(ctx context.Context, payload []byte) error
}

// NotificationDispatcher decouples notification delivery from the
// request-response path: finalized payloads are queued and delivered by a
// bounded worker pool. Delivery failure or delay never reaches the caller.
type NotificationDispatcher struct {
	notifier Notifier
	queue    chan []byte
	workers  int
	timeout  time.Duration
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// NewNotificationDispatcher creates a dispatcher with a bounded queue
func NewNotificationDispatcher(notifier Notifier, queueSize, workers int, timeout time.Duration) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &NotificationDispatcher{
		notifier: notifier,
		queue:    make(chan []byte, queueSize),
		workers:  workers,
		timeout:  timeout,
		logger:   util.GetLogger(),
	}
}

// Start launches the worker pool
func (d *NotificationDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
}

// Stop waits for in-flight deliveries to settle
func (d *NotificationDispatcher) Stop() {
	d.wg.Wait()
}

// Dispatch enqueues a payload without blocking. When the queue is full the
// payload is dropped: notifications are best-effort.
func (d *NotificationDispatcher) Dispatch(payload []byte) {
	select {
	case d.queue <- payload:
	default:
		util.NotificationsDroppedTotal.Inc()
		d.logger.Warn("Notification queue full, dropping payload")
	}
}

func (d *NotificationDispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-d.queue:
			d.deliver(payload)
		}
	}
}

func (d *NotificationDispatcher) deliver(payload []byte) {
	// Deliveries get their own deadline, detached from any request context.
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, payload); err != nil {
		util.NotificationFailuresTotal.Inc()
		d.logger.Warn("Notification delivery failed", zap.Error(err))
	}
}
