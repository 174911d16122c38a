package notify

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

const queueCapacity = 256

// Dispatcher fans notifications out to a small worker pool so sending (an
// I/O-bound call to the push gateway) never blocks a settlement transition.
// Enqueue drops the notification when the queue is full rather than block.
type Dispatcher struct {
	sender  Sender
	history HistorySaver
	queue   chan Notification
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// HistorySaver persists delivered notifications for later retrieval.
type HistorySaver interface {
	Save(ctx context.Context, n Notification) error
}

// NewDispatcher starts workers pulling from the queue. workers <= 0 sizes the
// pool from the CPU count.
func NewDispatcher(ctx context.Context, sender Sender, history HistorySaver, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	d := &Dispatcher{
		sender:  sender,
		history: history,
		queue:   make(chan Notification, queueCapacity),
		logger:  logger,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return d
}

// Enqueue hands a notification to the pool. Never blocks and never fails the
// caller; a full queue is logged and the message dropped.
func (d *Dispatcher) Enqueue(n Notification) {
	select {
	case d.queue <- n:
	default:
		d.logger.Warn("notification queue full, dropping message",
			zap.Int64("user_id", n.UserID),
			zap.String("title", n.Title))
	}
}

// Close waits for in-flight sends to finish. The queue channel stays open;
// workers exit on context cancellation.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	if err := d.sender.Send(ctx, n); err != nil {
		d.logger.Error("failed to send notification",
			zap.Int64("user_id", n.UserID),
			zap.String("title", n.Title),
			zap.Error(err))
		return
	}

	if d.history != nil {
		if err := d.history.Save(ctx, n); err != nil {
			d.logger.Error("failed to save notification history",
				zap.Int64("user_id", n.UserID),
				zap.Error(err))
		}
	}
}
