// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/ids"
	"go.uber.org/zap"

	"github.com/luxfi/onft"
)

var (
	_ Dispatcher = (*InlineDispatcher)(nil)
	_ Dispatcher = (*QueueDispatcher)(nil)
)

// Delivery is a sequenced message waiting to be handed to its destination.
type Delivery struct {
	ID       ids.ID
	Src      Endpoint
	Dst      Endpoint
	Envelope *onft.Envelope
	Options  onft.SendOptions
}

// DeliverFunc hands a delivery to the destination receiver. Implementations
// record failures themselves; the returned error is informational.
type DeliverFunc func(ctx context.Context, d *Delivery) error

// Dispatcher schedules deliveries. Dispatch is called in sequence order for
// every path and must preserve that order per destination.
type Dispatcher interface {
	// Dispatch schedules d. Synchronous dispatchers return the delivery error.
	Dispatch(ctx context.Context, d *Delivery) error
	// Pending returns the number of deliveries scheduled but not yet attempted
	Pending() int
	// Close stops the dispatcher. Undelivered messages are handed to the
	// deliver func with a canceled context.
	Close() error
}

// InlineDispatcher delivers on the caller's goroutine and surfaces the
// receiver's error to the sender.
type InlineDispatcher struct {
	deliver DeliverFunc
}

func NewInlineDispatcher(deliver DeliverFunc) *InlineDispatcher {
	return &InlineDispatcher{deliver: deliver}
}

func (i *InlineDispatcher) Dispatch(ctx context.Context, d *Delivery) error {
	return i.deliver(ctx, d)
}

func (*InlineDispatcher) Pending() int { return 0 }

func (*InlineDispatcher) Close() error { return nil }

// QueueDispatcher runs one FIFO worker per destination endpoint. Dispatch
// returns as soon as the delivery is queued; the outcome is only visible
// through the relay's receipts and dead letters.
type QueueDispatcher struct {
	logger  *zap.Logger
	deliver DeliverFunc
	delay   time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending atomic.Int64

	mu     sync.Mutex
	queues map[Endpoint]*queue
	closed bool
}

type queue struct {
	mu     sync.Mutex
	items  []*Delivery
	signal chan struct{}
}

func (q *queue) push(d *Delivery) {
	q.mu.Lock()
	q.items = append(q.items, d)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *queue) pop() *Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	d := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return d
}

// NewQueueDispatcher creates a queued dispatcher. Every delivery waits delay
// before it is attempted.
func NewQueueDispatcher(logger *zap.Logger, deliver DeliverFunc, delay time.Duration) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QueueDispatcher{
		logger:  logger,
		deliver: deliver,
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
		queues:  make(map[Endpoint]*queue),
	}
}

func (q *QueueDispatcher) Dispatch(ctx context.Context, d *Delivery) error {
	// Deliveries that can no longer be queued are handed over with a canceled
	// context so they end up as dead letters instead of vanishing.
	if ctx.Err() != nil {
		return q.deliver(ctx, d)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return q.deliver(q.ctx, d)
	}
	dst, ok := q.queues[d.Dst]
	if !ok {
		dst = &queue{signal: make(chan struct{}, 1)}
		q.queues[d.Dst] = dst
		q.wg.Add(1)
		go q.run(d.Dst, dst)
	}
	q.pending.Add(1)
	dst.push(d)
	q.mu.Unlock()
	return nil
}

func (q *QueueDispatcher) Pending() int {
	return int(q.pending.Load())
}

func (q *QueueDispatcher) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

func (q *QueueDispatcher) run(dst Endpoint, in *queue) {
	defer q.wg.Done()

	logger := q.logger.With(zap.Stringer("destination", dst))
	logger.Debug("Starting delivery queue.")
	for {
		select {
		case <-in.signal:
		case <-q.ctx.Done():
			q.drain(logger, in)
			return
		}

		for d := in.pop(); d != nil; d = in.pop() {
			if q.delay > 0 {
				select {
				case <-time.After(q.delay):
				case <-q.ctx.Done():
				}
			}
			// A canceled context makes the relay dead-letter the message.
			_ = q.deliver(q.ctx, d)
			q.pending.Add(-1)
		}
	}
}

func (q *QueueDispatcher) drain(logger *zap.Logger, in *queue) {
	n := 0
	for d := in.pop(); d != nil; d = in.pop() {
		_ = q.deliver(q.ctx, d)
		q.pending.Add(-1)
		n++
	}
	if n > 0 {
		logger.Warn("Delivery queue closed with undelivered messages.", zap.Int("count", n))
	}
}
