package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/draftea/booking-system/shared/telemetry"
	"github.com/pkg/errors"
)

var (
	ErrPublisherQueueFull = errors.New("publisher queue is full")
	ErrPublisherClosed    = errors.New("publisher is closed")
)

var _ Publisher = (*AsyncPublisher)(nil)

type pendingBatch struct {
	ctx    context.Context
	events []*Event
}

// AsyncPublisher hands events to a bounded queue drained by background
// workers, so callers never wait on the broker.
type AsyncPublisher struct {
	mux     sync.RWMutex
	closed  bool
	queue   chan pendingBatch
	wg      sync.WaitGroup
	pending sync.WaitGroup
	next    Publisher
	logger  *slog.Logger
	options *asyncPublisherOptions
}

type asyncPublisherOptions struct {
	queueSize      int
	workers        int
	publishTimeout time.Duration
}

type AsyncPublisherOption func(*asyncPublisherOptions)

func WithQueueSize(size int) AsyncPublisherOption {
	return func(o *asyncPublisherOptions) {
		if size > 0 {
			o.queueSize = size
		}
	}
}

func WithPublishWorkers(workers int) AsyncPublisherOption {
	return func(o *asyncPublisherOptions) {
		if workers > 0 {
			o.workers = workers
		}
	}
}

func WithPublishTimeout(timeout time.Duration) AsyncPublisherOption {
	return func(o *asyncPublisherOptions) {
		if timeout > 0 {
			o.publishTimeout = timeout
		}
	}
}

// NewAsyncPublisher starts the workers immediately. Call Close to drain them.
func NewAsyncPublisher(next Publisher, logger *slog.Logger, opts ...AsyncPublisherOption) *AsyncPublisher {
	options := &asyncPublisherOptions{
		queueSize:      256,
		workers:        4,
		publishTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	p := &AsyncPublisher{
		queue:   make(chan pendingBatch, options.queueSize),
		next:    next,
		logger:  logger,
		options: options,
	}

	for i := 0; i < options.workers; i++ {
		p.wg.Add(1)
		go p.startWorker()
	}

	return p
}

// Publish enqueues the events and returns without waiting for delivery.
func (p *AsyncPublisher) Publish(ctx context.Context, evts ...*Event) error {
	if len(evts) == 0 {
		return nil
	}

	p.mux.RLock()
	defer p.mux.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	p.pending.Add(1)
	select {
	case p.queue <- pendingBatch{ctx: context.WithoutCancel(ctx), events: evts}:
		telemetry.RecordGauge(ctx, "event_publisher_queue_depth", "Event batches waiting for delivery", float64(len(p.queue)))
		return nil
	default:
		p.pending.Done()
		telemetry.RecordCounter(ctx, "event_publisher_dropped_total", "Event batches rejected by a full queue", 1)
		return ErrPublisherQueueFull
	}
}

// Flush waits until every enqueued batch has been handed to the broker.
// It must not run concurrently with Publish.
func (p *AsyncPublisher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (p *AsyncPublisher) Close() error {
	p.mux.Lock()
	if p.closed {
		p.mux.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mux.Unlock()

	p.wg.Wait()
	return nil
}

func (p *AsyncPublisher) startWorker() {
	defer p.wg.Done()

	for batch := range p.queue {
		p.deliver(batch)
	}
}

func (p *AsyncPublisher) deliver(batch pendingBatch) {
	defer p.pending.Done()

	ctx, cancel := context.WithTimeout(batch.ctx, p.options.publishTimeout)
	defer cancel()

	if err := p.next.Publish(ctx, batch.events...); err != nil {
		topics := make([]string, len(batch.events))
		for i, e := range batch.events {
			topics[i] = e.Topic.String()
		}
		p.logger.ErrorContext(ctx, "failed to publish events",
			"topics", topics,
			"error", err,
		)
	}
}
