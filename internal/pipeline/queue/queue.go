// SPDX-License-Identifier: MIT

// Package queue implements the bounded worker queue backing each
// pipeline stage: a fixed-capacity channel drained by N workers, with
// blocking cancel-aware submission and explicit drain semantics. After
// cancellation, queued items are not processed; they flow to the
// failure sink so every submitted item is accounted for exactly once.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
)

// ErrDrop is returned by a processor to mark an item as handled but
// terminal: it is not forwarded and not counted as a failure. Used for
// videos that are skipped rather than failed.
var ErrDrop = errors.New("item dropped")

// Processor handles one item and returns it (possibly enriched) for
// forwarding. A non-nil error routes the item to the failure sink.
type Processor[T any] func(ctx context.Context, item T) (T, error)

// Config assembles one stage queue.
type Config[T any] struct {
	// Name labels metrics and classified errors ("detect", "output").
	Name string
	// Workers is the concurrent processor count, minimum 1.
	Workers int
	// Capacity bounds the input channel; defaults to 2×Workers so each
	// worker has a follow-up item without unbounded buffering.
	Capacity int
	// Process handles one item. Required.
	Process Processor[T]
	// OnSuccess forwards a processed item, typically Submit on the next
	// stage. Runs on the worker goroutine; nil for the last stage.
	OnSuccess func(item T)
	// OnFailure receives every item that errored or was drained after
	// cancellation. Runs on the worker goroutine.
	OnFailure func(item T, err error)
}

// Stats is a point-in-time snapshot of queue accounting.
type Stats struct {
	Processed int64 // completed without error (includes dropped)
	Failed    int64 // routed to the failure sink
	InFlight  int64 // currently inside Process
	Depth     int   // items waiting in the channel
}

// Queue is one bounded stage. Create with New, then Start; submit
// until CloseInput; WaitDrained blocks until every submitted item has
// been processed or drained.
type Queue[T any] struct {
	name      string
	workers   int
	items     chan T
	process   Processor[T]
	onSuccess func(T)
	onFailure func(T, error)

	ctx context.Context

	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	processed atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

// New builds a queue from cfg. Process must be non-nil.
func New[T any](cfg Config[T]) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 2 * cfg.Workers
	}
	return &Queue[T]{
		name:      cfg.Name,
		workers:   cfg.Workers,
		items:     make(chan T, cfg.Capacity),
		process:   cfg.Process,
		onSuccess: cfg.OnSuccess,
		onFailure: cfg.OnFailure,
	}
}

// Start launches the workers. Idempotent.
func (q *Queue[T]) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		q.ctx = ctx
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// Submit enqueues one item, blocking while the queue is full. It
// returns a CANCELLED error when ctx fires first; the item was not
// accepted and the caller owns its accounting.
func (q *Queue[T]) Submit(ctx context.Context, item T) error {
	select {
	case <-ctx.Done():
		return errclass.Wrap(errclass.Cancelled, q.name, context.Cause(ctx))
	case q.items <- item:
		metrics.SetQueueDepth(q.name, len(q.items))
		return nil
	}
}

// CloseInput stops accepting new items. Idempotent. Submit after
// CloseInput panics, matching channel semantics; the scheduler closes
// stages strictly upstream-first.
func (q *Queue[T]) CloseInput() {
	q.closeOnce.Do(func() { close(q.items) })
}

// WaitDrained blocks until the input is closed and every accepted item
// has left the queue.
func (q *Queue[T]) WaitDrained() {
	q.wg.Wait()
}

// Stats returns a snapshot of queue accounting.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		InFlight:  q.inFlight.Load(),
		Depth:     len(q.items),
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for item := range q.items {
		metrics.SetQueueDepth(q.name, len(q.items))

		// After cancellation, queued items drain through the failure
		// sink instead of being processed.
		if q.ctx.Err() != nil {
			q.fail(item, errclass.Wrap(errclass.Cancelled, q.name, context.Cause(q.ctx)))
			continue
		}

		q.inFlight.Add(1)
		started := time.Now()
		out, err := q.process(q.ctx, item)
		metrics.ObserveStageDuration(q.name, time.Since(started).Seconds())
		q.inFlight.Add(-1)

		switch {
		case err == nil:
			q.processed.Add(1)
			metrics.IncStageProcessed(q.name, "success")
			if q.onSuccess != nil {
				q.onSuccess(out)
			}
		case errors.Is(err, ErrDrop):
			q.processed.Add(1)
			metrics.IncStageProcessed(q.name, "dropped")
		default:
			q.fail(item, err)
		}
	}
}

func (q *Queue[T]) fail(item T, err error) {
	q.failed.Add(1)
	metrics.IncStageProcessed(q.name, "failure")
	metrics.IncStageFailure(q.name, string(errclass.Classify(err)))
	if q.onFailure != nil {
		q.onFailure(item, err)
	}
}
