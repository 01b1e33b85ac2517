// Package concurrency bounds how many model calls and tool calls may be in
// flight process-wide at once (SPEC_FULL.md §5 backpressure policy).
// Grounded on golang.org/x/sync/semaphore's weighted-admission pattern (see
// 88lin-divinesense's thumbnailSemaphore), generalized from one bounded
// resource class to the two the pipeline admits: model calls and tool
// calls, each behind its own semaphore and its own bounded wait queue.
package concurrency

import (
	"context"

	"golang.org/x/sync/semaphore"

	"wayfarer/internal/domain"
)

// Limiter admits callers into one of two bounded resource classes. A caller
// that cannot even enter the wait queue (queue already at MaxQueueDepth)
// fails immediately with domain.ErrOverloaded rather than piling up
// unbounded; a caller that enters the queue waits for a semaphore slot
// until one frees up or ctx is done.
type Limiter struct {
	modelSem   *semaphore.Weighted
	toolSem    *semaphore.Weighted
	modelQueue chan struct{}
	toolQueue  chan struct{}
}

// New builds a Limiter from the configured capacities. maxQueueDepth may be
// 0, meaning no waiting room: a caller that cannot acquire a slot
// immediately is overloaded rather than queued. Non-positive active-call
// capacities are clamped to 1 so a misconfigured limiter still admits one
// caller at a time instead of never admitting any (semaphore.NewWeighted
// with a zero capacity could never be acquired).
func New(maxActiveModelCalls, maxActiveToolCalls, maxQueueDepth int) *Limiter {
	maxActiveModelCalls = atLeastOne(maxActiveModelCalls)
	maxActiveToolCalls = atLeastOne(maxActiveToolCalls)
	if maxQueueDepth < 0 {
		maxQueueDepth = 0
	}

	return &Limiter{
		modelSem:   semaphore.NewWeighted(int64(maxActiveModelCalls)),
		toolSem:    semaphore.NewWeighted(int64(maxActiveToolCalls)),
		modelQueue: make(chan struct{}, maxQueueDepth),
		toolQueue:  make(chan struct{}, maxQueueDepth),
	}
}

func atLeastOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// AcquireModel admits one model call, returning a release func to call once
// the call completes.
func (l *Limiter) AcquireModel(ctx context.Context) (func(), error) {
	return acquire(ctx, l.modelSem, l.modelQueue)
}

// AcquireTool admits one tool call, returning a release func to call once
// the call completes.
func (l *Limiter) AcquireTool(ctx context.Context) (func(), error) {
	return acquire(ctx, l.toolSem, l.toolQueue)
}

// acquire admits one caller. It first tries a non-blocking semaphore
// acquire so an uncontended call never pays queueing overhead; only a
// caller that would otherwise have to wait enters the bounded queue, and
// only once there does it block on the semaphore.
func acquire(ctx context.Context, sem *semaphore.Weighted, queue chan struct{}) (func(), error) {
	if sem.TryAcquire(1) {
		return func() { sem.Release(1) }, nil
	}

	select {
	case queue <- struct{}{}:
	default:
		return nil, domain.NewError(domain.ErrOverloaded, "concurrency limiter queue is full", nil)
	}
	defer func() { <-queue }()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, domain.NewError(domain.ErrOverloaded, "concurrency limiter wait cancelled", err)
	}
	return func() { sem.Release(1) }, nil
}
