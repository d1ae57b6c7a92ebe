// Package reactor implements the single-threaded cooperative event loop
// that every signaling backend, the shutdown watcher and the renderer
// dispatch hook share. All connection-manager state is touched only from
// callbacks executed by Run, so none of it needs its own locking.
package reactor

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultQueueDepth = 256

// Reactor serializes callbacks onto a single goroutine. Post is safe
// from any goroutine; Stop is idempotent and cancels the reactor
// context, which in turn cancels all backend I/O.
type Reactor struct {
	tasks   chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Uint64

	log *zap.SugaredLogger
}

// New creates an idle reactor. Nothing runs until Run is called.
func New(log *zap.SugaredLogger) *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		tasks:  make(chan func(), defaultQueueDepth),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Context is cancelled when the reactor is asked to stop. Backends
// derive every listener and connection lifetime from it.
func (r *Reactor) Context() context.Context {
	return r.ctx
}

// Post queues fn for execution on the reactor goroutine. It reports
// false, without queuing, once Stop has been requested.
func (r *Reactor) Post(fn func()) bool {
	if r.ctx.Err() != nil {
		r.dropped.Add(1)
		return false
	}
	select {
	case r.tasks <- fn:
		return true
	case <-r.ctx.Done():
		r.dropped.Add(1)
		return false
	}
}

// Stopped reports whether Stop has been requested.
func (r *Reactor) Stopped() bool {
	return r.ctx.Err() != nil
}

// Stop requests the loop to stop. Pending tasks are discarded; no
// callback executes after Run returns. Safe to call repeatedly and
// from signal-handler context.
func (r *Reactor) Stop() {
	r.cancel()
}

// Dropped returns the number of tasks discarded because the reactor
// was already stopping.
func (r *Reactor) Dropped() uint64 {
	return r.dropped.Load()
}

// Run executes queued tasks until Stop is requested, then returns.
// It must be called from exactly one goroutine.
func (r *Reactor) Run() {
	for {
		select {
		case <-r.ctx.Done():
			if r.log != nil {
				r.log.Infow("reactor stopped", "dropped_dispatches", r.dropped.Load())
			}
			return
		case fn := <-r.tasks:
			// Re-check before executing: a stop request wins over
			// any task that was already queued.
			if r.ctx.Err() != nil {
				r.dropped.Add(1)
				continue
			}
			fn()
		}
	}
}
