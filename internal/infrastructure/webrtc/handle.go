package webrtc

import (
	"sync"

	"peercam/internal/core/ports"
)

// Handle is the non-owning accessor backends and the renderer dispatch
// hook use to reach the Manager. Acquire pins the manager for the
// duration of one callback; Close marks the handle invalid and blocks
// until every outstanding acquisition has released, which makes the
// orchestrator's release order provably safe: once Close returns, no
// callback can be touching the manager anymore.
type Handle struct {
	mu     sync.Mutex
	cond   *sync.Cond
	mgr    ports.ConnectionManager
	refs   int
	closed bool
}

func NewHandle(mgr ports.ConnectionManager) *Handle {
	h := &Handle{mgr: mgr}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Acquire returns the manager and a release func, or ok=false once the
// handle has been closed. Callers must invoke release exactly once.
func (h *Handle) Acquire() (ports.ConnectionManager, func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, nil, false
	}
	h.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			h.mu.Lock()
			h.refs--
			if h.refs == 0 {
				h.cond.Broadcast()
			}
			h.mu.Unlock()
		})
	}
	return h.mgr, release, true
}

// Close invalidates the handle and waits for in-flight acquisitions to
// drain. Idempotent.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for h.refs > 0 {
		h.cond.Wait()
	}
}
