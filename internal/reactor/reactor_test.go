package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostExecutesOnReactorGoroutine(t *testing.T) {
	r := New(nil)

	var ran atomic.Bool
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()

	ok := r.Post(func() {
		ran.Store(true)
		r.Stop()
	})
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not stop")
	}
	assert.True(t, ran.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	r := New(nil)
	r.Stop()
	r.Stop()
	r.Stop()

	// Run on an already-stopped reactor returns immediately.
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestPostAfterStopIsDropped(t *testing.T) {
	r := New(nil)
	r.Stop()

	ok := r.Post(func() { t.Error("dropped task must not run") })
	assert.False(t, ok)
	assert.True(t, r.Stopped())
	assert.Equal(t, uint64(1), r.Dropped())
}

func TestNoCallbackRunsAfterRunReturns(t *testing.T) {
	r := New(nil)

	var executed atomic.Int64
	done := make(chan struct{})
	go func() {
		r.Run()
		close(done)
	}()

	// First task stops the reactor; anything queued behind it must be
	// discarded, not executed.
	r.Post(func() {
		executed.Add(1)
		r.Stop()
	})
	for i := 0; i < 10; i++ {
		r.Post(func() { executed.Add(1) })
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reactor did not stop")
	}

	after := executed.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, executed.Load())
	assert.Equal(t, int64(1), after)
}

func TestContextCancelledOnStop(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Context().Err())
	r.Stop()
	assert.Error(t, r.Context().Err())
}
