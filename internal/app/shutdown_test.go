package app

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingStopper struct {
	calls atomic.Int32
}

func (s *countingStopper) Stop() {
	s.calls.Add(1)
}

func TestShutdownCoordinator_StopRequestedOnce(t *testing.T) {
	stopper := &countingStopper{}
	c := NewShutdownCoordinator(stopper, testLogger())

	assert.Equal(t, StateRunning, c.State())

	c.RequestStop()
	assert.Equal(t, StateStopRequested, c.State())
	assert.Equal(t, int32(1), stopper.calls.Load())

	// Redelivered signals are ignored.
	c.RequestStop()
	c.RequestStop()
	assert.Equal(t, int32(1), stopper.calls.Load())
}

func TestShutdownCoordinator_MarkStopped(t *testing.T) {
	stopper := &countingStopper{}
	c := NewShutdownCoordinator(stopper, testLogger())

	c.RequestStop()
	c.MarkStopped()
	assert.Equal(t, StateStopped, c.State())

	// A signal after the reactor drained must not stop anything again.
	c.RequestStop()
	assert.Equal(t, int32(1), stopper.calls.Load())
}

func TestRunState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stop-requested", StateStopRequested.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
