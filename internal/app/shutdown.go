package app

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// RunState tracks where the process is in its lifecycle.
type RunState int32

const (
	StateRunning RunState = iota
	StateStopRequested
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopRequested:
		return "stop-requested"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stopper is the one thing a delivered signal is allowed to touch.
type Stopper interface {
	Stop()
}

// ShutdownCoordinator turns SIGINT/SIGTERM into a single reactor stop.
// The handler only requests the stop; all teardown happens on the main
// goroutine after the reactor drains. Repeated signals are ignored.
type ShutdownCoordinator struct {
	stopper Stopper
	state   atomic.Int32
	sigCh   chan os.Signal
	logger  *zap.SugaredLogger
}

func NewShutdownCoordinator(stopper Stopper, logger *zap.SugaredLogger) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		stopper: stopper,
		sigCh:   make(chan os.Signal, 1),
		logger:  logger,
	}
}

// Install registers the signal handler.
func (c *ShutdownCoordinator) Install() {
	signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range c.sigCh {
			c.logger.Infow("received shutdown signal", "signal", sig.String())
			c.RequestStop()
		}
	}()
}

// RequestStop moves Running to StopRequested and stops the reactor.
// Idempotent: later calls, including signal redelivery, do nothing.
func (c *ShutdownCoordinator) RequestStop() {
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateStopRequested)) {
		c.stopper.Stop()
	}
}

// MarkStopped records that the reactor has drained.
func (c *ShutdownCoordinator) MarkStopped() {
	c.state.Store(int32(StateStopped))
}

func (c *ShutdownCoordinator) State() RunState {
	return RunState(c.state.Load())
}

// Uninstall detaches the signal handler.
func (c *ShutdownCoordinator) Uninstall() {
	signal.Stop(c.sigCh)
}
