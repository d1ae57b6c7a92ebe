// Package serial bridges a local serial device onto the session data
// channels: bytes read from the port are fanned out to connected peers
// and data channel messages are written back to the port.
package serial

import (
	"fmt"
	"io"
	"sync"

	"peercam/internal/core/ports"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

type Bridge struct {
	device string
	port   io.ReadWriteCloser
	rx     ports.Dispatcher

	mu   sync.Mutex
	sink func(data []byte)

	closeOnce sync.Once
	log       *zap.SugaredLogger
}

// NewBridge opens the device synchronously; a missing or busy port
// fails startup before any signaling backend is constructed.
func NewBridge(rx ports.Dispatcher, device string, baudRate int, log *zap.SugaredLogger) (*Bridge, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial device %s: %w", device, err)
	}

	log.Infow("serial bridge opened", "device", device, "baud_rate", baudRate)
	return newBridge(rx, device, port, log), nil
}

func newBridge(rx ports.Dispatcher, device string, port io.ReadWriteCloser, log *zap.SugaredLogger) *Bridge {
	b := &Bridge{
		device: device,
		port:   port,
		rx:     rx,
		log:    log,
	}
	go b.readLoop()
	return b
}

// SetSink installs the serial-to-network direction. The sink always
// runs on the reactor.
func (b *Bridge) SetSink(sink func(data []byte)) {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
}

// Write carries a data channel message to the serial device.
func (b *Bridge) Write(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.port.Write(data); err != nil {
		return fmt.Errorf("failed to write to serial device %s: %w", b.device, err)
	}
	return nil
}

func (b *Bridge) readLoop() {
	buf := make([]byte, 1024)
	for {
		n, err := b.port.Read(buf)
		if err != nil {
			if b.rx.Stopped() {
				return
			}
			b.log.Warnw("serial read failed", "device", b.device, "error", err)
			return
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		// Delivery happens on the reactor; a stopping reactor drops
		// the chunk instead of touching dead state.
		b.rx.Post(func() {
			b.mu.Lock()
			sink := b.sink
			b.mu.Unlock()
			if sink != nil {
				sink(data)
			}
		})
	}
}

func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.port.Close()
	})
	return err
}
