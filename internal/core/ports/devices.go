package ports

import (
	"context"

	"github.com/pion/webrtc/v3"
)

// DispatchHook schedules fn onto the reactor thread. It reports false
// when the reactor is stopping and the work was dropped instead.
type DispatchHook func(fn func()) bool

// Dispatcher is the scheduling surface of the reactor. Post queues fn
// for execution on the reactor goroutine and reports false once the
// reactor has been asked to stop. Context is cancelled on stop and
// scopes all backend I/O.
type Dispatcher interface {
	Post(fn func()) bool
	Stopped() bool
	Context() context.Context
}

// VideoSource is a capture device. Track is the local track sessions
// send from; Start pumps media into it until ctx is cancelled. The
// underlying device is opened at construction time.
type VideoSource interface {
	Track() webrtc.TrackLocal
	Start(ctx context.Context)
	Close() error
}

// Renderer is the optional display sink. HandleTrack is invoked by the
// connection manager for every remote track. The renderer runs its own
// refresh loop on a separate goroutine; any manager-touching work from
// that loop must go through the dispatch hook handed to Start.
type Renderer interface {
	HandleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	Start(hook DispatchHook, mgr ManagerHandle)
	ClearDispatchHook()
	Close() error
}

// DataBridge shuttles bytes between a local serial device and the
// session data channels. SetSink installs the serial-to-network
// direction; Write carries the opposite one. The device is opened at
// construction time.
type DataBridge interface {
	SetSink(sink func(data []byte))
	Write(data []byte) error
	Close() error
}
