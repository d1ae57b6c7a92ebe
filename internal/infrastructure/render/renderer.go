// Package render implements the optional display sink: received video
// is written to an IVF file. The renderer drives its own refresh loop
// on a dedicated goroutine, which is the only thread in the whole
// client that is not the reactor; every manager access from that loop
// is marshalled through the dispatch hook, and dropped once the
// reactor is stopping.
package render

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"peercam/internal/core/ports"
	"peercam/internal/infrastructure/monitoring"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/ivfwriter"
	"go.uber.org/zap"
)

type Renderer struct {
	path      string
	writer    *ivfwriter.IVFWriter
	writerMu  sync.Mutex
	frameTime time.Duration

	hookMu sync.Mutex
	hook   ports.DispatchHook
	mgr    ports.ManagerHandle

	frames    atomic.Uint64
	stopOnce  sync.Once
	stop      chan struct{}
	collector *monitoring.Collector
	log       *zap.SugaredLogger
}

// New opens the output file immediately so an unwritable path fails
// startup. The refresh loop does not run until Start.
func New(path string, framerate int, collector *monitoring.Collector, log *zap.SugaredLogger) (*Renderer, error) {
	writer, err := ivfwriter.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open render sink %s: %w", path, err)
	}

	return &Renderer{
		path:      path,
		writer:    writer,
		frameTime: time.Second / time.Duration(framerate),
		stop:      make(chan struct{}),
		collector: collector,
		log:       log,
	}, nil
}

// HandleTrack consumes one remote track on its own goroutine. Only VP8
// payloads land in the IVF file; other codecs are drained so their
// feedback loops keep running.
func (r *Renderer) HandleTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	writable := track.Codec().MimeType == webrtc.MimeTypeVP8
	go func() {
		for {
			packet, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			r.frames.Add(1)
			r.collector.RecordVideoPacket()
			if !writable {
				continue
			}
			r.writerMu.Lock()
			writeErr := r.writer.WriteRTP(packet)
			r.writerMu.Unlock()
			if writeErr != nil {
				r.log.Debugw("failed to write render frame", "path", r.path, "error", writeErr)
			}
		}
	}()
}

// Start installs the dispatch hook and begins the refresh loop. When a
// tick passes with no new frame, the loop asks the manager, via the
// hook, to request a keyframe from the remote senders.
func (r *Renderer) Start(hook ports.DispatchHook, mgr ports.ManagerHandle) {
	r.hookMu.Lock()
	r.hook = hook
	r.mgr = mgr
	r.hookMu.Unlock()

	go r.refreshLoop()
}

func (r *Renderer) refreshLoop() {
	ticker := time.NewTicker(r.frameTime)
	defer ticker.Stop()

	var lastCount uint64
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			current := r.frames.Load()
			if current != lastCount {
				lastCount = current
				continue
			}

			r.hookMu.Lock()
			hook := r.hook
			r.hookMu.Unlock()
			if hook == nil {
				continue
			}
			if !hook(r.requestKeyframe) {
				r.collector.RecordDroppedDispatch()
			}
		}
	}
}

// requestKeyframe runs on the reactor. The handle acquisition fails,
// harmlessly, if teardown has already begun.
func (r *Renderer) requestKeyframe() {
	r.hookMu.Lock()
	handle := r.mgr
	r.hookMu.Unlock()
	if handle == nil {
		return
	}

	mgr, release, ok := handle.Acquire()
	if !ok {
		return
	}
	defer release()
	mgr.RequestKeyframes(context.Background())
}

// ClearDispatchHook detaches the refresh loop from the reactor. Called
// by the orchestrator right after the reactor stops, before release.
func (r *Renderer) ClearDispatchHook() {
	r.hookMu.Lock()
	r.hook = nil
	r.mgr = nil
	r.hookMu.Unlock()
}

// FramesReceived reports how many video packets have been consumed.
func (r *Renderer) FramesReceived() uint64 {
	return r.frames.Load()
}

func (r *Renderer) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })

	r.writerMu.Lock()
	defer r.writerMu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close render sink %s: %w", r.path, err)
	}
	return nil
}
