// Package capture provides the video sources a session sends from. The
// concrete source is picked at composition time from the device string,
// so the orchestrator never branches on platform or transport details.
package capture

import (
	"fmt"
	"strings"

	"peercam/internal/core/ports"
	"peercam/pkg/config"

	"go.uber.org/zap"
)

// Factory selects and opens a video source for the run. Opening happens
// here, synchronously, so a broken device fails startup before any
// backend is constructed.
type Factory struct {
	settings *config.Settings
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewFactory(settings *config.Settings, cfg *config.Config, log *zap.SugaredLogger) *Factory {
	return &Factory{settings: settings, cfg: cfg, log: log}
}

// Build opens the configured source. The device string decides the
// implementation: an .ivf path plays a prerecorded file, an
// rtp://host:port or udp://host:port address ingests an RTP stream.
func (f *Factory) Build() (ports.VideoSource, error) {
	device := f.settings.VideoDevice
	if device == "" {
		device = f.cfg.Capture.VideoDevice
	}

	switch {
	case strings.HasSuffix(device, ".ivf"):
		return NewIVFSource(device, f.settings.VideoCodec, f.settings.Framerate, f.settings.Size(), f.log)
	case strings.HasPrefix(device, "rtp://"), strings.HasPrefix(device, "udp://"):
		return NewRTPSource(device, f.settings.VideoCodec, f.log)
	}
	return nil, fmt.Errorf("unrecognized video device %q", device)
}
