package config

import (
	"fmt"
	"strconv"
	"strings"
)

// BackendKind identifies one of the signaling backends a run can drive.
type BackendKind string

const (
	BackendDirectPeer BackendKind = "direct-peer"
	BackendRelay      BackendKind = "relay"
	BackendRendezvous BackendKind = "rendezvous"
)

// VideoSize is a capture resolution in pixels.
type VideoSize struct {
	Width  int
	Height int
}

// Settings is the validated, immutable product of command-line parsing.
// Construction goes through Parse; nothing mutates a Settings afterwards.
type Settings struct {
	NoVideo      bool
	NoAudio      bool
	VideoCodec   string
	AudioCodec   string
	VideoBitrate int
	AudioBitrate int
	Resolution   string
	Framerate    int
	Priority     string
	Daemon       bool
	LogLevel     int
	Metadata     map[string]interface{}

	// Capture/render device selection. VideoDevice accepts an IVF file
	// path or an rtp://host:port listen address. RenderFile, when set,
	// enables the display sink and names the IVF file it writes.
	VideoDevice  string
	RenderFile   string
	SerialDevice string
	SerialRate   int

	ConfigPath string

	// direct-peer
	Port         int
	DocumentRoot string

	// broker
	SignalingHost string
	ChannelID     string
	AutoConnect   bool
	SignalingKey  string
	RelayPort     int

	Backends map[BackendKind]bool
}

// HasBackend reports whether the given backend is enabled for this run.
func (s *Settings) HasBackend(kind BackendKind) bool {
	return s.Backends[kind]
}

// BackendList returns the enabled backends in a stable order.
func (s *Settings) BackendList() []BackendKind {
	var out []BackendKind
	for _, kind := range []BackendKind{BackendDirectPeer, BackendRelay, BackendRendezvous} {
		if s.Backends[kind] {
			out = append(out, kind)
		}
	}
	return out
}

// WithExtraBackends returns a copy of the settings with additional
// backends enabled. The receiver is left untouched.
func (s *Settings) WithExtraBackends(kinds ...BackendKind) *Settings {
	out := *s
	out.Backends = make(map[BackendKind]bool, len(s.Backends)+len(kinds))
	for k, v := range s.Backends {
		out.Backends[k] = v
	}
	for _, k := range kinds {
		out.Backends[k] = true
	}
	return &out
}

// ValidateBackends enforces the legal backend combinations: at least one
// backend, and never both broker protocols in the same run.
func (s *Settings) ValidateBackends() error {
	if len(s.BackendList()) == 0 {
		return fmt.Errorf("at least one signaling backend must be selected")
	}
	if s.Backends[BackendRelay] && s.Backends[BackendRendezvous] {
		return fmt.Errorf("relay and rendezvous backends cannot run together")
	}
	return nil
}

// Size maps the resolution name onto pixel dimensions.
func (s *Settings) Size() VideoSize {
	switch s.Resolution {
	case "QVGA":
		return VideoSize{Width: 320, Height: 240}
	case "HD":
		return VideoSize{Width: 1280, Height: 720}
	case "FHD":
		return VideoSize{Width: 1920, Height: 1080}
	default:
		return VideoSize{Width: 640, Height: 480}
	}
}

// ParseSerialDevice splits a serial device spec of the form
// "path" or "path,baudrate". The default rate is 9600.
func ParseSerialDevice(spec string) (device string, rate int, err error) {
	rate = 9600
	if spec == "" {
		return "", rate, nil
	}
	parts := strings.SplitN(spec, ",", 2)
	device = parts[0]
	if len(parts) == 2 {
		rate, err = strconv.Atoi(parts[1])
		if err != nil || rate <= 0 {
			return "", 0, fmt.Errorf("invalid serial rate %q", parts[1])
		}
	}
	return device, rate, nil
}
