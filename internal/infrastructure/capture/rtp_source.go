package capture

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// RTPSource ingests an RTP stream from a local UDP socket, for example
// one fed by a hardware encoder or a gstreamer pipeline, and forwards
// the packets into a local track unchanged.
type RTPSource struct {
	addr  string
	conn  *net.UDPConn
	track *webrtc.TrackLocalStaticRTP
	log   *zap.SugaredLogger
}

func NewRTPSource(device, codec string, log *zap.SugaredLogger) (*RTPSource, error) {
	addr := strings.TrimPrefix(strings.TrimPrefix(device, "rtp://"), "udp://")
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid capture address %q: %w", device, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind capture socket %s: %w", addr, err)
	}

	var mimeType string
	switch codec {
	case "VP8":
		mimeType = webrtc.MimeTypeVP8
	case "VP9":
		mimeType = webrtc.MimeTypeVP9
	case "H264":
		mimeType = webrtc.MimeTypeH264
	default:
		conn.Close()
		return nil, fmt.Errorf("unsupported capture codec %q", codec)
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mimeType, ClockRate: 90000},
		"video", "peercam-capture",
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create capture track: %w", err)
	}

	return &RTPSource{addr: addr, conn: conn, track: track, log: log}, nil
}

func (s *RTPSource) Track() webrtc.TrackLocal {
	return s.track
}

// Start reads packets until ctx is cancelled; cancellation closes the
// socket, which unblocks the read.
func (s *RTPSource) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 1500)
	packet := &rtp.Packet{}
	for {
		n, _, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warnw("capture socket read failed", "addr", s.addr, "error", err)
			}
			return
		}
		if err := packet.Unmarshal(buf[:n]); err != nil {
			s.log.Debugw("dropping malformed RTP packet", "error", err)
			continue
		}
		if err := s.track.WriteRTP(packet); err != nil {
			s.log.Debugw("failed to forward capture packet", "error", err)
		}
	}
}

func (s *RTPSource) Close() error {
	return s.conn.Close()
}
