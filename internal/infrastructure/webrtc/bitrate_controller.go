package webrtc

import (
	"peercam/internal/infrastructure/monitoring"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// bitrateController pushes the configured receive bitrate to remote
// senders (REMB) and issues keyframe requests (PLI) on behalf of the
// renderer's refresh loop.
type bitrateController struct {
	bitrateKbps int
	collector   *monitoring.Collector
	log         *zap.SugaredLogger
}

func newBitrateController(bitrateKbps int, collector *monitoring.Collector, log *zap.SugaredLogger) *bitrateController {
	return &bitrateController{
		bitrateKbps: bitrateKbps,
		collector:   collector,
		log:         log,
	}
}

// PushEstimate tells the remote sender of ssrc how much video bitrate
// this client wants. No-op when no bitrate was configured.
func (b *bitrateController) PushEstimate(pc *webrtc.PeerConnection, ssrc webrtc.SSRC) {
	if b.bitrateKbps <= 0 {
		return
	}
	remb := &rtcp.ReceiverEstimatedMaximumBitrate{
		Bitrate: float32(b.bitrateKbps) * 1000,
		SSRCs:   []uint32{uint32(ssrc)},
	}
	if err := pc.WriteRTCP([]rtcp.Packet{remb}); err != nil {
		b.log.Debugw("failed to push bitrate estimate", "ssrc", ssrc, "error", err)
	}
}

// RequestKeyframes sends a PLI for every remote video track on pc.
func (b *bitrateController) RequestKeyframes(pc *webrtc.PeerConnection) {
	for _, receiver := range pc.GetReceivers() {
		track := receiver.Track()
		if track == nil || track.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
		if err := pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
			b.log.Debugw("failed to request keyframe", "track_id", track.ID(), "error", err)
			continue
		}
		b.collector.RecordKeyframeRequest()
	}
}
