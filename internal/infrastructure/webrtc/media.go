package webrtc

import (
	"fmt"

	"peercam/internal/core/domain"
	"peercam/pkg/config"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// buildAPI assembles a pion API whose media engine offers exactly the
// codecs in the media profile, nothing more. The remote side therefore
// cannot negotiate a codec the capture pipeline does not produce.
func buildAPI(settings *config.Settings, profile domain.MediaProfile) (*webrtc.API, error) {
	engine := &webrtc.MediaEngine{}

	if !settings.NoVideo {
		video, err := videoCodecParameters(profile.VideoCodec)
		if err != nil {
			return nil, err
		}
		if err := engine.RegisterCodec(video, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("failed to register video codec: %w", err)
		}
	}

	if !settings.NoAudio {
		audio, err := audioCodecParameters(profile.AudioCodec)
		if err != nil {
			return nil, err
		}
		if err := engine.RegisterCodec(audio, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("failed to register audio codec: %w", err)
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(engine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(engine),
		webrtc.WithInterceptorRegistry(registry),
	), nil
}

func videoCodecParameters(codec string) (webrtc.RTPCodecParameters, error) {
	switch codec {
	case "VP8":
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			PayloadType:        96,
		}, nil
	case "VP9":
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000},
			PayloadType:        98,
		}, nil
	case "H264":
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeH264,
				ClockRate:   90000,
				SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
			},
			PayloadType: 102,
		}, nil
	}
	return webrtc.RTPCodecParameters{}, fmt.Errorf("unsupported video codec %q", codec)
}

func audioCodecParameters(codec string) (webrtc.RTPCodecParameters, error) {
	switch codec {
	case "OPUS":
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  webrtc.MimeTypeOpus,
				ClockRate: 48000,
				Channels:  2,
			},
			PayloadType: 111,
		}, nil
	case "PCMU":
		return webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: 8000},
			PayloadType:        0,
		}, nil
	}
	return webrtc.RTPCodecParameters{}, fmt.Errorf("unsupported audio codec %q", codec)
}
