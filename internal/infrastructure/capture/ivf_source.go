package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"peercam/pkg/config"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"go.uber.org/zap"
)

// IVFSource plays a prerecorded IVF file into a sample track, looping
// at end of file. The file's codec must match the configured one: the
// media engine only offers the configured codec, so a mismatched file
// could never be decoded by the remote side.
type IVFSource struct {
	path      string
	file      *os.File
	reader    *ivfreader.IVFReader
	track     *webrtc.TrackLocalStaticSample
	frameTime time.Duration
	log       *zap.SugaredLogger
}

func NewIVFSource(path, codec string, framerate int, size config.VideoSize, log *zap.SugaredLogger) (*IVFSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read IVF header of %s: %w", path, err)
	}

	fileCodec, ok := map[string]string{"VP80": "VP8", "VP90": "VP9"}[header.FourCC]
	if !ok {
		file.Close()
		return nil, fmt.Errorf("unsupported IVF FourCC %q in %s", header.FourCC, path)
	}
	if fileCodec != codec {
		file.Close()
		return nil, fmt.Errorf("capture file %s contains %s but %s is configured", path, fileCodec, codec)
	}

	// A resolution mismatch is not fatal: the file's frames are what
	// actually go on the wire, so only warn.
	if int(header.Width) != size.Width || int(header.Height) != size.Height {
		log.Warnw("capture file resolution differs from the requested one",
			"path", path,
			"file_width", header.Width,
			"file_height", header.Height,
			"requested_width", size.Width,
			"requested_height", size.Height,
		)
	}

	mimeType := webrtc.MimeTypeVP8
	if codec == "VP9" {
		mimeType = webrtc.MimeTypeVP9
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType, ClockRate: 90000},
		"video", "peercam-capture",
	)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create capture track: %w", err)
	}

	return &IVFSource{
		path:      path,
		file:      file,
		reader:    reader,
		track:     track,
		frameTime: time.Second / time.Duration(framerate),
		log:       log,
	}, nil
}

func (s *IVFSource) Track() webrtc.TrackLocal {
	return s.track
}

// Start pumps frames at the configured rate until ctx is cancelled.
func (s *IVFSource) Start(ctx context.Context) {
	ticker := time.NewTicker(s.frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, _, err := s.reader.ParseNextFrame()
			if err == io.EOF {
				if err := s.rewind(); err != nil {
					s.log.Warnw("failed to rewind capture file", "path", s.path, "error", err)
					return
				}
				continue
			}
			if err != nil {
				s.log.Warnw("failed to read capture frame", "path", s.path, "error", err)
				return
			}
			if err := s.track.WriteSample(media.Sample{Data: frame, Duration: s.frameTime}); err != nil {
				s.log.Debugw("failed to write capture sample", "error", err)
			}
		}
	}
}

func (s *IVFSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := ivfreader.NewWith(s.file)
	if err != nil {
		return err
	}
	s.reader = reader
	return nil
}

func (s *IVFSource) Close() error {
	return s.file.Close()
}
