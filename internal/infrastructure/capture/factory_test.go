package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"peercam/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// writeIVFHeader writes an empty IVF container with the given FourCC.
func writeIVFHeader(t *testing.T, path, fourCC string) {
	t.Helper()

	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[6:8], 32) // header size
	copy(header[8:12], fourCC)
	binary.LittleEndian.PutUint16(header[12:14], 640)
	binary.LittleEndian.PutUint16(header[14:16], 480)
	binary.LittleEndian.PutUint32(header[16:20], 30) // timebase denominator
	binary.LittleEndian.PutUint32(header[20:24], 1)  // timebase numerator

	require.NoError(t, os.WriteFile(path, header, 0o644))
}

func buildSettings(device string) *config.Settings {
	return &config.Settings{
		VideoCodec:  "VP8",
		Framerate:   30,
		VideoDevice: device,
	}
}

func TestFactorySelectsIVFSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.ivf")
	writeIVFHeader(t, path, "VP80")

	f := NewFactory(buildSettings(path), config.DefaultConfig(), zap.NewNop().Sugar())
	src, err := f.Build()
	require.NoError(t, err)
	defer src.Close()

	assert.IsType(t, &IVFSource{}, src)
	assert.NotNil(t, src.Track())
}

func TestFactorySelectsRTPSource(t *testing.T) {
	f := NewFactory(buildSettings("rtp://127.0.0.1:0"), config.DefaultConfig(), zap.NewNop().Sugar())
	src, err := f.Build()
	require.NoError(t, err)
	defer src.Close()

	assert.IsType(t, &RTPSource{}, src)
}

func TestFactoryDefaultsToConfiguredDevice(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.VideoDevice = "rtp://127.0.0.1:0"

	f := NewFactory(buildSettings(""), cfg, zap.NewNop().Sugar())
	src, err := f.Build()
	require.NoError(t, err)
	defer src.Close()

	assert.IsType(t, &RTPSource{}, src)
}

func TestFactoryRejectsUnknownDevice(t *testing.T) {
	f := NewFactory(buildSettings("/dev/whatever"), config.DefaultConfig(), zap.NewNop().Sugar())
	_, err := f.Build()
	assert.Error(t, err)
}

func TestIVFSourceRejectsCodecMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.ivf")
	writeIVFHeader(t, path, "VP90")

	_, err := NewIVFSource(path, "VP8", 30, config.VideoSize{Width: 640, Height: 480}, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VP9")
}

func TestIVFSourceMissingFile(t *testing.T) {
	_, err := NewIVFSource("/nonexistent/clip.ivf", "VP8", 30, config.VideoSize{Width: 640, Height: 480}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestIVFSourceWarnsOnResolutionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.ivf")
	writeIVFHeader(t, path, "VP80") // 640x480

	core, logs := observer.New(zap.WarnLevel)
	src, err := NewIVFSource(path, "VP8", 30, config.VideoSize{Width: 1920, Height: 1080}, zap.New(core).Sugar())
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 1, logs.FilterMessage("capture file resolution differs from the requested one").Len())
}

func TestIVFSourceAcceptsMatchingResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.ivf")
	writeIVFHeader(t, path, "VP80")

	core, logs := observer.New(zap.WarnLevel)
	src, err := NewIVFSource(path, "VP8", 30, config.VideoSize{Width: 640, Height: 480}, zap.New(core).Sugar())
	require.NoError(t, err)
	defer src.Close()

	assert.Zero(t, logs.Len())
}
