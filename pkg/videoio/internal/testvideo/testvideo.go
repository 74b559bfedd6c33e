// Package testvideo writes small lossless videos for tests.
package testvideo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/videoio/encoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/streamadapter"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

const (
	Width     = 16
	Height    = 8
	FrameRate = 25
)

// Pixels returns the rgb24 picture of the frame #idx.
func Pixels(idx, width, height int) []byte {
	data := make([]byte, width*height*3)
	for i := range data {
		data[i] = byte(idx*31 + i)
	}
	return data
}

func Frame(idx, width, height int) *types.Frame {
	return &types.Frame{
		Data:        Pixels(idx, width, height),
		Width:       width,
		Height:      height,
		PixelFormat: astiav.PixelFormatRgb24,
	}
}

// EncoderConfig is a rawvideo-in-nut configuration, which round-trips
// rgb24 bit-exactly.
func EncoderConfig(path string, width, height int) encoder.Config {
	return encoder.Config{
		FormatName: "nut",
		FileName:   path,
		CodecName:  "rawvideo",
		Width:      width,
		Height:     height,
		FrameRate:  astiav.NewRational(FrameRate, 1),
	}
}

// Write creates a video of frameCount frames (see Pixels) and returns its path.
func Write(t testing.TB, frameCount int) string {
	t.Helper()
	return WriteCodec(t, frameCount, "rawvideo")
}

// WriteCodec is Write with another (lossless) codec.
func WriteCodec(t testing.TB, frameCount int, codecName string) string {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "video.nut")
	f, err := os.Create(path)
	require.NoError(t, err)

	adapter, err := streamadapter.NewWriter(f, 0)
	require.NoError(t, err)

	cfg := EncoderConfig(path, Width, Height)
	cfg.CodecName = codecName
	enc, err := encoder.New(ctx, adapter, cfg)
	require.NoError(t, err)
	for idx := 0; idx < frameCount; idx++ {
		require.NoError(t, enc.Encode(ctx, Frame(idx, Width, Height)))
	}
	require.NoError(t, enc.Finish(ctx))
	return path
}
