package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/videoio"
	"github.com/xaionaro-go/videoio/pkg/videoio/encoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

const (
	sampleWidth  = 16
	sampleHeight = 8
	sampleFrames = 5
)

func writeSample(t *testing.T) string {
	ctx := context.Background()
	r, err := videoio.Init(ctx, videoio.Config{})
	require.NoError(t, err)
	defer r.Close()

	var frames []*types.Frame
	for idx := 0; idx < sampleFrames; idx++ {
		data := make([]byte, sampleWidth*sampleHeight*3)
		for i := range data {
			data[i] = byte(idx*7 + i)
		}
		frames = append(frames, &types.Frame{
			Data:        data,
			Width:       sampleWidth,
			Height:      sampleHeight,
			PixelFormat: astiav.PixelFormatRgb24,
		})
	}

	path := filepath.Join(t.TempDir(), "sample.nut")
	require.NoError(t, r.Save(ctx, path, frames, encoder.Config{CodecName: "rawvideo"}))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	cfgPath := filepath.Join(t.TempDir(), "videoio.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_consecutive_errors: 3\n"), 0644))

	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetErr(&out)
	Root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := Root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProbeAndCount(t *testing.T) {
	sample := writeSample(t)

	out, err := run(t, "probe", sample)
	require.NoError(t, err)
	require.Contains(t, out, "rawvideo")
	require.Contains(t, out, "16x8")

	out, err = run(t, "count", sample)
	require.NoError(t, err)
	require.Contains(t, out, "frames: 5\n")
}

func TestMissingConfig(t *testing.T) {
	sample := writeSample(t)
	// an explicitly requested config must exist
	Root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "count", sample})
	require.Error(t, Root.ExecuteContext(context.Background()))
}

func TestFrames(t *testing.T) {
	sample := writeSample(t)
	outDir := filepath.Join(t.TempDir(), "frames")

	out, err := run(t, "frames", "--limit", "3", "--skip", "1", sample, outDir)
	require.NoError(t, err)
	require.Contains(t, out, "wrote 3 frames")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "frame_000000.png", entries[0].Name())
}

func TestTranscode(t *testing.T) {
	sample := writeSample(t)
	output := filepath.Join(t.TempDir(), "out.nut")

	out, err := run(t, "transcode", "--codec", "rawvideo", sample, output)
	require.NoError(t, err)
	require.Contains(t, out, "encoded 5 frames with rawvideo")

	out, err = run(t, "count", output)
	require.NoError(t, err)
	require.Contains(t, out, "frames: 5\n")
}

func TestGenerateConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "videoio.yaml")
	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"--config", cfgPath, "generate-config"})
	require.NoError(t, Root.ExecuteContext(context.Background()))

	var cfg videoio.Config
	require.NoError(t, videoio.ReadConfigFromPath(cfgPath, &cfg))
	require.Equal(t, "rgb24", cfg.OutputPixelFormat)

	Root.SetArgs([]string{"--config", cfgPath, "generate-config"})
	require.Error(t, Root.ExecuteContext(context.Background()))
}

func TestParseHelpers(t *testing.T) {
	d, err := parseSeek("1m30s")
	require.NoError(t, err)
	require.Equal(t, "1m30s", d.String())
	d, err = parseSeek("2.5")
	require.NoError(t, err)
	require.Equal(t, "2.5s", d.String())
	_, err = parseSeek("soon")
	require.Error(t, err)

	b, err := parseBitRate("2M")
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), b)

	var opts optionsFlag
	require.NoError(t, opts.Set("video_size=640x480"))
	require.Error(t, opts.Set("novalue"))
	require.Equal(t, "video_size=640x480", opts.String())
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "version: ")
}
