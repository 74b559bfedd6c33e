package probe_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/videoio/internal/testvideo"
	"github.com/xaionaro-go/videoio/pkg/videoio/probe"
	"github.com/xaionaro-go/videoio/pkg/videoio/streamadapter"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

func probeFile(t *testing.T, path string, cfg probe.Config) (*probe.Result, error) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	adapter, err := streamadapter.NewReader(f, 0)
	require.NoError(t, err)
	return probe.Probe(context.Background(), adapter, cfg)
}

func TestProbe(t *testing.T) {
	r, err := probeFile(t, testvideo.Write(t, 4), probe.Config{})
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.Streams, 1)
	video := r.Video()
	require.True(t, video.IsVideo())
	require.Equal(t, "rawvideo", video.CodecName)
	require.Equal(t, testvideo.Width, video.Width)
	require.Equal(t, testvideo.Height, video.Height)
	require.Equal(t, astiav.PixelFormatRgb24, video.PixelFormat)
	require.Equal(t, testvideo.FrameRate, video.FrameRate.Num()/video.FrameRate.Den())
	require.Equal(t, 0, r.VideoStream.Index())
}

func TestScanPackets(t *testing.T) {
	r, err := probeFile(t, testvideo.Write(t, 7), probe.Config{})
	require.NoError(t, err)
	defer r.Close()

	scan, err := probe.ScanPackets(context.Background(), r.FormatContext, r.VideoStream.Index())
	require.NoError(t, err)
	require.Equal(t, int64(7), scan.Packets)
	require.Equal(t, int64(7), scan.KeyFrames)
	require.Equal(t, 240*time.Millisecond, types.ToDuration(scan.LastTimestamp-scan.FirstTimestamp, r.Video().TimeBase))
	require.GreaterOrEqual(t, scan.Span(), scan.LastTimestamp-scan.FirstTimestamp)

	// nothing left to read
	scan, err = probe.ScanPackets(context.Background(), r.FormatContext, r.VideoStream.Index())
	require.NoError(t, err)
	require.Zero(t, scan.Packets)
	require.Zero(t, scan.Span())
}

func TestProbeNoSuchStream(t *testing.T) {
	idx := 5
	_, err := probeFile(t, testvideo.Write(t, 1), probe.Config{StreamIndex: &idx})
	var streamErr types.ErrNoVideoStream
	require.ErrorAs(t, err, &streamErr)
	require.Equal(t, 5, streamErr.RequestedIndex)
}

func TestProbeUnknownFormat(t *testing.T) {
	_, err := probeFile(t, testvideo.Write(t, 1), probe.Config{FormatName: "no-such-format"})
	var formatErr types.ErrUnsupportedFormat
	require.ErrorAs(t, err, &formatErr)
	require.Equal(t, "no-such-format", formatErr.FormatName)
}

func TestProbeUnconsumedOption(t *testing.T) {
	_, err := probeFile(t, testvideo.Write(t, 1), probe.Config{
		Options: types.DictionaryItems{{Key: "no_such_option", Value: "1"}},
	})
	var optErr types.ErrInvalidOption
	require.ErrorAs(t, err, &optErr)
	require.Equal(t, "no_such_option", optErr.Key)
}

func TestProbeGarbage(t *testing.T) {
	adapter, err := streamadapter.NewReader(bytes.NewReader([]byte{0x00, 0x01, 0x02}), 0)
	require.NoError(t, err)
	_, err = probe.Probe(context.Background(), adapter, probe.Config{})
	require.Error(t, err)
}

func TestProbeURLEmpty(t *testing.T) {
	_, err := probe.ProbeURL(context.Background(), "", probe.Config{})
	require.Error(t, err)
}
