package types

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDurationPlausible(t *testing.T) {
	assert.False(t, IsDurationPlausible(0, 0, 0))
	assert.False(t, IsDurationPlausible(-time.Second, 0, 0))
	assert.False(t, IsDurationPlausible(MaxPlausibleDuration+time.Second, 0, 0))
	assert.True(t, IsDurationPlausible(time.Minute, 0, 0))

	// 1 MB at 8 Mbit/s is one second; a one hour header is way off.
	assert.True(t, IsDurationPlausible(time.Second, 1_000_000, 8_000_000))
	assert.True(t, IsDurationPlausible(50*time.Second, 1_000_000, 8_000_000))
	assert.False(t, IsDurationPlausible(time.Hour, 1_000_000, 8_000_000))
}

func TestDurationConversions(t *testing.T) {
	tb := astiav.NewRational(1, 90000)
	require.Equal(t, int64(90000), FromDuration(time.Second, tb))
	require.Equal(t, time.Second, ToDuration(90000, tb))

	s := StreamInfo{TimeBase: astiav.NewRational(1, 25), StartTime: 10}
	require.Equal(t, int64(35), s.DurationToTimestamp(time.Second))
	require.Equal(t, time.Second, s.TimestampToDuration(35))

	s.StartTime = astiav.NoPtsValue
	require.Equal(t, int64(25), s.DurationToTimestamp(time.Second))
}

func TestEstimatedFrameCount(t *testing.T) {
	s := StreamInfo{
		FrameRate: astiav.NewRational(30000, 1001),
		Duration:  10 * time.Second,
	}
	require.Equal(t, int64(300), s.EstimatedFrameCount())

	s.FrameRate = astiav.NewRational(0, 1)
	require.Zero(t, s.EstimatedFrameCount())
}

func TestFrameImage(t *testing.T) {
	f := &Frame{
		Data:        []byte{1, 2, 3, 4, 5, 6},
		Width:       2,
		Height:      1,
		PixelFormat: astiav.PixelFormatRgb24,
	}
	img, err := f.Image()
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 4, G: 5, B: 6, A: 0xff}, img.At(1, 0))

	back := FrameFromImage(img)
	require.Equal(t, f.Data, back.Data)
	require.Equal(t, astiav.PixelFormatRgb24, back.PixelFormat)

	f.PixelFormat = astiav.PixelFormatYuv420P
	_, err = f.Image()
	require.ErrorAs(t, err, &ErrPixelFormatNotSupported{})
}

func TestFrameFromImagePacksStride(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	sub := rgba.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	sub.Set(2, 2, color.RGBA{R: 9, A: 0xff})

	f := FrameFromImage(sub)
	require.Equal(t, 2, f.Width)
	require.Equal(t, 2, f.Height)
	require.Len(t, f.Data, 2*2*4)
	require.Equal(t, byte(9), f.Data[(1*2+1)*4])
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", ErrDecode{ConsecutiveFailures: 11, Err: cause})

	var decodeErr ErrDecode
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, 11, decodeErr.ConsecutiveFailures)
	require.ErrorIs(t, err, cause)

	require.ErrorAs(t, fmt.Errorf("x: %w", ErrPipelineClosed{}), &ErrPipelineClosed{})
}

func TestDictionaryItems(t *testing.T) {
	items := DictionaryItems{{Key: "crf", Value: "23"}, {Key: "crf", Value: "18"}}
	v, ok := items.Get("crf")
	require.True(t, ok)
	require.Equal(t, "18", v)
	_, ok = items.Get("preset")
	require.False(t, ok)
	require.Equal(t, "crf=23,crf=18", items.String())
}

func TestParsePixelFormat(t *testing.T) {
	pixFmt, err := ParsePixelFormat("", DefaultPixelFormat)
	require.NoError(t, err)
	require.Equal(t, astiav.PixelFormatRgb24, pixFmt)

	pixFmt, err = ParsePixelFormat("yuv420p", DefaultPixelFormat)
	require.NoError(t, err)
	require.Equal(t, astiav.PixelFormatYuv420P, pixFmt)

	_, err = ParsePixelFormat("no-such-format", DefaultPixelFormat)
	var optErr ErrInvalidOption
	require.ErrorAs(t, err, &optErr)
	require.Equal(t, "pixel_format", optErr.Key)
}
