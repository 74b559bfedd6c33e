package scaler

import (
	"context"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

func rgbFrame(t *testing.T, width, height int, value byte) *astiav.Frame {
	frame, err := AllocVideoFrame(width, height, astiav.PixelFormatRgb24)
	require.NoError(t, err)
	buf := make([]byte, width*height*3)
	for i := range buf {
		buf[i] = value
	}
	require.NoError(t, FillFromBuffer(frame, buf))
	return frame
}

func TestKeyIdentity(t *testing.T) {
	k := Key{
		SourceWidth: 4, SourceHeight: 2, SourcePixelFormat: astiav.PixelFormatRgb24,
		DestinationWidth: 4, DestinationHeight: 2, DestinationPixelFormat: astiav.PixelFormatRgb24,
	}
	require.True(t, k.IsIdentity())
	k.DestinationPixelFormat = astiav.PixelFormatYuv420P
	require.False(t, k.IsIdentity())
	k.DestinationPixelFormat = astiav.PixelFormatRgb24
	k.DestinationWidth = 8
	require.False(t, k.IsIdentity())
}

func TestScalerReusesContext(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	src := rgbFrame(t, 16, 16, 0x80)
	defer src.Free()
	require.False(t, NeedsConversion(src, astiav.PixelFormatRgb24, 16, 16))
	require.True(t, NeedsConversion(src, astiav.PixelFormatYuv420P, 16, 16))

	for i := 0; i < 3; i++ {
		dst, err := s.Convert(ctx, src, astiav.PixelFormatYuv420P, 16, 16)
		require.NoError(t, err)
		require.Equal(t, astiav.PixelFormatYuv420P, dst.PixelFormat())
	}
	require.Equal(t, uint64(1), s.Recreations())

	// a resolution change invalidates the context
	bigger := rgbFrame(t, 32, 16, 0x80)
	defer bigger.Free()
	dst, err := s.Convert(ctx, bigger, astiav.PixelFormatYuv420P, 32, 16)
	require.NoError(t, err)
	require.Equal(t, 32, dst.Width())
	require.Equal(t, uint64(2), s.Recreations())
	require.Equal(t, 32, s.Key().SourceWidth)
}

func TestScalerRoundTripGray(t *testing.T) {
	ctx := context.Background()
	toYUV := New()
	defer toYUV.Close()
	toRGB := New()
	defer toRGB.Close()

	src := rgbFrame(t, 8, 8, 0x80)
	defer src.Free()

	yuv, err := toYUV.Convert(ctx, src, astiav.PixelFormatYuv444P, 8, 8)
	require.NoError(t, err)
	rgb, err := toRGB.Convert(ctx, yuv, astiav.PixelFormatRgb24, 8, 8)
	require.NoError(t, err)

	buf := make([]byte, 8*8*3)
	require.NoError(t, CopyToBuffer(rgb, buf))
	for _, v := range buf {
		require.InDelta(t, 0x80, int(v), 3)
	}
}

func TestCopyToBufferSizeMismatch(t *testing.T) {
	src := rgbFrame(t, 4, 4, 1)
	defer src.Free()

	err := CopyToBuffer(src, make([]byte, 10))
	var sizeErr types.ErrSizeMismatch
	require.ErrorAs(t, err, &sizeErr)
	require.Equal(t, 4*4*3, sizeErr.Expected)
	require.Equal(t, 10, sizeErr.Actual)
}
