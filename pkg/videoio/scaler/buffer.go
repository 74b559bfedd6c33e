package scaler

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

const packedAlign = 1

// BufferSize returns the size of a tightly packed picture.
func BufferSize(frame *astiav.Frame) (int, error) {
	n, err := frame.ImageBufferSize(packedAlign)
	if err != nil {
		return 0, fmt.Errorf("unable to calculate the image buffer size for %dx%d %s: %w", frame.Width(), frame.Height(), frame.PixelFormat(), err)
	}
	return n, nil
}

// CopyToBuffer packs the picture of frame into dst, which must be exactly
// BufferSize(frame) long.
func CopyToBuffer(frame *astiav.Frame, dst []byte) error {
	n, err := BufferSize(frame)
	if err != nil {
		return err
	}
	if len(dst) != n {
		return types.ErrSizeMismatch{Expected: n, Actual: len(dst)}
	}
	if _, err := frame.ImageCopyToBuffer(dst, packedAlign); err != nil {
		return fmt.Errorf("unable to copy the image to the buffer: %w", err)
	}
	return nil
}

// FillFromBuffer copies a tightly packed picture into a writable frame.
func FillFromBuffer(frame *astiav.Frame, src []byte) error {
	n, err := BufferSize(frame)
	if err != nil {
		return err
	}
	if len(src) != n {
		return types.ErrSizeMismatch{Expected: n, Actual: len(src)}
	}
	if err := frame.MakeWritable(); err != nil {
		return fmt.Errorf("unable to make the frame writable: %w", err)
	}
	if err := frame.Data().SetBytes(src, packedAlign); err != nil {
		return fmt.Errorf("unable to copy the buffer into the frame: %w", err)
	}
	return nil
}

// AllocVideoFrame allocates a frame with its picture buffer.
func AllocVideoFrame(
	width, height int,
	pixelFormat astiav.PixelFormat,
) (*astiav.Frame, error) {
	frame := astiav.AllocFrame()
	frame.SetWidth(width)
	frame.SetHeight(height)
	frame.SetPixelFormat(pixelFormat)
	if err := frame.AllocBuffer(packedAlign); err != nil {
		frame.Free()
		return nil, fmt.Errorf("unable to allocate a %dx%d %s frame: %w", width, height, pixelFormat, err)
	}
	return frame, nil
}

// PackedSize is BufferSize for a picture layout without a frame at hand.
func PackedSize(
	width, height int,
	pixelFormat astiav.PixelFormat,
) (int, error) {
	frame := astiav.AllocFrame()
	defer frame.Free()
	frame.SetWidth(width)
	frame.SetHeight(height)
	frame.SetPixelFormat(pixelFormat)
	return BufferSize(frame)
}
