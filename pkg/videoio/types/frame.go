package types

import (
	"fmt"
	"image"
	"time"

	"github.com/asticode/go-astiav"
)

const DefaultPixelFormat = astiav.PixelFormatRgb24

// Frame is a decoded picture packed without line padding.
type Frame struct {
	Data        []byte
	Width       int
	Height      int
	PixelFormat astiav.PixelFormat
	PTS         int64
	TimeBase    astiav.Rational
	Position    time.Duration
	KeyFrame    bool
}

func (f *Frame) String() string {
	return fmt.Sprintf("%dx%d %s pts:%d pos:%v", f.Width, f.Height, f.PixelFormat, f.PTS, f.Position)
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Image wraps the frame buffer without copying it, so the result aliases
// Data.
func (f *Frame) Image() (image.Image, error) {
	rect := f.Bounds()
	switch f.PixelFormat {
	case astiav.PixelFormatRgba:
		return &image.RGBA{Pix: f.Data, Stride: 4 * f.Width, Rect: rect}, nil
	case astiav.PixelFormatGray8:
		return &image.Gray{Pix: f.Data, Stride: f.Width, Rect: rect}, nil
	case astiav.PixelFormatRgb24:
		return &RGB24{Pix: f.Data, Stride: 3 * f.Width, Rect: rect}, nil
	case astiav.PixelFormatBgra:
		return &BGRA{Pix: f.Data, Stride: 4 * f.Width, Rect: rect}, nil
	default:
		return nil, ErrPixelFormatNotSupported{PixelFormat: f.PixelFormat}
	}
}

// FrameFromImage packs an image into an RGBA (or GRAY8) frame.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	switch img := img.(type) {
	case *image.Gray:
		return &Frame{
			Data:        packRows(img.Pix, img.Stride, bounds.Dx(), bounds.Dy(), 1),
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			PixelFormat: astiav.PixelFormatGray8,
		}
	case *image.RGBA:
		return &Frame{
			Data:        packRows(img.Pix, img.Stride, bounds.Dx(), bounds.Dy(), 4),
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			PixelFormat: astiav.PixelFormatRgba,
		}
	case *RGB24:
		return &Frame{
			Data:        packRows(img.Pix, img.Stride, bounds.Dx(), bounds.Dy(), 3),
			Width:       bounds.Dx(),
			Height:      bounds.Dy(),
			PixelFormat: astiav.PixelFormatRgb24,
		}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			rgba.Set(x, y, img.At(bounds.Min.X+x, bounds.Min.Y+y))
		}
	}
	return &Frame{
		Data:        rgba.Pix,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		PixelFormat: astiav.PixelFormatRgba,
	}
}

func packRows(pix []byte, stride, width, height, bpp int) []byte {
	rowLen := width * bpp
	if stride == rowLen && len(pix) == rowLen*height {
		return pix
	}
	out := make([]byte, rowLen*height)
	for y := 0; y < height; y++ {
		copy(out[y*rowLen:(y+1)*rowLen], pix[y*stride:y*stride+rowLen])
	}
	return out
}

type ErrPixelFormatNotSupported struct {
	PixelFormat astiav.PixelFormat
}

func (e ErrPixelFormatNotSupported) Error() string {
	return fmt.Sprintf("support of pixel format %v is not implemented, yet", e.PixelFormat)
}
