package types

import (
	"image"
	"image/color"
)

// RGB24 is an image.Image over packed 8-bit R,G,B triplets.
type RGB24 struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

var _ image.Image = (*RGB24)(nil)

func (p *RGB24) ColorModel() color.Model { return color.RGBAModel }
func (p *RGB24) Bounds() image.Rectangle { return p.Rect }

func (p *RGB24) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// BGRA is an image.Image over packed 8-bit B,G,R,A quadruplets.
type BGRA struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

var _ image.Image = (*BGRA)(nil)

func (p *BGRA) ColorModel() color.Model { return color.RGBAModel }
func (p *BGRA) Bounds() image.Rectangle { return p.Rect }

func (p *BGRA) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*4
	return color.RGBA{R: p.Pix[i+2], G: p.Pix[i+1], B: p.Pix[i], A: p.Pix[i+3]}
}
