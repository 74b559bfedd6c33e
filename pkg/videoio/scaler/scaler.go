package scaler

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
)

// Key identifies a conversion; a scaling context is valid only for one Key.
type Key struct {
	SourceWidth       int
	SourceHeight      int
	SourcePixelFormat astiav.PixelFormat

	DestinationWidth       int
	DestinationHeight      int
	DestinationPixelFormat astiav.PixelFormat
}

func (k Key) String() string {
	return fmt.Sprintf(
		"%dx%d %s -> %dx%d %s",
		k.SourceWidth, k.SourceHeight, k.SourcePixelFormat,
		k.DestinationWidth, k.DestinationHeight, k.DestinationPixelFormat,
	)
}

func (k Key) IsIdentity() bool {
	return k.SourceWidth == k.DestinationWidth &&
		k.SourceHeight == k.DestinationHeight &&
		k.SourcePixelFormat == k.DestinationPixelFormat
}

func KeyFor(
	src *astiav.Frame,
	dstPixelFormat astiav.PixelFormat,
	dstWidth, dstHeight int,
) Key {
	return Key{
		SourceWidth:            src.Width(),
		SourceHeight:           src.Height(),
		SourcePixelFormat:      src.PixelFormat(),
		DestinationWidth:       dstWidth,
		DestinationHeight:      dstHeight,
		DestinationPixelFormat: dstPixelFormat,
	}
}

// NeedsConversion reports if src differs from the requested layout.
func NeedsConversion(
	src *astiav.Frame,
	dstPixelFormat astiav.PixelFormat,
	dstWidth, dstHeight int,
) bool {
	return !KeyFor(src, dstPixelFormat, dstWidth, dstHeight).IsIdentity()
}

// Scaler caches one software scaling context and its destination frame.
//
// Not safe for concurrent use.
type Scaler struct {
	Flags astiav.SoftwareScaleContextFlags

	key          Key
	scaleContext *astiav.SoftwareScaleContext
	destination  *astiav.Frame
	recreations  uint64
}

func New() *Scaler {
	return &Scaler{
		Flags: astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	}
}

func (s *Scaler) Key() Key {
	return s.key
}

// Recreations is how many times a scaling context had to be (re)built.
func (s *Scaler) Recreations() uint64 {
	return s.recreations
}

// Convert scales src into a frame owned by the Scaler; the result is valid
// until the next Convert or Close.
func (s *Scaler) Convert(
	ctx context.Context,
	src *astiav.Frame,
	dstPixelFormat astiav.PixelFormat,
	dstWidth, dstHeight int,
) (*astiav.Frame, error) {
	key := KeyFor(src, dstPixelFormat, dstWidth, dstHeight)
	if err := s.ensure(ctx, key); err != nil {
		return nil, err
	}

	// an encoder may still reference the previous picture
	if err := s.destination.MakeWritable(); err != nil {
		return nil, fmt.Errorf("unable to make the destination frame writable: %w", err)
	}
	if err := s.scaleContext.ScaleFrame(src, s.destination); err != nil {
		return nil, fmt.Errorf("unable to scale %s: %w", key, err)
	}
	s.destination.SetPts(src.Pts())
	return s.destination, nil
}

func (s *Scaler) ensure(
	ctx context.Context,
	key Key,
) (_err error) {
	if s.scaleContext != nil && s.key == key {
		return nil
	}
	if s.scaleContext != nil {
		logger.Debugf(ctx, "the conversion changed from %s to %s, re-creating the scaling context", s.key, key)
	}
	s.free()

	if key.SourceWidth <= 0 || key.SourceHeight <= 0 || key.DestinationWidth <= 0 || key.DestinationHeight <= 0 {
		return fmt.Errorf("invalid conversion %s", key)
	}

	scaleContext, err := astiav.CreateSoftwareScaleContext(
		key.SourceWidth, key.SourceHeight, key.SourcePixelFormat,
		key.DestinationWidth, key.DestinationHeight, key.DestinationPixelFormat,
		s.Flags,
	)
	if err != nil {
		return fmt.Errorf("unable to create a scaling context for %s: %w", key, err)
	}
	defer func() {
		if _err != nil {
			scaleContext.Free()
		}
	}()

	destination := astiav.AllocFrame()
	destination.SetWidth(key.DestinationWidth)
	destination.SetHeight(key.DestinationHeight)
	destination.SetPixelFormat(key.DestinationPixelFormat)
	if err := destination.AllocBuffer(1); err != nil {
		destination.Free()
		return fmt.Errorf("unable to allocate the destination frame buffer: %w", err)
	}

	s.scaleContext = scaleContext
	s.destination = destination
	s.key = key
	s.recreations++
	logger.Tracef(ctx, "scaling context ready: %s", key)
	return nil
}

func (s *Scaler) free() {
	if s.destination != nil {
		s.destination.Free()
		s.destination = nil
	}
	if s.scaleContext != nil {
		s.scaleContext.Free()
		s.scaleContext = nil
	}
	s.key = Key{}
}

func (s *Scaler) Close() error {
	s.free()
	return nil
}
