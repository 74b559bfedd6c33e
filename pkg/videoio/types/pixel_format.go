package types

import (
	"github.com/asticode/go-astiav"
)

// ParsePixelFormat resolves a libav pixel format name ("rgb24", "yuv420p",
// ...); an empty name yields def.
func ParsePixelFormat(name string, def astiav.PixelFormat) (astiav.PixelFormat, error) {
	if name == "" {
		return def, nil
	}
	pixFmt := astiav.FindPixelFormatByName(name)
	if pixFmt == astiav.PixelFormatNone {
		return astiav.PixelFormatNone, ErrInvalidOption{Key: "pixel_format", Value: name, Reason: "unknown pixel format"}
	}
	return pixFmt, nil
}
