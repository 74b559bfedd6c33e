// Package device enumerates the video capture devices of the host.
package device

import (
	"context"
	"errors"
)

var ErrNoDevice = errors.New("no video capture device found")

type Enumerator interface {
	// Devices lists the names to pass to the capture input format.
	Devices(ctx context.Context) ([]string, error)

	// DefaultInputFormat is the libav input format of the capture devices,
	// or an empty string if the platform has none.
	DefaultInputFormat() string

	DefaultDevice(ctx context.Context) (string, error)
}

// Default returns the Enumerator of the current platform.
func Default() Enumerator {
	return newPlatformEnumerator()
}

func firstDevice(ctx context.Context, e Enumerator) (string, error) {
	devices, err := e.Devices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	return devices[0], nil
}

type none struct{}

var _ Enumerator = none{}

func (none) Devices(context.Context) ([]string, error) {
	return nil, nil
}

func (none) DefaultInputFormat() string {
	return ""
}

func (none) DefaultDevice(context.Context) (string, error) {
	return "", ErrNoDevice
}
