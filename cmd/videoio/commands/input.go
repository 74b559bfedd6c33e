package commands

import (
	"context"

	"github.com/xaionaro-go/videoio/pkg/videoio"
	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
)

func (f *inputFlags) inputOptions(decoderCfg decoder.Config) videoio.InputOptions {
	opts := videoio.InputOptions{
		FormatName: f.FormatName,
		Options:    f.Options.Items(),
		Decoder:    decoderCfg,
	}
	if f.StreamIndex >= 0 {
		streamIndex := f.StreamIndex
		opts.StreamIndex = &streamIndex
	}
	return opts
}

func (f *inputFlags) open(
	ctx context.Context,
	location string,
	decoderCfg decoder.Config,
) (*decoder.Decoder, error) {
	if f.Camera {
		return videoRuntime.OpenCamera(ctx, location, f.inputOptions(decoderCfg))
	}
	return videoRuntime.OpenInput(ctx, location, f.inputOptions(decoderCfg))
}
