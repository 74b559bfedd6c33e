// Package videoio opens video files, streams and capture devices for
// reading decoded frames, and files or writers for encoding frames.
package videoio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/videoio/pkg/astiavlogger"
	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/device"
	"github.com/xaionaro-go/videoio/pkg/videoio/encoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/probe"
	"github.com/xaionaro-go/videoio/pkg/videoio/streamadapter"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

// DefaultFrameRate is used by Save when the config has none.
var DefaultFrameRate = astiav.NewRational(25, 1)

// Runtime holds the process-wide defaults. Its methods may be called
// concurrently; the pipelines they return may not.
type Runtime struct {
	config     Config
	enumerator device.Enumerator
}

type InputOptions struct {
	// FormatName forces the input format.
	FormatName string
	Options    types.DictionaryItems

	// StreamIndex selects the video stream; nil means the first one.
	StreamIndex *int

	Decoder decoder.Config
}

// Init routes the libav log into the logger of ctx (at its level) and
// returns the Runtime to open inputs and outputs with.
func Init(
	ctx context.Context,
	cfg Config,
) (*Runtime, error) {
	logger.Debugf(ctx, "Init: %#+v", cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	astiavlogger.Install(ctx)

	enumerator := cfg.Enumerator
	if enumerator == nil {
		enumerator = device.Default()
	}
	return &Runtime{
		config:     cfg,
		enumerator: enumerator,
	}, nil
}

func (r *Runtime) Config() Config {
	return r.config
}

// Close restores the default libav logging.
func (r *Runtime) Close() error {
	astiavlogger.Uninstall()
	return nil
}

func (r *Runtime) decoderConfig(opts InputOptions) decoder.Config {
	cfg := opts.Decoder
	if cfg.OutputPixelFormat == "" {
		cfg.OutputPixelFormat = r.config.OutputPixelFormat
	}
	if cfg.MaxConsecutiveErrors == 0 {
		cfg.MaxConsecutiveErrors = r.config.MaxConsecutiveErrors
	}
	return cfg
}

func (opts InputOptions) probeConfig() probe.Config {
	return probe.Config{
		FormatName:  opts.FormatName,
		Options:     opts.Options,
		StreamIndex: opts.StreamIndex,
	}
}

// IsURL reports whether libav should open the location itself rather
// than reading it as a local file.
func IsURL(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	// single letter schemes are Windows drive letters
	return len(u.Scheme) > 1 && u.Scheme != "file"
}

func localPath(location string) string {
	if strings.HasPrefix(location, "file://") {
		return strings.TrimPrefix(location, "file://")
	}
	return location
}

// Probe opens a file path or a URL and reads its stream metadata without
// opening a decoder. The caller closes the result.
func (r *Runtime) Probe(
	ctx context.Context,
	location string,
	opts InputOptions,
) (*probe.Result, error) {
	if location == "" {
		return nil, types.ErrInvalidOption{Key: "location", Reason: "empty"}
	}

	if IsURL(location) {
		input, err := probe.ProbeURL(ctx, location, opts.probeConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to open '%s': %w", location, err)
		}
		return input, nil
	}

	f, err := os.Open(localPath(location))
	if err != nil {
		return nil, types.ErrIO{Op: "open", Err: err}
	}
	return r.probeReader(ctx, f, opts)
}

func (r *Runtime) probeReader(
	ctx context.Context,
	src io.Reader,
	opts InputOptions,
) (*probe.Result, error) {
	adapter, err := streamadapter.NewReader(src, r.config.BufferSize)
	if err != nil {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return probe.Probe(ctx, adapter, opts.probeConfig())
}

// OpenInput opens a file path or a URL (e.g. "rtsp://...") for decoding.
func (r *Runtime) OpenInput(
	ctx context.Context,
	location string,
	opts InputOptions,
) (_ret *decoder.Decoder, _err error) {
	logger.Debugf(ctx, "OpenInput: '%s'", location)
	defer func() { logger.Debugf(ctx, "/OpenInput: '%s': %v", location, _err) }()
	defer func() { r.countOpen(ctx, "videoio_inputs_opened", _err) }()

	input, err := r.Probe(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	return r.newDecoder(ctx, input, opts)
}

// OpenInputReader decodes the stream read from src. The decoder takes
// ownership of src: if it is an io.Closer, it is closed with the decoder.
func (r *Runtime) OpenInputReader(
	ctx context.Context,
	src io.Reader,
	opts InputOptions,
) (*decoder.Decoder, error) {
	input, err := r.probeReader(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	return r.newDecoder(ctx, input, opts)
}

func (r *Runtime) newDecoder(
	ctx context.Context,
	input *probe.Result,
	opts InputOptions,
) (*decoder.Decoder, error) {
	d, err := decoder.New(ctx, input, r.decoderConfig(opts))
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenCamera opens a capture device; an empty deviceName means the
// configured camera, or the first one found.
func (r *Runtime) OpenCamera(
	ctx context.Context,
	deviceName string,
	opts InputOptions,
) (_ret *decoder.Decoder, _err error) {
	logger.Debugf(ctx, "OpenCamera: '%s'", deviceName)
	defer func() { logger.Debugf(ctx, "/OpenCamera: '%s': %v", deviceName, _err) }()
	defer func() { r.countOpen(ctx, "videoio_cameras_opened", _err) }()

	formatName := opts.FormatName
	if formatName == "" {
		formatName = r.config.Camera.InputFormat
	}
	if formatName == "" {
		formatName = r.enumerator.DefaultInputFormat()
	}
	if formatName == "" {
		return nil, types.ErrUnsupportedFormat{Err: device.ErrNoDevice}
	}

	if deviceName == "" {
		deviceName = r.config.Camera.Device
	}
	if deviceName == "" {
		var err error
		deviceName, err = r.enumerator.DefaultDevice(ctx)
		if err != nil {
			return nil, err
		}
	}

	opts.FormatName = formatName
	opts.Options = append(append(types.DictionaryItems{}, r.config.Camera.Options...), opts.Options...)

	input, err := probe.ProbeURL(ctx, CaptureURL(formatName, deviceName), opts.probeConfig())
	if err != nil {
		return nil, fmt.Errorf("unable to open the camera '%s' (%s): %w", deviceName, formatName, err)
	}
	return r.newDecoder(ctx, input, opts)
}

// CaptureURL converts a device name into what the capture input format
// expects as the URL.
func CaptureURL(formatName, deviceName string) string {
	switch formatName {
	case "dshow":
		if !strings.Contains(deviceName, "=") {
			return "video=" + deviceName
		}
	}
	return deviceName
}

func (r *Runtime) encoderConfig(location string, cfg encoder.Config) encoder.Config {
	if cfg.FileName == "" {
		cfg.FileName = location
	}
	if cfg.FormatName == "" {
		cfg.FormatName = r.config.Output.FormatName
	}
	if cfg.CodecName == "" {
		cfg.CodecName = r.config.Output.CodecName
	}
	if cfg.BitRate == 0 {
		cfg.BitRate = r.config.Output.BitRate
	}
	if cfg.GOPSize == 0 {
		cfg.GOPSize = r.config.Output.GOPSize
	}
	if cfg.PixelFormat == "" {
		cfg.PixelFormat = r.config.Output.PixelFormat
	}
	return cfg
}

// EncoderConfigFor makes an encoder config that reproduces the picture
// size and rate of the given stream; the frames are expected in
// inputPixelFormat.
func EncoderConfigFor(
	info types.StreamInfo,
	inputPixelFormat astiav.PixelFormat,
) encoder.Config {
	frameRate := info.FrameRate
	if frameRate.Num() <= 0 || frameRate.Den() <= 0 {
		frameRate = DefaultFrameRate
	}
	return encoder.Config{
		Width:            info.Width,
		Height:           info.Height,
		FrameRate:        frameRate,
		InputPixelFormat: inputPixelFormat.String(),
	}
}

// OpenOutput creates (or truncates) the file at location and encodes
// into it.
func (r *Runtime) OpenOutput(
	ctx context.Context,
	location string,
	cfg encoder.Config,
) (_ret *encoder.Encoder, _err error) {
	logger.Debugf(ctx, "OpenOutput: '%s'", location)
	defer func() { logger.Debugf(ctx, "/OpenOutput: '%s': %v", location, _err) }()
	defer func() { r.countOpen(ctx, "videoio_outputs_opened", _err) }()

	if location == "" {
		return nil, types.ErrInvalidOption{Key: "location", Reason: "empty"}
	}
	if IsURL(location) {
		return nil, types.ErrInvalidOption{Key: "location", Value: location, Reason: "only local files and writers are supported as outputs"}
	}

	path := localPath(location)
	f, err := os.Create(path)
	if err != nil {
		return nil, types.ErrIO{Op: "create", Err: err}
	}
	e, err := r.openOutputWriter(ctx, f, r.encoderConfig(path, cfg))
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warnf(ctx, "unable to remove '%s': %v", path, rmErr)
		}
		return nil, err
	}
	return e, nil
}

// OpenOutputWriter encodes into dst; cfg.FormatName or cfg.FileName must
// identify the container. The encoder takes ownership of dst.
func (r *Runtime) OpenOutputWriter(
	ctx context.Context,
	dst io.Writer,
	cfg encoder.Config,
) (*encoder.Encoder, error) {
	return r.openOutputWriter(ctx, dst, r.encoderConfig("", cfg))
}

func (r *Runtime) openOutputWriter(
	ctx context.Context,
	dst io.Writer,
	cfg encoder.Config,
) (*encoder.Encoder, error) {
	adapter, err := streamadapter.NewWriter(dst, r.config.BufferSize)
	if err != nil {
		if c, ok := dst.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return encoder.New(ctx, adapter, cfg)
}

// Load decodes every frame of the input.
func (r *Runtime) Load(
	ctx context.Context,
	location string,
) (_ret []*types.Frame, _err error) {
	d, err := r.OpenInput(ctx, location, InputOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := d.Close(); err != nil {
			_err = multierror.Append(_err, fmt.Errorf("unable to close '%s': %w", location, err)).ErrorOrNil()
		}
	}()

	var frames []*types.Frame
	for {
		frame, err := d.ReadFrame(ctx)
		switch {
		case err == nil:
			frames = append(frames, frame)
		case errors.Is(err, io.EOF):
			return frames, nil
		default:
			return nil, fmt.Errorf("unable to read frame #%d of '%s': %w", len(frames), location, err)
		}
	}
}

// Save encodes the frames into the file at location. The picture size and
// the input pixel format default to those of the first frame.
func (r *Runtime) Save(
	ctx context.Context,
	location string,
	frames []*types.Frame,
	cfg encoder.Config,
) (_err error) {
	if len(frames) == 0 {
		return types.ErrInvalidOption{Key: "frames", Reason: "nothing to save"}
	}
	first := frames[0]
	if cfg.Width == 0 && cfg.Height == 0 {
		cfg.Width, cfg.Height = first.Width, first.Height
	}
	if cfg.InputPixelFormat == "" {
		cfg.InputPixelFormat = first.PixelFormat.String()
	}
	if cfg.FrameRate.Num() == 0 && cfg.FrameRate.Den() == 0 {
		cfg.FrameRate = DefaultFrameRate
	}

	e, err := r.OpenOutput(ctx, location, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if _err != nil {
			if err := e.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the encoder of '%s': %v", location, err)
			}
		}
	}()

	for idx, frame := range frames {
		if err := e.Encode(ctx, frame); err != nil {
			return fmt.Errorf("unable to encode frame #%d into '%s': %w", idx, location, err)
		}
	}
	if err := e.Finish(ctx); err != nil {
		return fmt.Errorf("unable to finalize '%s': %w", location, err)
	}
	return nil
}

func (r *Runtime) Devices(ctx context.Context) ([]string, error) {
	return r.enumerator.Devices(ctx)
}

func (r *Runtime) DefaultDevice(ctx context.Context) (string, error) {
	if r.config.Camera.Device != "" {
		return r.config.Camera.Device, nil
	}
	return r.enumerator.DefaultDevice(ctx)
}

func (r *Runtime) DefaultInputFormat() string {
	if r.config.Camera.InputFormat != "" {
		return r.config.Camera.InputFormat
	}
	return r.enumerator.DefaultInputFormat()
}

func (r *Runtime) countOpen(ctx context.Context, key string, err error) {
	if err != nil {
		key += "_failed"
	}
	metrics.FromCtx(ctx).Count(key).Add(1)
}
