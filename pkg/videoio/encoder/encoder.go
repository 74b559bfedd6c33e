package encoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/videoio/pkg/videoio/scaler"
	"github.com/xaionaro-go/videoio/pkg/videoio/streamadapter"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

// DefaultCodecNames are tried in order when Config.CodecName is empty.
var DefaultCodecNames = []string{"libx264", "libopenh264", "mpeg4"}

type Config struct {
	// FormatName is the container; guessed from FileName if empty.
	FormatName string
	FileName   string

	CodecName string
	Width     int
	Height    int
	FrameRate astiav.Rational
	BitRate   int64
	GOPSize   int

	// PixelFormat is the format the codec works in; defaults to
	// InputPixelFormat if the codec supports it, to the codec's first
	// supported format otherwise.
	PixelFormat string

	// InputPixelFormat is the layout of the frames passed to Encode.
	InputPixelFormat string

	CodecOptions  types.DictionaryItems
	FormatOptions types.DictionaryItems
	ThreadCount   int
}

type Stats struct {
	FramesWritten  uint64
	PacketsWritten uint64
	BytesWritten   uint64
}

type Encoder struct {
	*astikit.Closer

	id               string
	config           Config
	codecName        string
	state            State
	inputPixelFormat astiav.PixelFormat

	adapter       *streamadapter.Adapter
	formatContext *astiav.FormatContext
	codecContext  *astiav.CodecContext
	stream        *astiav.Stream
	scaler        *scaler.Scaler
	packet        *astiav.Packet
	input         *astiav.Frame

	nextPTS        int64
	framesWritten  uint64
	packetsWritten uint64
}

// New opens the container and the codec, and writes the container header.
// The Encoder takes ownership of the adapter (also on failure).
func New(
	ctx context.Context,
	adapter *streamadapter.Adapter,
	cfg Config,
) (_ret *Encoder, _err error) {
	id := uuid.New().String()
	ctx = belt.WithField(ctx, "encoder_id", id)
	logger.Debugf(ctx, "encoder.New: %#+v", cfg)
	defer func() { logger.Debugf(ctx, "/encoder.New: %v", _err) }()

	e := &Encoder{
		Closer:  astikit.NewCloser(),
		id:      id,
		config:  cfg,
		adapter: adapter,
		scaler:  scaler.New(),
	}
	if adapter != nil {
		e.Closer.AddWithError(adapter.Close)
	}
	defer func() {
		if _err != nil {
			if err := e.Closer.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the partially opened encoder: %v", err)
			}
		}
	}()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	inputPixelFormat, err := types.ParsePixelFormat(cfg.InputPixelFormat, types.DefaultPixelFormat)
	if err != nil {
		return nil, err
	}
	e.inputPixelFormat = inputPixelFormat

	if err := e.openOutput(ctx); err != nil {
		return nil, err
	}
	if err := e.openCodec(ctx); err != nil {
		return nil, err
	}
	if err := e.writeHeader(ctx); err != nil {
		return nil, err
	}

	e.packet = astiav.AllocPacket()
	e.Closer.Add(e.packet.Free)
	e.Closer.AddWithError(e.scaler.Close)
	e.Closer.Add(func() {
		if e.input != nil {
			e.input.Free()
			e.input = nil
		}
	})
	return e, nil
}

func (cfg Config) validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return types.ErrInvalidOption{
			Key:    "video_size",
			Value:  fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			Reason: "the dimensions must be positive",
		}
	}
	if cfg.FrameRate.Num() <= 0 || cfg.FrameRate.Den() <= 0 {
		return types.ErrInvalidOption{
			Key:    "framerate",
			Value:  fmt.Sprintf("%d/%d", cfg.FrameRate.Num(), cfg.FrameRate.Den()),
			Reason: "the frame rate must be positive",
		}
	}
	if cfg.BitRate < 0 {
		return types.ErrInvalidOption{Key: "bitrate", Value: fmt.Sprint(cfg.BitRate), Reason: "negative"}
	}
	return nil
}

func (e *Encoder) openOutput(ctx context.Context) error {
	formatContext, err := astiav.AllocOutputFormatContext(nil, e.config.FormatName, e.config.FileName)
	if err != nil {
		return types.ErrUnsupportedFormat{FormatName: e.formatLabel(), Err: err}
	}
	if formatContext == nil {
		return types.ErrUnsupportedFormat{FormatName: e.formatLabel()}
	}
	e.formatContext = formatContext
	e.Closer.Add(e.formatContext.Free)

	if e.formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		logger.Tracef(ctx, "the output format does not need a file")
		return nil
	}
	if e.adapter == nil {
		return types.ErrInvalidOption{
			Key:    "destination",
			Value:  e.config.FileName,
			Reason: "the format writes to a file, but no destination is provided",
		}
	}
	e.formatContext.SetPb(e.adapter.IOContext())
	return nil
}

func (e *Encoder) formatLabel() string {
	if e.config.FormatName != "" {
		return e.config.FormatName
	}
	return e.config.FileName
}

func findEncoder(name string) (*astiav.Codec, error) {
	if name != "" {
		codec := astiav.FindEncoderByName(name)
		if codec == nil {
			return nil, types.ErrUnsupportedCodec{CodecName: name}
		}
		return codec, nil
	}
	for _, candidate := range DefaultCodecNames {
		if codec := astiav.FindEncoderByName(candidate); codec != nil {
			return codec, nil
		}
	}
	return nil, types.ErrUnsupportedCodec{CodecName: fmt.Sprintf("any of %v", DefaultCodecNames)}
}

func (e *Encoder) choosePixelFormat(codec *astiav.Codec) (astiav.PixelFormat, error) {
	supported := codec.PixelFormats()
	if e.config.PixelFormat != "" {
		pixFmt, err := types.ParsePixelFormat(e.config.PixelFormat, astiav.PixelFormatNone)
		if err != nil {
			return astiav.PixelFormatNone, err
		}
		if len(supported) > 0 && !slices.Contains(supported, pixFmt) {
			return astiav.PixelFormatNone, types.ErrInvalidOption{
				Key:    "pixel_format",
				Value:  e.config.PixelFormat,
				Reason: fmt.Sprintf("not supported by encoder '%s'", codec.Name()),
			}
		}
		return pixFmt, nil
	}

	if len(supported) == 0 || slices.Contains(supported, e.inputPixelFormat) {
		return e.inputPixelFormat, nil
	}
	return supported[0], nil
}

func (e *Encoder) openCodec(ctx context.Context) error {
	codec, err := findEncoder(e.config.CodecName)
	if err != nil {
		return err
	}
	logger.Debugf(ctx, "using encoder '%s'", codec.Name())
	e.codecName = codec.Name()

	pixelFormat, err := e.choosePixelFormat(codec)
	if err != nil {
		return err
	}

	e.codecContext = astiav.AllocCodecContext(codec)
	if e.codecContext == nil {
		return fmt.Errorf("unable to allocate a codec context for '%s'", codec.Name())
	}
	e.Closer.Add(e.codecContext.Free)

	frameRate := e.config.FrameRate
	e.codecContext.SetWidth(e.config.Width)
	e.codecContext.SetHeight(e.config.Height)
	e.codecContext.SetPixelFormat(pixelFormat)
	e.codecContext.SetTimeBase(astiav.NewRational(frameRate.Den(), frameRate.Num()))
	e.codecContext.SetFramerate(frameRate)
	if e.config.BitRate > 0 {
		e.codecContext.SetBitRate(e.config.BitRate)
	}
	if e.config.GOPSize > 0 {
		e.codecContext.SetGopSize(e.config.GOPSize)
	}
	if e.config.ThreadCount > 0 {
		e.codecContext.SetThreadCount(e.config.ThreadCount)
	}
	if e.formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		e.codecContext.SetFlags(e.codecContext.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	dict, err := e.config.CodecOptions.ToAstiav()
	if err != nil {
		return err
	}
	if dict != nil {
		defer dict.Free()
	}

	if err := e.codecContext.Open(codec, dict); err != nil {
		if errors.Is(err, astiav.ErrEinval) {
			return types.ErrInvalidOption{
				Key:    "codec",
				Value:  codec.Name(),
				Reason: fmt.Sprintf("unable to open with %dx%d %s: %v", e.config.Width, e.config.Height, pixelFormat, err),
			}
		}
		return types.ErrUnsupportedCodec{CodecName: codec.Name(), Err: err}
	}
	if err := types.UnconsumedOptions(dict); err != nil {
		return err
	}

	e.stream = e.formatContext.NewStream(nil)
	if e.stream == nil {
		return fmt.Errorf("unable to create an output stream")
	}
	if err := e.codecContext.ToCodecParameters(e.stream.CodecParameters()); err != nil {
		return fmt.Errorf("unable to copy the codec parameters to the stream: %w", err)
	}
	e.stream.SetTimeBase(e.codecContext.TimeBase())
	return nil
}

func (e *Encoder) writeHeader(ctx context.Context) error {
	dict, err := e.config.FormatOptions.ToAstiav()
	if err != nil {
		return err
	}
	if dict != nil {
		defer dict.Free()
	}

	if err := e.formatContext.WriteHeader(dict); err != nil {
		if aerr := e.adapterErr(); aerr != nil {
			return aerr
		}
		return types.ErrUnsupportedFormat{FormatName: e.formatLabel(), Err: fmt.Errorf("unable to write the header: %w", err)}
	}
	if err := types.UnconsumedOptions(dict); err != nil {
		return err
	}
	e.state = StateOpened
	logger.Tracef(ctx, "the header is written; stream time base: %s", e.stream.TimeBase())
	return nil
}

func (e *Encoder) adapterErr() error {
	if e.adapter == nil {
		return nil
	}
	return e.adapter.Err()
}

func (e *Encoder) ctx(ctx context.Context) context.Context {
	return belt.WithField(ctx, "encoder_id", e.id)
}

func (e *Encoder) State() State {
	return e.state
}

func (e *Encoder) Config() Config {
	return e.config
}

// CodecName returns the name of the encoder actually in use.
func (e *Encoder) CodecName() string {
	return e.codecName
}

func (e *Encoder) PixelFormat() astiav.PixelFormat {
	return e.codecContext.PixelFormat()
}

// Encode writes one frame. Frames of a different size or pixel format
// than configured are converted.
func (e *Encoder) Encode(
	ctx context.Context,
	frame *types.Frame,
) (_err error) {
	ctx = e.ctx(ctx)
	logger.Tracef(ctx, "Encode: %s", frame)
	defer func() { logger.Tracef(ctx, "/Encode: %v", _err) }()

	switch e.state {
	case StateFinalizing, StateClosed:
		return types.ErrPipelineClosed{}
	}
	if frame == nil {
		return fmt.Errorf("the frame is nil")
	}

	input, err := e.inputFrame(frame)
	if err != nil {
		return err
	}

	toSend := input
	if scaler.NeedsConversion(input, e.codecContext.PixelFormat(), e.codecContext.Width(), e.codecContext.Height()) {
		toSend, err = e.scaler.Convert(ctx, input, e.codecContext.PixelFormat(), e.codecContext.Width(), e.codecContext.Height())
		if err != nil {
			return types.ErrEncode{Err: err}
		}
	}
	toSend.SetPts(e.nextPTS)

	if err := e.codecContext.SendFrame(toSend); err != nil {
		return types.ErrEncode{Err: fmt.Errorf("unable to send the frame: %w", err)}
	}
	e.state = StateEncoding
	e.nextPTS++
	e.framesWritten++
	metrics.FromCtx(ctx).Count("videoio_encoder_frames").Add(1)

	return e.drainPackets(ctx)
}

// EncodeImage is Encode for an image.Image.
func (e *Encoder) EncodeImage(
	ctx context.Context,
	img image.Image,
) error {
	if img == nil {
		return fmt.Errorf("the image is nil")
	}
	return e.Encode(ctx, types.FrameFromImage(img))
}

func (e *Encoder) inputFrame(frame *types.Frame) (*astiav.Frame, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, types.ErrInvalidOption{
			Key:    "video_size",
			Value:  fmt.Sprintf("%dx%d", frame.Width, frame.Height),
			Reason: "the frame is empty",
		}
	}

	if e.input == nil ||
		e.input.Width() != frame.Width ||
		e.input.Height() != frame.Height ||
		e.input.PixelFormat() != frame.PixelFormat {
		if e.input != nil {
			e.input.Free()
			e.input = nil
		}
		input, err := scaler.AllocVideoFrame(frame.Width, frame.Height, frame.PixelFormat)
		if err != nil {
			return nil, types.ErrEncode{Err: err}
		}
		e.input = input
	}

	if err := scaler.FillFromBuffer(e.input, frame.Data); err != nil {
		return nil, err
	}
	return e.input, nil
}

func (e *Encoder) drainPackets(ctx context.Context) error {
	for {
		err := e.codecContext.ReceivePacket(e.packet)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEagain), errors.Is(err, astiav.ErrEof):
			return nil
		default:
			return types.ErrEncode{Err: fmt.Errorf("unable to receive a packet: %w", err)}
		}

		e.packet.SetStreamIndex(e.stream.Index())
		e.packet.RescaleTs(e.codecContext.TimeBase(), e.stream.TimeBase())
		logger.Tracef(ctx, "writing a packet: pts:%d dts:%d size:%d", e.packet.Pts(), e.packet.Dts(), e.packet.Size())

		// WriteInterleavedFrame takes the ownership of the packet content
		if err := e.formatContext.WriteInterleavedFrame(e.packet); err != nil {
			if aerr := e.adapterErr(); aerr != nil {
				return types.ErrEncode{Err: aerr}
			}
			return types.ErrEncode{Err: fmt.Errorf("unable to write a packet: %w", err)}
		}
		e.packetsWritten++
		metrics.FromCtx(ctx).Count("videoio_encoder_packets").Add(1)
	}
}

// Finish flushes the codec, writes the trailer and closes the output.
func (e *Encoder) Finish(ctx context.Context) (_err error) {
	ctx = e.ctx(ctx)
	logger.Debugf(ctx, "Finish")
	defer func() { logger.Debugf(ctx, "/Finish: %v", _err) }()

	switch e.state {
	case StateFinalizing, StateClosed:
		return types.ErrPipelineClosed{}
	}
	e.state = StateFinalizing

	var result *multierror.Error
	if err := e.codecContext.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		result = multierror.Append(result, types.ErrEncode{Err: fmt.Errorf("unable to flush the encoder: %w", err)})
	} else if err := e.drainPackets(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if err := e.formatContext.WriteTrailer(); err != nil {
		werr := error(fmt.Errorf("unable to write the trailer: %w", err))
		if aerr := e.adapterErr(); aerr != nil {
			werr = aerr
		}
		result = multierror.Append(result, types.ErrEncode{Err: werr})
	}

	e.state = StateClosed
	if err := e.Closer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Close releases everything. Frames still buffered in the codec are lost
// if Finish was not called.
func (e *Encoder) Close() error {
	if e.state == StateClosed {
		return nil
	}
	if e.state == StateEncoding {
		logger.Errorf(context.TODO(), "encoder %s is closed without Finish, the buffered frames and the trailer are lost", e.id)
	}
	e.state = StateClosed
	return e.Closer.Close()
}

func (e *Encoder) FramesWritten() uint64 {
	return e.framesWritten
}

func (e *Encoder) Stats() Stats {
	s := Stats{
		FramesWritten:  e.framesWritten,
		PacketsWritten: e.packetsWritten,
	}
	if e.adapter != nil {
		s.BytesWritten = e.adapter.Stats().BytesWrote
	}
	return s
}
