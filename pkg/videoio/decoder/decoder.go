package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/metrics"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/google/uuid"
	"github.com/xaionaro-go/videoio/pkg/videoio/probe"
	"github.com/xaionaro-go/videoio/pkg/videoio/scaler"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

type Config struct {
	// OutputPixelFormat is the layout of the returned frames (default "rgb24").
	OutputPixelFormat string

	// CodecName overrides the decoder chosen by the codec ID.
	CodecName    string
	CodecOptions types.DictionaryItems
	ThreadCount  int

	// MaxConsecutiveErrors is how many corrupt packets in a row are skipped
	// before decoding fails (default 10).
	MaxConsecutiveErrors int
}

// Decoder reads the frames of one video stream.
//
// Not safe for concurrent use.
type Decoder struct {
	*astikit.Closer

	id     string
	config Config
	input  *probe.Result
	info   types.StreamInfo

	outputPixelFormat astiav.PixelFormat
	width             int
	height            int
	frameSize         int

	codecContext *astiav.CodecContext
	scaler       *scaler.Scaler
	packet       *astiav.Packet
	frame        *astiav.Frame

	// packetPending is set while d.packet holds a packet the codec refused
	// with EAGAIN.
	packetPending bool

	state      State
	inputEOF   bool
	eof        bool
	failures   errorStreak
	resyncPTS  int64
	lastPTS    int64
	seekTS     int64
	position   time.Duration
	framesRead uint64
	scanResult *probe.ScanResult
	frameTicks int64
}

// New opens the decoder for the selected video stream of the input.
// The Decoder takes ownership of the input (also on failure).
func New(
	ctx context.Context,
	input *probe.Result,
	cfg Config,
) (_ret *Decoder, _err error) {
	if input == nil {
		return nil, fmt.Errorf("the input is nil")
	}

	id := uuid.New().String()
	ctx = belt.WithField(ctx, "decoder_id", id)
	logger.Debugf(ctx, "decoder.New: %#+v", cfg)
	defer func() { logger.Debugf(ctx, "/decoder.New: %v", _err) }()

	d := &Decoder{
		Closer:    astikit.NewCloser(),
		id:        id,
		config:    cfg,
		input:     input,
		info:      input.Video(),
		failures:  newErrorStreak(cfg.MaxConsecutiveErrors),
		resyncPTS: astiav.NoPtsValue,
		lastPTS:   astiav.NoPtsValue,
		seekTS:    astiav.NoPtsValue,
	}
	d.Closer.AddWithError(input.Close)
	defer func() {
		if _err != nil {
			if err := d.Closer.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the partially opened decoder: %v", err)
			}
		}
	}()

	outputPixelFormat, err := types.ParsePixelFormat(cfg.OutputPixelFormat, types.DefaultPixelFormat)
	if err != nil {
		return nil, err
	}
	d.outputPixelFormat = outputPixelFormat

	if err := d.openCodec(ctx); err != nil {
		return nil, err
	}

	d.width, d.height = d.codecContext.Width(), d.codecContext.Height()
	if d.width <= 0 || d.height <= 0 {
		d.width, d.height = d.info.Width, d.info.Height
	}
	if d.width <= 0 || d.height <= 0 {
		return nil, types.ErrUnsupportedCodec{
			CodecName: d.info.CodecName,
			Err:       fmt.Errorf("unknown picture size %dx%d", d.width, d.height),
		}
	}
	d.frameSize, err = scaler.PackedSize(d.width, d.height, d.outputPixelFormat)
	if err != nil {
		return nil, err
	}

	d.frameTicks = types.FromDuration(d.info.FrameDuration(), d.info.TimeBase)
	if d.frameTicks <= 0 {
		d.frameTicks = 1
	}

	d.scaler = scaler.New()
	d.Closer.AddWithError(d.scaler.Close)
	d.packet = astiav.AllocPacket()
	d.Closer.Add(d.packet.Free)
	d.frame = astiav.AllocFrame()
	d.Closer.Add(d.frame.Free)

	logger.Debugf(ctx, "decoding %s into %dx%d %s (%d bytes per frame)", d.info, d.width, d.height, d.outputPixelFormat, d.frameSize)
	return d, nil
}

func (d *Decoder) openCodec(ctx context.Context) error {
	codecParameters := d.input.VideoStream.CodecParameters()

	var codec *astiav.Codec
	if d.config.CodecName != "" {
		codec = astiav.FindDecoderByName(d.config.CodecName)
		if codec == nil {
			return types.ErrUnsupportedCodec{CodecName: d.config.CodecName}
		}
	} else {
		codec = astiav.FindDecoder(codecParameters.CodecID())
		if codec == nil {
			return types.ErrUnsupportedCodec{CodecName: codecParameters.CodecID().Name()}
		}
	}
	logger.Debugf(ctx, "using decoder '%s'", codec.Name())

	d.codecContext = astiav.AllocCodecContext(codec)
	if d.codecContext == nil {
		return fmt.Errorf("unable to allocate a codec context for '%s'", codec.Name())
	}
	d.Closer.Add(d.codecContext.Free)

	if err := codecParameters.ToCodecContext(d.codecContext); err != nil {
		return fmt.Errorf("unable to copy the codec parameters to the decoder: %w", err)
	}
	d.codecContext.SetTimeBase(d.input.VideoStream.TimeBase())
	if d.config.ThreadCount > 0 {
		d.codecContext.SetThreadCount(d.config.ThreadCount)
	}

	dict, err := d.config.CodecOptions.ToAstiav()
	if err != nil {
		return err
	}
	if dict != nil {
		defer dict.Free()
	}

	if err := d.codecContext.Open(codec, dict); err != nil {
		return types.ErrUnsupportedCodec{CodecName: codec.Name(), Err: err}
	}
	return types.UnconsumedOptions(dict)
}

func (d *Decoder) ctx(ctx context.Context) context.Context {
	return belt.WithField(ctx, "decoder_id", d.id)
}

func (d *Decoder) StreamInfo() types.StreamInfo {
	return d.info
}

func (d *Decoder) State() State {
	return d.state
}

// FrameSize is the exact length of the buffers ReadFrameInto accepts.
func (d *Decoder) FrameSize() int {
	return d.frameSize
}

func (d *Decoder) Width() int {
	return d.width
}

func (d *Decoder) Height() int {
	return d.height
}

func (d *Decoder) OutputPixelFormat() astiav.PixelFormat {
	return d.outputPixelFormat
}

// EOF reports that the stream is exhausted; only a seek resets it.
func (d *Decoder) EOF() bool {
	return d.eof
}

// Position is the presentation time of the last returned frame.
func (d *Decoder) Position() time.Duration {
	return d.position
}

// ReadFrame returns the next frame in a newly allocated buffer,
// or io.EOF at the end of the stream.
func (d *Decoder) ReadFrame(ctx context.Context) (*types.Frame, error) {
	if d.state == StateClosed {
		return nil, types.ErrPipelineClosed{}
	}
	return d.readFrame(d.ctx(ctx), nil)
}

// ReadFrameInto is ReadFrame writing into buf, which must be exactly
// FrameSize bytes long. The returned frame aliases buf.
func (d *Decoder) ReadFrameInto(ctx context.Context, buf []byte) (*types.Frame, error) {
	if d.state == StateClosed {
		return nil, types.ErrPipelineClosed{}
	}
	if len(buf) != d.frameSize {
		return nil, types.ErrSizeMismatch{Expected: d.frameSize, Actual: len(buf)}
	}
	return d.readFrame(d.ctx(ctx), buf)
}

func (d *Decoder) readFrame(
	ctx context.Context,
	buf []byte,
) (_ret *types.Frame, _err error) {
	logger.Tracef(ctx, "readFrame")
	defer func() { logger.Tracef(ctx, "/readFrame: %v %v", _ret, _err) }()

	frame, err := d.nextFrame(ctx)
	if err != nil {
		return nil, err
	}

	if buf == nil {
		buf = make([]byte, d.frameSize)
	}
	if err := d.convertInto(ctx, frame, buf); err != nil {
		return nil, err
	}

	return &types.Frame{
		Data:        buf,
		Width:       d.width,
		Height:      d.height,
		PixelFormat: d.outputPixelFormat,
		PTS:         d.lastPTS,
		TimeBase:    d.info.TimeBase,
		Position:    d.position,
		KeyFrame:    frame.PictureType() == astiav.PictureTypeI,
	}, nil
}

func (d *Decoder) convertInto(
	ctx context.Context,
	frame *astiav.Frame,
	buf []byte,
) error {
	if !scaler.NeedsConversion(frame, d.outputPixelFormat, d.width, d.height) {
		return scaler.CopyToBuffer(frame, buf)
	}
	converted, err := d.scaler.Convert(ctx, frame, d.outputPixelFormat, d.width, d.height)
	if err != nil {
		return fmt.Errorf("unable to convert the frame: %w", err)
	}
	return scaler.CopyToBuffer(converted, buf)
}

// SkipFrames decodes and drops up to n frames without converting them.
// It returns how many were skipped; io.EOF if the stream ended first.
func (d *Decoder) SkipFrames(ctx context.Context, n int) (int, error) {
	if d.state == StateClosed {
		return 0, types.ErrPipelineClosed{}
	}
	ctx = d.ctx(ctx)
	for i := 0; i < n; i++ {
		if _, err := d.nextFrame(ctx); err != nil {
			return i, err
		}
	}
	return n, nil
}

// nextFrame returns the next decoded frame of the video stream. The frame
// is owned by the Decoder and valid until the next call.
func (d *Decoder) nextFrame(ctx context.Context) (*astiav.Frame, error) {
	if d.eof {
		return nil, io.EOF
	}
	if d.state == StateOpened {
		d.state = StateReading
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		err := d.codecContext.ReceiveFrame(d.frame)
		switch {
		case err == nil:
			d.failures.Reset()
			if d.acceptFrame(ctx) {
				return d.frame, nil
			}
		case errors.Is(err, astiav.ErrEagain):
			if d.inputEOF {
				logger.Warnf(ctx, "the decoder wants more data after the end of the input")
				return nil, d.setEOF(ctx)
			}
			if err := d.feed(ctx); err != nil {
				return nil, err
			}
		case errors.Is(err, astiav.ErrEof):
			return nil, d.setEOF(ctx)
		default:
			logger.Warnf(ctx, "unable to decode a frame, skipping: %v", err)
			metrics.FromCtx(ctx).Count("videoio_decoder_skipped_packets").Add(1)
			if err := d.failures.Fail(err); err != nil {
				return nil, err
			}
			if d.inputEOF {
				return nil, d.setEOF(ctx)
			}
		}
	}
}

func (d *Decoder) acceptFrame(ctx context.Context) bool {
	pts := d.frame.Pts()
	if pts == astiav.NoPtsValue {
		switch {
		case d.lastPTS != astiav.NoPtsValue:
			pts = d.lastPTS + d.frameTicks
		case d.seekTS != astiav.NoPtsValue:
			pts = d.seekTS
		default:
			pts = d.info.DurationToTimestamp(0)
		}
	}
	d.lastPTS = pts

	if d.state == StateResyncing {
		if d.resyncPTS != astiav.NoPtsValue && pts < d.resyncPTS {
			logger.Tracef(ctx, "dropping frame pts:%d before the seek target %d", pts, d.resyncPTS)
			return false
		}
		d.resyncPTS = astiav.NoPtsValue
		d.state = StateReading
	}

	d.position = d.info.TimestampToDuration(pts)
	d.framesRead++
	metrics.FromCtx(ctx).Count("videoio_decoder_frames").Add(1)
	return true
}

func (d *Decoder) setEOF(ctx context.Context) error {
	if !d.eof {
		logger.Debugf(ctx, "end of stream after %d frame(s)", d.framesRead)
	}
	d.eof = true
	d.state = StateDrained
	return io.EOF
}

// feed sends the next packet of the video stream to the codec; at the end
// of the input it sends the flush packet instead.
func (d *Decoder) feed(ctx context.Context) error {
	if d.packetPending {
		sent, err := d.sendPacket(ctx)
		if err != nil || sent {
			return err
		}
	}

	streamIndex := d.input.VideoStream.Index()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := d.input.FormatContext.ReadFrame(d.packet)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEof):
			logger.Debugf(ctx, "end of the input, draining the decoder")
			d.inputEOF = true
			if err := d.codecContext.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
				return types.ErrDecode{Err: fmt.Errorf("unable to drain the decoder: %w", err)}
			}
			return nil
		default:
			if aerr := d.inputErr(); aerr != nil {
				return aerr
			}
			return types.ErrIO{Op: "read", Err: fmt.Errorf("unable to read a packet: %w", err)}
		}

		if d.packet.StreamIndex() != streamIndex {
			d.packet.Unref()
			continue
		}

		sent, err := d.sendPacket(ctx)
		if err != nil || sent {
			return err
		}
	}
}

// sendPacket passes d.packet to the codec. It returns false if the packet
// was corrupt and got skipped. A packet refused with EAGAIN is kept and
// resent by the next feed, after the pending frames are received.
func (d *Decoder) sendPacket(ctx context.Context) (bool, error) {
	err := d.codecContext.SendPacket(d.packet)
	if errors.Is(err, astiav.ErrEagain) {
		logger.Debugf(ctx, "the decoder is full, keeping the packet")
		d.packetPending = true
		return true, nil
	}
	d.packet.Unref()
	d.packetPending = false
	if err == nil {
		return true, nil
	}

	logger.Warnf(ctx, "unable to send a packet to the decoder, skipping: %v", err)
	metrics.FromCtx(ctx).Count("videoio_decoder_skipped_packets").Add(1)
	if err := d.failures.Fail(err); err != nil {
		return false, err
	}
	return false, nil
}

func (d *Decoder) inputErr() error {
	if d.input.Adapter == nil {
		return nil
	}
	return d.input.Adapter.Err()
}

// Close releases the decoder and its input.
func (d *Decoder) Close() error {
	if d.state == StateClosed {
		return nil
	}
	d.state = StateClosed
	return d.Closer.Close()
}
