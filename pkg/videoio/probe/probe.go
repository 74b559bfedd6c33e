package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/videoio/pkg/videoio/streamadapter"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

type Config struct {
	// FormatName forces the input format (e.g. "v4l2", "avfoundation", "dshow").
	FormatName string

	// Options are passed to the demuxer or the capture device, e.g.
	// "video_size", "framerate", "pixel_format".
	Options types.DictionaryItems

	// StreamIndex selects the video stream; nil means the first one.
	StreamIndex *int

	ProbeSize       int64
	AnalyzeDuration int64
}

type Result struct {
	*astikit.Closer
	FormatContext *astiav.FormatContext
	Adapter       *streamadapter.Adapter
	VideoStream   *astiav.Stream
	Streams       []types.StreamInfo

	videoInfoIdx int
}

// Video returns the metadata of the selected video stream.
func (r *Result) Video() types.StreamInfo {
	return r.Streams[r.videoInfoIdx]
}

// Probe opens a container through the adapter. The Result takes ownership
// of the adapter (also on failure).
func Probe(
	ctx context.Context,
	adapter *streamadapter.Adapter,
	cfg Config,
) (*Result, error) {
	if adapter == nil {
		return nil, fmt.Errorf("the adapter is nil")
	}
	return open(ctx, "", adapter, cfg)
}

// ProbeURL lets libav open the location itself (devices, network URLs).
func ProbeURL(
	ctx context.Context,
	url string,
	cfg Config,
) (*Result, error) {
	if url == "" {
		return nil, fmt.Errorf("the provided URL is empty")
	}
	return open(ctx, url, nil, cfg)
}

func open(
	ctx context.Context,
	url string,
	adapter *streamadapter.Adapter,
	cfg Config,
) (_ret *Result, _err error) {
	logger.Debugf(ctx, "probe: url:'%s' format:'%s' options:'%s'", url, cfg.FormatName, cfg.Options)
	defer func() { logger.Debugf(ctx, "/probe: %v", _err) }()

	r := &Result{
		Closer:  astikit.NewCloser(),
		Adapter: adapter,
	}
	if adapter != nil {
		r.Closer.AddWithError(adapter.Close)
	}
	defer func() {
		if _err != nil {
			if err := r.Close(); err != nil {
				logger.Errorf(ctx, "unable to close the partially opened input: %v", err)
			}
		}
	}()

	var inputFormat *astiav.InputFormat
	if cfg.FormatName != "" {
		inputFormat = astiav.FindInputFormat(cfg.FormatName)
		if inputFormat == nil {
			return nil, types.ErrUnsupportedFormat{FormatName: cfg.FormatName}
		}
	}

	options := cfg.Options
	if cfg.ProbeSize > 0 {
		options = append(options, types.DictionaryItem{Key: "probesize", Value: strconv.FormatInt(cfg.ProbeSize, 10)})
	}
	if cfg.AnalyzeDuration > 0 {
		options = append(options, types.DictionaryItem{Key: "analyzeduration", Value: strconv.FormatInt(cfg.AnalyzeDuration, 10)})
	}
	dict, err := options.ToAstiav()
	if err != nil {
		return nil, err
	}
	if dict != nil {
		defer dict.Free()
	}

	r.FormatContext = astiav.AllocFormatContext()
	if r.FormatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	r.Closer.Add(r.FormatContext.Free)

	if adapter != nil {
		r.FormatContext.SetPb(adapter.IOContext())
	}

	if err := r.FormatContext.OpenInput(url, inputFormat, dict); err != nil {
		return nil, classifyOpenError(cfg.FormatName, err)
	}
	r.Closer.Add(r.FormatContext.CloseInput)

	if err := types.UnconsumedOptions(dict); err != nil {
		return nil, err
	}

	if err := r.FormatContext.FindStreamInfo(nil); err != nil {
		return nil, classifyOpenError(cfg.FormatName, fmt.Errorf("unable to get stream info: %w", err))
	}

	var sourceSize int64 = -1
	if adapter != nil && adapter.IsSeekable() {
		if size, err := adapter.Size(); err == nil {
			sourceSize = size
		}
	}

	r.videoInfoIdx = -1
	for idx, stream := range r.FormatContext.Streams() {
		info := StreamInfoFrom(r.FormatContext, stream, sourceSize)
		r.Streams = append(r.Streams, info)
		logger.Debugf(ctx, "stream: %s", info)

		if r.VideoStream != nil || !info.IsVideo() {
			continue
		}
		if cfg.StreamIndex != nil && stream.Index() != *cfg.StreamIndex {
			continue
		}
		r.VideoStream = stream
		r.videoInfoIdx = idx
	}

	if r.VideoStream == nil {
		requested := -1
		if cfg.StreamIndex != nil {
			requested = *cfg.StreamIndex
		}
		return nil, types.ErrNoVideoStream{RequestedIndex: requested}
	}

	return r, nil
}

func classifyOpenError(formatName string, err error) error {
	switch {
	case errors.Is(err, astiav.ErrInvaliddata),
		errors.Is(err, astiav.ErrDemuxerNotFound),
		errors.Is(err, astiav.ErrProtocolNotFound):
		return types.ErrUnsupportedFormat{FormatName: formatName, Err: err}
	case errors.Is(err, astiav.ErrEinval):
		return types.ErrInvalidOption{Key: "format", Value: formatName, Reason: err.Error()}
	default:
		return types.ErrIO{Op: "open", Err: err}
	}
}

// StreamInfoFrom snapshots the metadata of a stream; sourceSize is
// optional (<= 0 if unknown) and used to judge the declared duration.
func StreamInfoFrom(
	fc *astiav.FormatContext,
	stream *astiav.Stream,
	sourceSize int64,
) types.StreamInfo {
	cp := stream.CodecParameters()
	info := types.StreamInfo{
		Index:       stream.Index(),
		MediaType:   cp.MediaType(),
		CodecID:     cp.CodecID(),
		CodecName:   cp.CodecID().Name(),
		Width:       cp.Width(),
		Height:      cp.Height(),
		PixelFormat: cp.PixelFormat(),
		TimeBase:    stream.TimeBase(),
		StartTime:   stream.StartTime(),
		BitRate:     cp.BitRate(),
	}

	info.FrameRate = stream.AvgFrameRate()
	if !isValidRational(info.FrameRate) && info.IsVideo() {
		info.FrameRate = fc.GuessFrameRate(stream, nil)
	}
	if !isValidRational(info.FrameRate) {
		info.FrameRate = stream.RFrameRate()
	}

	switch {
	case stream.Duration() > 0 && stream.Duration() != astiav.NoPtsValue:
		info.Duration = types.ToDuration(stream.Duration(), info.TimeBase)
	case fc.Duration() > 0 && fc.Duration() != astiav.NoPtsValue:
		info.Duration = types.ToDuration(fc.Duration(), astiav.NewRational(1, astiav.TimeBase))
	}
	bitRate := fc.BitRate()
	if bitRate <= 0 {
		bitRate = info.BitRate
	}
	info.DurationTrusted = types.IsDurationPlausible(info.Duration, sourceSize, bitRate)

	if n := stream.NbFrames(); n > 0 {
		info.FrameCount = n
		info.FrameCountTrusted = true
	} else if info.DurationTrusted {
		info.FrameCount = info.EstimatedFrameCount()
	}

	return info
}

func isValidRational(r astiav.Rational) bool {
	return r.Num() > 0 && r.Den() > 0
}
