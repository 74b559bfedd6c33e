package decoder

import (
	"context"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/videoio/pkg/videoio/probe"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

// TotalFrames returns the number of frames of the stream. If the container
// does not declare a trustworthy count, the packets are counted once (the
// read position is restored afterwards) and the result is cached.
func (d *Decoder) TotalFrames(ctx context.Context) (int64, error) {
	if d.state == StateClosed {
		return 0, types.ErrPipelineClosed{}
	}
	if d.info.FrameCountTrusted {
		return d.info.FrameCount, nil
	}
	scan, err := d.scan(d.ctx(ctx))
	if err != nil {
		return 0, err
	}
	return scan.Packets, nil
}

// Duration returns the declared duration if it is plausible, and the
// duration measured by a packet scan otherwise.
func (d *Decoder) Duration(ctx context.Context) (time.Duration, error) {
	if d.state == StateClosed {
		return 0, types.ErrPipelineClosed{}
	}
	if d.info.DurationTrusted {
		return d.info.Duration, nil
	}
	if _, err := d.scan(d.ctx(ctx)); err != nil {
		return 0, err
	}
	return d.info.Duration, nil
}

func (d *Decoder) scan(ctx context.Context) (_ret *probe.ScanResult, _err error) {
	if d.scanResult != nil {
		return d.scanResult, nil
	}
	logger.Debugf(ctx, "scan")
	defer func() { logger.Debugf(ctx, "/scan: %+v %v", _ret, _err) }()

	wasEOF := d.eof
	resumePTS, afterLast := d.lastPTS, true
	if (d.state == StateResyncing || d.state == StateSeekPending) && d.resyncPTS != astiav.NoPtsValue {
		// a seek is not completed yet, its target is still to be reached
		resumePTS, afterLast = d.resyncPTS, false
	}
	streamIndex := d.input.VideoStream.Index()

	err := d.input.FormatContext.SeekFrame(
		streamIndex,
		d.info.DurationToTimestamp(0),
		astiav.NewSeekFlags(astiav.SeekFlagBackward),
	)
	if err != nil {
		return nil, types.ErrSeek{Target: 0, Err: fmt.Errorf("unable to rewind for counting the frames: %w", err)}
	}

	scan, scanErr := probe.ScanPackets(ctx, d.input.FormatContext, streamIndex)

	var result *multierror.Error
	if scanErr != nil {
		result = multierror.Append(result, scanErr)
	}
	if err := d.restorePosition(ctx, wasEOF, resumePTS, afterLast); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	d.scanResult = &scan
	d.applyScan(scan)
	return d.scanResult, nil
}

func (d *Decoder) restorePosition(
	ctx context.Context,
	wasEOF bool,
	resumePTS int64,
	afterLast bool,
) error {
	position := d.position
	switch {
	case wasEOF:
		// the demuxer is at the end again, nothing to restore
		return nil
	case resumePTS == astiav.NoPtsValue:
		if err := d.seekTimestamp(ctx, d.info.DurationToTimestamp(0), astiav.NoPtsValue); err != nil {
			return types.ErrSeek{Target: 0, Err: err}
		}
	case afterLast:
		if err := d.seekTimestamp(ctx, resumePTS, resumePTS+1); err != nil {
			return types.ErrSeek{Target: position, Err: err}
		}
		d.lastPTS = resumePTS
	default:
		if err := d.seekTimestamp(ctx, resumePTS, resumePTS); err != nil {
			return types.ErrSeek{Target: position, Err: err}
		}
	}
	d.position = position
	return nil
}

func (d *Decoder) applyScan(scan probe.ScanResult) {
	d.info.FrameCount = scan.Packets
	d.info.FrameCountTrusted = true

	duration := types.ToDuration(scan.Span(), d.info.TimeBase)
	if duration <= 0 {
		duration = time.Duration(scan.Packets) * d.info.FrameDuration()
	}
	d.info.Duration = duration
	d.info.DurationTrusted = true
}
