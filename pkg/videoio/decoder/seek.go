package decoder

import (
	"context"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

// Seek repositions the decoder so that the next frame is the first one
// presented at or after target.
func (d *Decoder) Seek(
	ctx context.Context,
	target time.Duration,
) (_err error) {
	ctx = d.ctx(ctx)
	logger.Debugf(ctx, "Seek: %v", target)
	defer func() { logger.Debugf(ctx, "/Seek: %v", _err) }()

	if d.state == StateClosed {
		return types.ErrPipelineClosed{}
	}
	if target < 0 {
		return types.ErrSeek{Target: target, Err: fmt.Errorf("negative target")}
	}

	ts := d.info.DurationToTimestamp(target)
	if err := d.seekTimestamp(ctx, ts, ts); err != nil {
		return types.ErrSeek{Target: target, Err: err}
	}
	d.position = target
	return nil
}

// SeekStart rewinds to the first frame.
func (d *Decoder) SeekStart(ctx context.Context) (_err error) {
	ctx = d.ctx(ctx)
	logger.Debugf(ctx, "SeekStart")
	defer func() { logger.Debugf(ctx, "/SeekStart: %v", _err) }()

	if d.state == StateClosed {
		return types.ErrPipelineClosed{}
	}

	if err := d.seekTimestamp(ctx, d.info.DurationToTimestamp(0), astiav.NoPtsValue); err != nil {
		return types.ErrSeek{Target: 0, Err: err}
	}
	d.position = 0
	return nil
}

// seekTimestamp moves the demuxer to the keyframe at or before ts and
// makes the decoder drop every frame presented before resyncPTS.
func (d *Decoder) seekTimestamp(
	ctx context.Context,
	ts int64,
	resyncPTS int64,
) error {
	prevState := d.state
	d.state = StateSeekPending

	err := d.input.FormatContext.SeekFrame(
		d.input.VideoStream.Index(),
		ts,
		astiav.NewSeekFlags(astiav.SeekFlagBackward),
	)
	if err != nil {
		d.state = prevState
		if aerr := d.inputErr(); aerr != nil {
			return aerr
		}
		return fmt.Errorf("unable to seek to %d: %w", ts, err)
	}

	d.codecContext.FlushBuffers()
	d.resetTimeline(prevState, ts, resyncPTS)
	logger.Tracef(ctx, "seeked to ts %d, resyncing to pts %d", ts, resyncPTS)
	return nil
}

// resetTimeline forgets everything decoded before a seek to ts. Frames
// without a timestamp are numbered from ts onwards.
func (d *Decoder) resetTimeline(
	prevState State,
	ts int64,
	resyncPTS int64,
) {
	if d.packetPending {
		d.packet.Unref()
		d.packetPending = false
	}
	d.eof = false
	d.inputEOF = false
	d.failures.Reset()
	d.seekTS = ts
	d.lastPTS = astiav.NoPtsValue
	d.resyncPTS = resyncPTS
	d.state = StateResyncing
	if prevState == StateOpened && resyncPTS == astiav.NoPtsValue {
		d.state = StateOpened
	}
}
