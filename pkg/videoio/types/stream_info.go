package types

import (
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
)

const (
	MaxPlausibleDuration = 30 * 24 * time.Hour

	// how many times the header duration may exceed the size/bitrate estimate
	maxDurationToEstimateRatio = 100
)

type StreamInfo struct {
	Index       int
	MediaType   astiav.MediaType
	CodecID     astiav.CodecID
	CodecName   string
	Width       int
	Height      int
	PixelFormat astiav.PixelFormat
	FrameRate   astiav.Rational
	TimeBase    astiav.Rational
	StartTime   int64
	BitRate     int64

	Duration        time.Duration
	DurationTrusted bool

	FrameCount        int64
	FrameCountTrusted bool
}

func (s StreamInfo) IsVideo() bool {
	return s.MediaType == astiav.MediaTypeVideo
}

func (s StreamInfo) String() string {
	return fmt.Sprintf(
		"#%d %s %s %dx%d %s @ %s fps, duration %v",
		s.Index, s.MediaType, s.CodecName, s.Width, s.Height,
		s.PixelFormat, s.FrameRate, s.Duration,
	)
}

// FrameDuration returns zero if the frame rate is unknown.
func (s StreamInfo) FrameDuration() time.Duration {
	if s.FrameRate.Num() <= 0 || s.FrameRate.Den() <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) * float64(s.FrameRate.Den()) / float64(s.FrameRate.Num()))
}

// EstimatedFrameCount derives a frame count from the duration and the frame rate.
func (s StreamInfo) EstimatedFrameCount() int64 {
	frameDuration := s.FrameDuration()
	if frameDuration <= 0 || s.Duration <= 0 {
		return 0
	}
	return int64((s.Duration + frameDuration/2) / frameDuration)
}

func (s StreamInfo) TimestampToDuration(ts int64) time.Duration {
	return ToDuration(ts-s.startTimeOrZero(), s.TimeBase)
}

func (s StreamInfo) DurationToTimestamp(d time.Duration) int64 {
	return FromDuration(d, s.TimeBase) + s.startTimeOrZero()
}

func (s StreamInfo) startTimeOrZero() int64 {
	if s.StartTime == astiav.NoPtsValue {
		return 0
	}
	return s.StartTime
}

var nanosecondTimeBase = astiav.NewRational(1, int(time.Second))

func ToDuration(ts int64, timeBase astiav.Rational) time.Duration {
	if timeBase.Num() <= 0 || timeBase.Den() <= 0 {
		return 0
	}
	return time.Duration(astiav.RescaleQ(ts, timeBase, nanosecondTimeBase))
}

func FromDuration(d time.Duration, timeBase astiav.Rational) int64 {
	if timeBase.Num() <= 0 || timeBase.Den() <= 0 {
		return 0
	}
	return astiav.RescaleQ(int64(d), nanosecondTimeBase, timeBase)
}

// IsDurationPlausible tells whether a container-declared duration can be
// trusted. sourceSize and bitRate are optional (pass <= 0 if unknown).
func IsDurationPlausible(
	duration time.Duration,
	sourceSize int64,
	bitRate int64,
) bool {
	if duration <= 0 || duration > MaxPlausibleDuration {
		return false
	}
	if sourceSize <= 0 || bitRate <= 0 {
		return true
	}
	estimate := time.Duration(float64(time.Second) * float64(sourceSize) * 8 / float64(bitRate))
	return duration <= estimate*maxDurationToEstimateRatio
}
