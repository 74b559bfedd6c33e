package videoio

import (
	"context"

	"github.com/xaionaro-go/videoio/pkg/videoio/decoder"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
	"github.com/xaionaro-go/videoio/pkg/xsync"
)

// FrameSource is what a renderer needs to pull pictures.
type FrameSource interface {
	ReadFrame(ctx context.Context) (*types.Frame, error)
	StreamInfo() types.StreamInfo
	EOF() bool
}

var _ FrameSource = (*decoder.Decoder)(nil)
var _ FrameSource = (*LockedFrameSource)(nil)

// LockedFrameSource serializes the access to a FrameSource, so that it
// could be shared between goroutines.
type LockedFrameSource struct {
	locker xsync.Mutex
	source FrameSource
}

func NewLockedFrameSource(source FrameSource) *LockedFrameSource {
	return &LockedFrameSource{source: source}
}

// ReadFrame gives up waiting for the lock when ctx is done.
func (s *LockedFrameSource) ReadFrame(ctx context.Context) (*types.Frame, error) {
	return xsync.DoR1E(ctx, &s.locker, func() (*types.Frame, error) {
		return s.source.ReadFrame(ctx)
	})
}

func (s *LockedFrameSource) StreamInfo() types.StreamInfo {
	ctx := xsync.WithNoLogging(context.Background(), true)
	info, _ := xsync.DoR1(ctx, &s.locker, s.source.StreamInfo)
	return info
}

func (s *LockedFrameSource) EOF() bool {
	ctx := xsync.WithNoLogging(context.Background(), true)
	eof, _ := xsync.DoR1(ctx, &s.locker, s.source.EOF)
	return eof
}

// Do runs fn with exclusive access to the underlying source, e.g. to seek.
func (s *LockedFrameSource) Do(
	ctx context.Context,
	fn func(FrameSource) error,
) error {
	return xsync.DoE(ctx, &s.locker, func() error {
		return fn(s.source)
	})
}
