package decoder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

func TestErrorStreak(t *testing.T) {
	cause := errors.New("invalid data")

	s := newErrorStreak(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Fail(cause))
	}
	err := s.Fail(cause)
	var decodeErr types.ErrDecode
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, 4, decodeErr.ConsecutiveFailures)
	require.ErrorIs(t, err, cause)

	s.Reset()
	require.Zero(t, s.Count())
	require.NoError(t, s.Fail(cause))
}

func TestErrorStreakDefault(t *testing.T) {
	s := newErrorStreak(0)
	for i := 0; i < DefaultMaxConsecutiveErrors; i++ {
		require.NoError(t, s.Fail(errors.New("x")))
	}
	require.Error(t, s.Fail(errors.New("x")))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "resyncing", StateResyncing.String())
	require.Equal(t, "unknown", State(100).String())
}

func TestResetTimelineNumbersFromSeekTarget(t *testing.T) {
	ctx := context.Background()
	d := &Decoder{
		info: types.StreamInfo{
			TimeBase:  astiav.NewRational(1, 25),
			StartTime: astiav.NoPtsValue,
		},
		frameTicks:    1,
		frame:         astiav.AllocFrame(),
		packet:        astiav.AllocPacket(),
		packetPending: true,
		state:         StateReading,
		lastPTS:       9,
	}
	defer d.frame.Free()
	defer d.packet.Free()
	d.frame.SetPts(astiav.NoPtsValue)

	// backwards: the keyframe is at 3, the target at 5
	d.resetTimeline(StateReading, 3, 5)
	require.Equal(t, StateResyncing, d.State())
	require.False(t, d.packetPending)
	require.False(t, d.acceptFrame(ctx))
	require.False(t, d.acceptFrame(ctx))
	require.True(t, d.acceptFrame(ctx))
	require.Equal(t, int64(5), d.lastPTS)
	require.Equal(t, 5*time.Second/25, d.Position())
	require.Equal(t, StateReading, d.State())

	require.True(t, d.acceptFrame(ctx))
	require.Equal(t, int64(6), d.lastPTS)
}
