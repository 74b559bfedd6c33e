package probe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

type ScanResult struct {
	Packets   int64
	KeyFrames int64

	// FirstTimestamp and EndTimestamp are in the stream time base;
	// astiav.NoPtsValue if no packet carried a timestamp.
	FirstTimestamp int64
	EndTimestamp   int64

	// LastTimestamp is the timestamp of the last packet of the stream.
	LastTimestamp int64
}

// ScanPackets reads the rest of the container without decoding anything.
// The caller is responsible for the read position before and after the scan.
func ScanPackets(
	ctx context.Context,
	fc *astiav.FormatContext,
	streamIndex int,
) (_ret ScanResult, _err error) {
	logger.Debugf(ctx, "ScanPackets: stream #%d", streamIndex)
	defer func() { logger.Debugf(ctx, "/ScanPackets: %+v %v", _ret, _err) }()

	result := ScanResult{
		FirstTimestamp: astiav.NoPtsValue,
		EndTimestamp:   astiav.NoPtsValue,
		LastTimestamp:  astiav.NoPtsValue,
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		err := fc.ReadFrame(pkt)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEof), errors.Is(err, io.EOF):
			return result, nil
		default:
			return result, types.ErrIO{Op: "scan", Err: fmt.Errorf("unable to read a packet: %w", err)}
		}

		if pkt.StreamIndex() == streamIndex {
			result.add(pkt)
		}
		pkt.Unref()
	}
}

func (r *ScanResult) add(pkt *astiav.Packet) {
	r.Packets++
	if pkt.Flags().Has(astiav.PacketFlagKey) {
		r.KeyFrames++
	}

	ts := pkt.Pts()
	if ts == astiav.NoPtsValue {
		ts = pkt.Dts()
	}
	if ts == astiav.NoPtsValue {
		return
	}
	r.LastTimestamp = ts
	if r.FirstTimestamp == astiav.NoPtsValue || ts < r.FirstTimestamp {
		r.FirstTimestamp = ts
	}
	end := ts
	if pkt.Duration() > 0 {
		end += pkt.Duration()
	}
	if r.EndTimestamp == astiav.NoPtsValue || end > r.EndTimestamp {
		r.EndTimestamp = end
	}
}

// Span is the time covered by the scanned packets, in the stream time base.
func (r ScanResult) Span() int64 {
	if r.FirstTimestamp == astiav.NoPtsValue || r.EndTimestamp == astiav.NoPtsValue {
		return 0
	}
	return r.EndTimestamp - r.FirstTimestamp
}
