package types

import (
	"fmt"
	"time"
)

type ErrIO struct {
	Op  string
	Err error
}

func (e ErrIO) Error() string {
	return fmt.Sprintf("I/O error during %s: %v", e.Op, e.Err)
}

func (e ErrIO) Unwrap() error {
	return e.Err
}

type ErrUnsupportedFormat struct {
	FormatName string
	Err        error
}

func (e ErrUnsupportedFormat) Error() string {
	if e.FormatName == "" {
		return fmt.Sprintf("unsupported container format: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("unsupported container format '%s'", e.FormatName)
	}
	return fmt.Sprintf("unsupported container format '%s': %v", e.FormatName, e.Err)
}

func (e ErrUnsupportedFormat) Unwrap() error {
	return e.Err
}

type ErrUnsupportedCodec struct {
	CodecName string
	Err       error
}

func (e ErrUnsupportedCodec) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unsupported codec '%s'", e.CodecName)
	}
	return fmt.Sprintf("unsupported codec '%s': %v", e.CodecName, e.Err)
}

func (e ErrUnsupportedCodec) Unwrap() error {
	return e.Err
}

type ErrNoVideoStream struct {
	RequestedIndex int
}

func (e ErrNoVideoStream) Error() string {
	if e.RequestedIndex >= 0 {
		return fmt.Sprintf("stream #%d is not a usable video stream", e.RequestedIndex)
	}
	return "no video stream found"
}

type ErrInvalidOption struct {
	Key    string
	Value  string
	Reason string
}

func (e ErrInvalidOption) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid option '%s'='%s'", e.Key, e.Value)
	}
	return fmt.Sprintf("invalid option '%s'='%s': %s", e.Key, e.Value, e.Reason)
}

type ErrDecode struct {
	ConsecutiveFailures int
	Err                 error
}

func (e ErrDecode) Error() string {
	if e.ConsecutiveFailures > 0 {
		return fmt.Sprintf("unable to decode (%d consecutive failures): %v", e.ConsecutiveFailures, e.Err)
	}
	return fmt.Sprintf("unable to decode: %v", e.Err)
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

type ErrEncode struct {
	Err error
}

func (e ErrEncode) Error() string {
	return fmt.Sprintf("unable to encode: %v", e.Err)
}

func (e ErrEncode) Unwrap() error {
	return e.Err
}

type ErrSizeMismatch struct {
	Expected int
	Actual   int
}

func (e ErrSizeMismatch) Error() string {
	return fmt.Sprintf("buffer size mismatch: expected %d bytes, but got %d", e.Expected, e.Actual)
}

type ErrPipelineClosed struct{}

func (ErrPipelineClosed) Error() string {
	return "the pipeline is already finalized or closed"
}

type ErrSeek struct {
	Target time.Duration
	Err    error
}

func (e ErrSeek) Error() string {
	return fmt.Sprintf("unable to seek to %v: %v", e.Target, e.Err)
}

func (e ErrSeek) Unwrap() error {
	return e.Err
}
