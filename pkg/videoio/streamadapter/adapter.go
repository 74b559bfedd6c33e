package streamadapter

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

const (
	DefaultBufferSize = 32 * 1024

	// see AVSEEK_SIZE and AVSEEK_FORCE in libavformat/avio.h
	avSeekSize  = 0x10000
	avSeekForce = 0x20000

	maxConsecutiveEmptyReads = 100
)

type Stats struct {
	BytesRead  uint64
	BytesWrote uint64
}

// Adapter exposes an io.Reader or io.Writer to libav as an AVIOContext.
//
// The adapter must outlive every FormatContext which uses its IOContext.
type Adapter struct {
	source     any
	writable   bool
	bufferSize int
	ioContext  *astiav.IOContext

	bytesRead  atomic.Uint64
	bytesWrote atomic.Uint64

	failedLocker sync.Mutex
	failed       error

	closeOnce sync.Once
	closeErr  error
}

func NewReader(
	src io.Reader,
	bufferSize int,
) (*Adapter, error) {
	if src == nil {
		return nil, fmt.Errorf("the source is nil")
	}
	a := newAdapter(src, bufferSize)

	var seekFunc astiav.IOContextSeekFunc
	if _, ok := src.(io.Seeker); ok {
		seekFunc = a.Seek
	}

	ioContext, err := astiav.AllocIOContext(a.bufferSize, false, a.Fill, seekFunc, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate an IO context: %w", err)
	}
	a.ioContext = ioContext
	return a, nil
}

func NewWriter(
	dst io.Writer,
	bufferSize int,
) (*Adapter, error) {
	if dst == nil {
		return nil, fmt.Errorf("the destination is nil")
	}
	a := newAdapter(dst, bufferSize)
	a.writable = true

	var seekFunc astiav.IOContextSeekFunc
	if _, ok := dst.(io.Seeker); ok {
		seekFunc = a.Seek
	}

	ioContext, err := astiav.AllocIOContext(a.bufferSize, true, nil, seekFunc, a.Drain)
	if err != nil {
		return nil, fmt.Errorf("unable to allocate an IO context: %w", err)
	}
	a.ioContext = ioContext
	return a, nil
}

func newAdapter(source any, bufferSize int) *Adapter {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Adapter{
		source:     source,
		bufferSize: bufferSize,
	}
}

func (a *Adapter) IOContext() *astiav.IOContext {
	return a.ioContext
}

func (a *Adapter) BufferSize() int {
	return a.bufferSize
}

func (a *Adapter) IsSeekable() bool {
	_, ok := a.source.(io.Seeker)
	return ok
}

// Fill is the read callback. It returns io.EOF only when no bytes were read.
func (a *Adapter) Fill(b []byte) (int, error) {
	r, ok := a.source.(io.Reader)
	if !ok {
		return 0, types.ErrIO{Op: "read", Err: fmt.Errorf("the source is not readable")}
	}

	for attempt := 0; attempt < maxConsecutiveEmptyReads; attempt++ {
		n, err := r.Read(b)
		if n < 0 || n > len(b) {
			return 0, types.ErrIO{Op: "read", Err: fmt.Errorf("invalid read count %d", n)}
		}
		a.bytesRead.Add(uint64(n))
		switch {
		case n > 0:
			// the error (if any) will be reported again on the next call
			return n, nil
		case errors.Is(err, io.EOF):
			return 0, io.EOF
		case err != nil:
			return 0, a.setFailure(types.ErrIO{Op: "read", Err: err})
		}
	}
	return 0, a.setFailure(types.ErrIO{Op: "read", Err: io.ErrNoProgress})
}

// Drain is the write callback. A short write is a permanent failure.
func (a *Adapter) Drain(b []byte) (int, error) {
	if err := a.failure(); err != nil {
		return 0, err
	}

	w, ok := a.source.(io.Writer)
	if !ok {
		return 0, types.ErrIO{Op: "write", Err: fmt.Errorf("the destination is not writable")}
	}

	n, err := w.Write(b)
	if n > 0 {
		a.bytesWrote.Add(uint64(n))
	}
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return n, a.setFailure(types.ErrIO{Op: "write", Err: err})
	}
	return n, nil
}

func (a *Adapter) Seek(offset int64, whence int) (int64, error) {
	s, ok := a.source.(io.Seeker)
	if !ok {
		return -1, types.ErrIO{Op: "seek", Err: fmt.Errorf("the source is not seekable")}
	}

	if whence&avSeekSize != 0 {
		size, err := a.Size()
		if err != nil {
			return -1, err
		}
		return size, nil
	}
	whence &^= avSeekForce

	switch whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		return -1, types.ErrIO{Op: "seek", Err: fmt.Errorf("unexpected whence %d", whence)}
	}

	pos, err := s.Seek(offset, whence)
	if err != nil {
		return -1, types.ErrIO{Op: "seek", Err: err}
	}
	return pos, nil
}

// Size returns the total size of a seekable source and restores the position.
func (a *Adapter) Size() (int64, error) {
	s, ok := a.source.(io.Seeker)
	if !ok {
		return -1, types.ErrIO{Op: "size", Err: fmt.Errorf("the source is not seekable")}
	}

	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1, types.ErrIO{Op: "size", Err: err}
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return -1, types.ErrIO{Op: "size", Err: err}
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return -1, types.ErrIO{Op: "size", Err: err}
	}
	return end, nil
}

func (a *Adapter) Stats() Stats {
	return Stats{
		BytesRead:  a.bytesRead.Load(),
		BytesWrote: a.bytesWrote.Load(),
	}
}

// Err returns the first I/O failure, if any.
func (a *Adapter) Err() error {
	return a.failure()
}

func (a *Adapter) failure() error {
	a.failedLocker.Lock()
	defer a.failedLocker.Unlock()
	return a.failed
}

func (a *Adapter) setFailure(err error) error {
	a.failedLocker.Lock()
	defer a.failedLocker.Unlock()
	if a.failed == nil {
		a.failed = err
	}
	return a.failed
}

// Close frees the IO context and closes the source (if it is an io.Closer).
// Only the first call has an effect.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		if a.ioContext != nil {
			if a.writable {
				a.ioContext.Flush()
			}
			a.ioContext.Free()
			a.ioContext = nil
		}
		if c, ok := a.source.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.closeErr = types.ErrIO{Op: "close", Err: err}
			}
		}
	})
	return a.closeErr
}
