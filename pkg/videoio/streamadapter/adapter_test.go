package streamadapter

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/videoio/pkg/videoio/types"
)

type stallingReader struct {
	calls int
}

func (r *stallingReader) Read([]byte) (int, error) {
	r.calls++
	return 0, nil
}

type shortWriter struct {
	bytes.Buffer
	limit int
}

func (w *shortWriter) Write(b []byte) (int, error) {
	if len(b) > w.limit {
		b = b[:w.limit]
	}
	return w.Buffer.Write(b)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

type closeCounter struct {
	io.Reader
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestFillReadsUntilEOF(t *testing.T) {
	a := newAdapter(bytes.NewReader([]byte("hello")), 4)
	require.Equal(t, 4, a.BufferSize())

	buf := make([]byte, a.BufferSize())
	n, err := a.Fill(buf)
	require.NoError(t, err)
	require.Equal(t, "hell", string(buf[:n]))

	n, err = a.Fill(buf)
	require.NoError(t, err)
	require.Equal(t, "o", string(buf[:n]))

	for i := 0; i < 3; i++ {
		n, err = a.Fill(buf)
		require.ErrorIs(t, err, io.EOF)
		require.Zero(t, n)
	}
	require.Equal(t, uint64(5), a.Stats().BytesRead)
}

func TestFillNoProgress(t *testing.T) {
	r := &stallingReader{}
	a := newAdapter(r, 0)
	require.Equal(t, DefaultBufferSize, a.BufferSize())

	_, err := a.Fill(make([]byte, 16))
	require.ErrorIs(t, err, io.ErrNoProgress)
	require.ErrorAs(t, err, &types.ErrIO{})
	require.Equal(t, maxConsecutiveEmptyReads, r.calls)
}

func TestFillError(t *testing.T) {
	a := newAdapter(failingReader{}, 0)
	_, err := a.Fill(make([]byte, 16))
	var ioErr types.ErrIO
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "read", ioErr.Op)
	require.NotErrorIs(t, err, io.EOF)
}

func TestDrainShortWriteIsSticky(t *testing.T) {
	w := &shortWriter{limit: 3}
	a := newAdapter(w, 0)

	n, err := a.Drain([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = a.Drain([]byte("defg"))
	require.ErrorIs(t, err, io.ErrShortWrite)

	// even a write that would fit fails now
	_, err = a.Drain([]byte("h"))
	require.ErrorIs(t, err, io.ErrShortWrite)
	require.Equal(t, "abcdef", w.String())
}

func TestDrainNotWritable(t *testing.T) {
	a := newAdapter(bytes.NewReader(nil), 0)
	_, err := a.Drain([]byte("x"))
	require.ErrorAs(t, err, &types.ErrIO{})
}

func TestSeek(t *testing.T) {
	a := newAdapter(bytes.NewReader([]byte("0123456789")), 0)
	require.True(t, a.IsSeekable())

	pos, err := a.Seek(4, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	size, err := a.Seek(0, avSeekSize)
	require.NoError(t, err)
	require.Equal(t, int64(10), size)

	// AVSEEK_SIZE must not move the position
	buf := make([]byte, 2)
	n, err := a.Fill(buf)
	require.NoError(t, err)
	require.Equal(t, "45", string(buf[:n]))

	pos, err = a.Seek(-1, io.SeekEnd|avSeekForce)
	require.NoError(t, err)
	require.Equal(t, int64(9), pos)

	_, err = a.Seek(0, 42)
	require.Error(t, err)
}

func TestSeekNotSeekable(t *testing.T) {
	a := newAdapter(io.MultiReader(bytes.NewReader(nil)), 0)
	require.False(t, a.IsSeekable())
	_, err := a.Seek(0, io.SeekStart)
	require.ErrorAs(t, err, &types.ErrIO{})
	_, err = a.Size()
	require.Error(t, err)
}

func TestCloseOnce(t *testing.T) {
	c := &closeCounter{Reader: bytes.NewReader(nil)}
	a := newAdapter(c, 0)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.Equal(t, 1, c.closed)
}
