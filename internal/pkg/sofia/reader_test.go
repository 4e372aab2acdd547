package sofia

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectFrames iterates the reader to exhaustion, separating frames from
// recoverable diagnostics.
func collectFrames(t *testing.T, r io.Reader) ([]*Frame, []error) {
	t.Helper()
	reader := NewFrameReader(r)
	var frames []*Frame
	var errs []error
	for {
		f, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, errs
			}
			var fe *FrameError
			require.ErrorAs(t, err, &fe, "non-EOF errors must be recoverable")
			errs = append(errs, err)
			continue
		}
		frames = append(frames, f)
	}
}

func TestFrameReaderSingleFrame(t *testing.T) {
	data := []byte("recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n")
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, 5, frames[0].ByteCount)
}

func TestFrameReaderMultipleFrames(t *testing.T) {
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "sent 5 bytes to tcp/1.1.1.1:5060 at 00:00:00.000001:\nworld\x0B\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 2)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, Recv, frames[0].Direction)
	assert.Equal(t, []byte("world"), frames[1].Content)
	assert.Equal(t, Sent, frames[1].Direction)
}

func TestFrameReaderBoundaryInContent(t *testing.T) {
	// \x0B\n inside content, not followed by a valid header: not a boundary.
	var data []byte
	data = append(data, "recv 15 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\n"...)
	data = append(data, "he\x0B\nllo world!!"...)
	data = append(data, "\x0B\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("he\x0B\nllo world!!"), frames[0].Content)
}

func TestFrameReaderBoundaryInContentWrongCount(t *testing.T) {
	// Declared count overshoots the payload, so the primary check fails
	// and the fallback scan must find the boundary validated by the next
	// header.
	var data []byte
	data = append(data, "recv 99 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\n"...)
	data = append(data, "<tag>value\x0Btag></tag>"...)
	data = append(data, "\x0B\n"...)
	data = append(data, "recv 3 bytes from tcp/1.1.1.1:5060 at 00:00:01.000000:\nfoo\x0B\n"...)

	reader := NewFrameReader(bytes.NewReader(data))
	f1, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("<tag>value\x0Btag></tag>"), f1.Content)
	assert.Equal(t, 99, f1.ByteCount)

	f2, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("foo"), f2.Content)

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)

	stats := reader.Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Equal(t, uint64(1), stats.BoundaryScans)
	assert.Equal(t, uint64(1), stats.ByteCountMismatches)
}

func TestFrameReaderEOFWithoutBoundary(t *testing.T) {
	data := []byte("recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello")
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
}

func TestFrameReaderEOFWithLoneVT(t *testing.T) {
	data := []byte("recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B")
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
}

func TestFrameReaderPartialFirstFrame(t *testing.T) {
	var data []byte
	data = append(data, "partial garbage data"...)
	data = append(data, "\x0B\n"...)
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
}

func TestFrameReaderTruncatedLastFrame(t *testing.T) {
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "sent 3 bytes to tcp/1.1.1.1:5060 at 00:00:01.000000:\nbye"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 2)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, []byte("bye"), frames[1].Content)
}

func TestFrameReaderZeroLengthPayload(t *testing.T) {
	var data []byte
	data = append(data, "recv 0 bytes from udp/10.0.0.1:5060 at 00:00:00.000000:\n\x0B\n"...)
	data = append(data, "recv 3 bytes from udp/10.0.0.1:5060 at 00:00:01.000000:\nfoo\x0B\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 2)
	assert.Empty(t, errs)
	assert.Empty(t, frames[0].Content)
	assert.Equal(t, 0, frames[0].ByteCount)
	assert.Equal(t, []byte("foo"), frames[1].Content)
}

func TestFrameReaderFileConcatenation(t *testing.T) {
	// Simulates `cat dump.20 dump.21 | sofiacat`: file 2 starts mid-frame.
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "sent 5 bytes to tcp/1.1.1.1:5060 at 00:00:00.000001:\nworld\x0B\n"...)
	data = append(data, "some truncated SIP content from previous rotation\r\n\r\n"...)
	data = append(data, "\x0B\n"...)
	data = append(data, "recv 3 bytes from tcp/2.2.2.2:5060 at 01:00:00.000000:\nfoo\x0B\n"...)

	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 3)
	assert.Len(t, errs, 1)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, []byte("world"), frames[1].Content)
	assert.Equal(t, []byte("foo"), frames[2].Content)
	assert.Equal(t, "2.2.2.2:5060", frames[2].Address)
}

func TestFrameReaderSpliceGarbageMidStream(t *testing.T) {
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "Content-Type: application/sdp\r\n\r\nv=0\r\n"...)
	data = append(data, "\x0B\n"...)
	data = append(data, "sent 3 bytes to tcp/3.3.3.3:5060 at 02:00:00.000000:\nbar\x0B\n"...)

	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 2)
	assert.Len(t, errs, 1)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, []byte("bar"), frames[1].Content)
}

func TestFrameReaderResyncIdempotent(t *testing.T) {
	// Garbage between two valid frames costs one diagnostic and nothing else.
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "\xde\xad\xbe\xef garbage bytes\x0B\n"...)
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:01.000000:\nworld\x0B\n"...)

	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 2)
	assert.Len(t, errs, 1)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, []byte("world"), frames[1].Content)
}

func TestFrameReaderEmptyInput(t *testing.T) {
	frames, errs := collectFrames(t, bytes.NewReader(nil))
	assert.Empty(t, frames)
	assert.Empty(t, errs)
}

func TestFrameReaderOnlyGarbage(t *testing.T) {
	data := []byte("this is not a SIP trace dump at all, just garbage text")
	frames, errs := collectFrames(t, bytes.NewReader(data))
	assert.Empty(t, frames)
	assert.Empty(t, errs)
}

func TestFrameReaderDumpMarkerAtEOF(t *testing.T) {
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "dump started at Thu Aug 22 11:38:11 2024\n\n\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
}

func TestFrameReaderDumpMarkerMidStream(t *testing.T) {
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "dump started at Thu Aug 22 11:38:11 2024\n\n\n"...)
	data = append(data, "sent 3 bytes to tcp/2.2.2.2:5060 at 00:00:01.000000:\nbye\x0B\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 2)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Equal(t, []byte("bye"), frames[1].Content)
}

func TestFrameReaderDumpMarkerAtStart(t *testing.T) {
	var data []byte
	data = append(data, "dump started at Thu Aug 22 11:38:11 2024\n\n"...)
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
}

func TestFrameReaderNewlinePaddingAfterBoundary(t *testing.T) {
	tests := []struct {
		name    string
		padding string
	}{
		{"single newline", "\n"},
		{"multiple newlines", "\n\r\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data []byte
			data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
			data = append(data, tt.padding...)
			data = append(data, "sent 5 bytes to tcp/1.1.1.1:5060 at 00:00:00.000001:\nworld\x0B\n"...)
			frames, errs := collectFrames(t, bytes.NewReader(data))
			require.Len(t, frames, 2)
			assert.Empty(t, errs)
			assert.Equal(t, []byte("hello"), frames[0].Content)
			assert.Equal(t, []byte("world"), frames[1].Content)
		})
	}
}

func TestFrameReaderTrailingNewlinesAtEOF(t *testing.T) {
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "\n\n"...)
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, 1)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
}

func TestFrameReaderByteAccounting(t *testing.T) {
	// Every frame accepted by the primary check satisfies
	// len(Content) == ByteCount.
	var data []byte
	contents := []string{"hello", "", "a longer payload with\r\nline breaks\r\n"}
	for i, c := range contents {
		data = append(data, fmt.Sprintf("recv %d bytes from tcp/1.1.1.1:5060 at 00:00:0%d.000000:\n", len(c), i)...)
		data = append(data, c...)
		data = append(data, "\x0B\n"...)
	}
	frames, errs := collectFrames(t, bytes.NewReader(data))
	require.Len(t, frames, len(contents))
	assert.Empty(t, errs)
	for i, f := range frames {
		assert.Equal(t, f.ByteCount, len(f.Content))
		assert.Equal(t, []byte(contents[i]), f.Content)
	}
}

func TestFrameReaderOneByteReads(t *testing.T) {
	// Headers and boundaries spanning refill boundaries must still parse.
	var data []byte
	data = append(data, "recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\n"...)
	data = append(data, "sent 1440 bytes to tls/[2001:db8::1]:5061 at 00:00:01.000000:\n"...)
	data = append(data, bytes.Repeat([]byte("x"), 1440)...)
	data = append(data, "\x0B\n"...)

	frames, errs := collectFrames(t, iotest.OneByteReader(bytes.NewReader(data)))
	require.Len(t, frames, 2)
	assert.Empty(t, errs)
	assert.Equal(t, []byte("hello"), frames[0].Content)
	assert.Len(t, frames[1].Content, 1440)
	assert.Equal(t, TLS, frames[1].Transport)
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) > 0 {
		n := copy(p, f.data)
		f.data = f.data[n:]
		return n, nil
	}
	return 0, f.err
}

func TestFrameReaderFatalError(t *testing.T) {
	wantErr := errors.New("device yanked")
	src := &failingReader{
		data: []byte("recv 5 bytes from tcp/1.1.1.1:5060 at 00:00:00.000000:\nhello\x0B\nrecv 5 b"),
		err:  wantErr,
	}
	reader := NewFrameReader(src)

	f, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), f.Content)

	_, err = reader.Next()
	assert.ErrorIs(t, err, wantErr)
}
