package sofia

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/sipcraft/sofiacat/internal/pkg/constants"
	"github.com/sipcraft/sofiacat/internal/pkg/logger"
)

var (
	boundary   = []byte{0x0B, '\n'}
	dumpMarker = []byte("dump started at ")
)

// ReaderStats counts diagnostic events observed while reading frames. A
// byte-count mismatch is informational, never an error: it is counted for
// frames whose end came from the fallback scan or from the end of the stream.
type ReaderStats struct {
	Frames              uint64
	Resyncs             uint64
	BoundaryScans       uint64
	ByteCountMismatches uint64
}

// FrameReader splits a byte stream into frames on validated \x0B\n
// boundaries. Next yields one frame per call; recoverable framing problems
// surface as *FrameError with iteration continuing at the next valid
// header, io.EOF ends the sequence, and any other error is a fatal upstream
// failure.
type FrameReader struct {
	src       io.Reader
	buf       []byte
	eof       bool
	started   bool
	zeroReads int
	cfg       *Config
	stats     ReaderStats
}

// NewFrameReader returns a reader producing frames from r. The reader owns
// r for the duration of iteration.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		src: r,
		buf: make([]byte, 0, constants.InitialBufferCapacity),
		cfg: GetConfig(),
	}
}

// Stats returns the diagnostic counters accumulated so far.
func (r *FrameReader) Stats() ReaderStats {
	return r.stats
}

func (r *FrameReader) fill() error {
	if r.eof {
		return nil
	}
	old := len(r.buf)
	need := old + r.cfg.ReadChunkSize
	if cap(r.buf) < need {
		grown := make([]byte, old, need*2)
		copy(grown, r.buf)
		r.buf = grown
	}
	n, err := r.src.Read(r.buf[old:need])
	r.buf = r.buf[:old+n]
	if n > 0 {
		r.zeroReads = 0
	}
	switch {
	case errors.Is(err, io.EOF):
		r.eof = true
	case err != nil:
		return err
	case n == 0:
		r.zeroReads++
		if r.zeroReads >= 100 {
			return io.ErrNoProgress
		}
	}
	return nil
}

// drain discards the first n buffered bytes, compacting the buffer in place.
func (r *FrameReader) drain(n int) {
	r.buf = append(r.buf[:0], r.buf[n:]...)
}

// findBoundary locates the next \x0B\n at or after start that is followed
// by a valid frame header (or sits at EOF). Returns needMore when the
// buffered bytes cannot settle the question yet.
func (r *FrameReader) findBoundary(start int) (pos int, found, needMore bool) {
	search := start
	for {
		i := bytes.Index(r.buf[search:], boundary)
		if i < 0 {
			return 0, false, !r.eof
		}
		pos = search + i
		after := pos + 2
		if after >= len(r.buf) {
			// Boundary at the very end: real if the stream ends here,
			// otherwise we cannot validate the following header yet.
			if r.eof {
				return pos, true, false
			}
			return 0, false, true
		}
		if len(r.buf)-after < constants.MinHeaderLength && !r.eof {
			return 0, false, true
		}
		if isFrameHeader(r.buf[after:]) {
			return pos, true, false
		}
		// \x0B\n inside payload, not a boundary.
		search = pos + 2
	}
}

// skipToFirstHeader finds the first valid frame header in the buffer, for
// streams that begin mid-frame (grep/tail/xz extraction, rotated files).
func (r *FrameReader) skipToFirstHeader() (int, bool) {
	if isFrameHeader(r.buf) {
		return 0, true
	}
	search := 0
	for {
		i := bytes.Index(r.buf[search:], boundary)
		if i < 0 {
			return 0, false
		}
		after := search + i + 2
		if after < len(r.buf) && isFrameHeader(r.buf[after:]) {
			return after, true
		}
		search = after
	}
}

// skipDumpMarker consumes a "dump started at ..." line (plus trailing
// newlines) at the buffer start. mod_sofia writes these when tracing
// restarts; they are not frames.
func (r *FrameReader) skipDumpMarker() bool {
	if !bytes.HasPrefix(r.buf, dumpMarker) {
		return false
	}
	skip := len(r.buf)
	if nl := bytes.IndexByte(r.buf, '\n'); nl >= 0 {
		skip = nl + 1
		for skip < len(r.buf) && r.buf[skip] == '\n' {
			skip++
		}
	}
	logger.Info("skipped dump restart marker", "skipped_bytes", skip)
	r.drain(skip)
	return true
}

// Next returns the next frame. It returns (nil, *FrameError) for a
// recoverable framing problem, (nil, io.EOF) at the end of the stream, and
// (nil, err) for a fatal upstream read error.
func (r *FrameReader) Next() (*Frame, error) {
	for len(r.buf) == 0 && !r.eof {
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
	if len(r.buf) == 0 {
		return nil, io.EOF
	}

	// Before the first frame, resynchronise to the first valid header.
	if !r.started {
		for {
			if r.skipDumpMarker() {
				continue
			}
			off, ok := r.skipToFirstHeader()
			if ok {
				if off > 0 {
					logger.Warn("skipped partial prefix", "skipped_bytes", off)
					r.stats.Resyncs++
					r.drain(off)
				}
				r.started = true
				break
			}
			if r.eof {
				logger.Debug("no valid frame header found in input")
				return nil, io.EOF
			}
			if err := r.fill(); err != nil {
				return nil, err
			}
		}
	}

	// Strip inter-frame newline padding (\n or \r\n between frames).
	strip := 0
	for strip < len(r.buf) {
		if r.buf[strip] == '\n' {
			strip++
		} else if strip+1 < len(r.buf) && r.buf[strip] == '\r' && r.buf[strip+1] == '\n' {
			strip += 2
		} else {
			break
		}
	}
	if strip > 0 {
		r.drain(strip)
		if len(r.buf) == 0 {
			return r.Next()
		}
	}

	// Parse the frame header, refilling if the line spans the buffer end.
	var h frameHeader
	for {
		var err error
		h, err = parseFrameHeader(r.buf)
		if err == nil {
			break
		}
		if errors.Is(err, errShortHeader) {
			if r.eof {
				logger.Debug("truncated frame header at EOF")
				return nil, io.EOF
			}
			if ferr := r.fill(); ferr != nil {
				return nil, ferr
			}
			continue
		}
		if r.skipDumpMarker() {
			return r.Next()
		}
		// Resync: skip to the next boundary-validated header, or failing
		// that the next line.
		preview := headerPreview(r.buf)
		var skip int
		if pos, found, _ := r.findBoundary(0); found {
			skip = pos + 2
		} else if nl := bytes.IndexByte(r.buf, '\n'); nl >= 0 {
			skip = nl + 1
		} else {
			skip = len(r.buf)
		}
		logger.Warn("discarding unparseable bytes",
			"skipped_bytes", skip,
			"header", preview)
		r.drain(skip)
		r.stats.Resyncs++
		return nil, err
	}

	if h.byteCount > r.cfg.MaxFrameSize {
		logger.Warn("declared byte count exceeds maximum frame size",
			"byte_count", h.byteCount,
			"max", r.cfg.MaxFrameSize)
		r.drain(h.length)
		r.stats.Resyncs++
		return nil, frameError("declared byte count exceeds maximum frame size")
	}

	contentStart := h.length
	expectedEnd := contentStart + h.byteCount

	for {
		for len(r.buf) <= expectedEnd+1 && !r.eof {
			if err := r.fill(); err != nil {
				return nil, err
			}
		}

		// Primary check: boundary exactly at the declared byte count. This
		// also absorbs garbage after the boundary in concatenated streams,
		// because the next header lookup starts fresh.
		if expectedEnd < len(r.buf) && r.buf[expectedEnd] == 0x0B {
			hasNewline := expectedEnd+1 < len(r.buf) && r.buf[expectedEnd+1] == '\n'
			atEOF := expectedEnd+1 >= len(r.buf) && r.eof
			if hasNewline || atEOF {
				content := append([]byte(nil), r.buf[contentStart:expectedEnd]...)
				if hasNewline {
					r.drain(expectedEnd + 2)
				} else {
					r.drain(expectedEnd + 1)
				}
				return r.frame(h, content), nil
			}
		}

		// Fallback: scan for a boundary followed by a valid header. Handles
		// payloads that contain a stray \x0B\n and wrong declared counts.
		pos, found, needMore := r.findBoundary(contentStart)
		if found {
			content := append([]byte(nil), r.buf[contentStart:pos]...)
			r.drain(pos + 2)
			r.stats.BoundaryScans++
			return r.frame(h, content), nil
		}

		if r.eof {
			// Last frame: terminated by EOF, with or without a lone \x0B.
			end := len(r.buf)
			if end > contentStart && r.buf[end-1] == 0x0B {
				end--
			}
			content := append([]byte(nil), r.buf[contentStart:end]...)
			r.buf = r.buf[:0]
			return r.frame(h, content), nil
		}

		if needMore && len(r.buf)-contentStart > r.cfg.MaxFrameSize {
			logger.Warn("frame exceeds maximum size, discarding buffered bytes",
				"buffered", len(r.buf)-contentStart,
				"max", r.cfg.MaxFrameSize)
			r.buf = r.buf[:0]
			r.stats.Resyncs++
			return nil, frameError("frame exceeds maximum size")
		}

		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

// frame finalizes an emitted frame and records the byte accounting.
func (r *FrameReader) frame(h frameHeader, content []byte) *Frame {
	r.stats.Frames++
	if content == nil {
		content = []byte{}
	}
	if len(content) != h.byteCount {
		r.stats.ByteCountMismatches++
		logger.Debug("frame content size mismatch",
			"frame", r.stats.Frames,
			"expected", h.byteCount,
			"actual", len(content))
	}
	return &Frame{
		Direction: h.direction,
		ByteCount: h.byteCount,
		Transport: h.transport,
		Address:   h.address,
		Timestamp: h.timestamp,
		Content:   content,
	}
}

// headerPreview renders the first line of data printably for diagnostics.
func headerPreview(data []byte) string {
	n := len(data)
	if n > constants.HeaderPreviewLength {
		n = constants.HeaderPreviewLength
	}
	var sb strings.Builder
	for _, b := range data[:n] {
		if b == '\n' {
			break
		}
		if b >= 0x20 && b < 0x7F {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}
