package sofia

import (
	"bytes"
	"errors"

	"github.com/sipcraft/sofiacat/internal/pkg/constants"
)

// errShortHeader signals that the buffered bytes end before the header
// line's terminating newline; more input may complete it.
var errShortHeader = errors.New("header line incomplete")

// frameHeader holds the parsed fields of one frame header line.
type frameHeader struct {
	direction Direction
	byteCount int
	transport Transport
	address   string
	timestamp Timestamp
	length    int // header line length including the trailing \n
}

// parseFrameHeader parses a frame header line from the start of data.
//
// Expected format:
//
//	(recv|sent) <N> bytes (from|to) <transport>/<address> at <timestamp>:\n
//
// Returns errShortHeader when no newline terminates the line yet, or a
// *FrameError describing the first constraint that failed.
func parseFrameHeader(data []byte) (frameHeader, error) {
	var h frameHeader

	newline := bytes.IndexByte(data, '\n')
	if newline < 0 {
		return h, errShortHeader
	}
	h.length = newline + 1

	line := data[:newline]
	line = bytes.TrimSuffix(line, []byte("\r"))
	var ok bool
	if line, ok = bytes.CutSuffix(line, []byte(":")); !ok {
		return h, frameError("header does not end with ':'")
	}

	// Direction: both "recv " and "sent " are 5 bytes.
	switch {
	case bytes.HasPrefix(line, []byte("recv ")):
		h.direction = Recv
	case bytes.HasPrefix(line, []byte("sent ")):
		h.direction = Sent
	default:
		return h, frameError("expected 'recv' or 'sent'")
	}
	line = line[5:]

	// Byte count: digits until the next space.
	space := bytes.IndexByte(line, ' ')
	if space < 0 {
		return h, frameError("no space after byte count")
	}
	n, ok := parseDecimal(line[:space], constants.MaxByteCountDigits)
	if !ok {
		return h, frameError("invalid byte count")
	}
	h.byteCount = n
	line = line[space+1:]

	// "bytes from " pairs with recv, "bytes to " with sent.
	marker := []byte("bytes from ")
	if h.direction == Sent {
		marker = []byte("bytes to ")
	}
	if !bytes.HasPrefix(line, marker) {
		return h, frameError("expected 'bytes " + h.direction.Preposition() + " '")
	}
	line = line[len(marker):]

	switch {
	case bytes.HasPrefix(line, []byte("tcp/")):
		h.transport = TCP
	case bytes.HasPrefix(line, []byte("udp/")):
		h.transport = UDP
	case bytes.HasPrefix(line, []byte("tls/")):
		h.transport = TLS
	case bytes.HasPrefix(line, []byte("wss/")):
		h.transport = WSS
	default:
		return h, frameError("unknown transport")
	}
	line = line[4:]

	// Address: everything up to " at ".
	at := bytes.Index(line, []byte(" at "))
	if at < 0 {
		return h, frameError("no ' at ' in header")
	}
	h.address = string(line[:at])
	line = line[at+4:]

	ts, ok := parseTimestamp(line)
	if !ok {
		return h, frameError("invalid timestamp")
	}
	h.timestamp = ts

	return h, nil
}

// isFrameHeader reports whether data begins like a valid frame header.
// Used to validate \x0B\n boundaries before accepting them.
func isFrameHeader(data []byte) bool {
	if len(data) < constants.MinHeaderLength {
		return false
	}
	if !bytes.HasPrefix(data, []byte("recv ")) && !bytes.HasPrefix(data, []byte("sent ")) {
		return false
	}
	rest := data[5:]
	space := bytes.IndexByte(rest, ' ')
	if space <= 0 || space > constants.MaxByteCountDigits {
		return false
	}
	for _, b := range rest[:space] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return bytes.HasPrefix(rest[space:], []byte(" bytes "))
}

// parseDecimal parses an unsigned decimal integer of at most maxDigits
// digits. Operates on raw bytes; no UTF-8 assumption.
func parseDecimal(b []byte, maxDigits int) (int, bool) {
	if len(b) == 0 || len(b) > maxDigits {
		return 0, false
	}
	val := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		val = val*10 + int(c-'0')
	}
	return val, true
}

// parseTimestamp parses either HH:MM:SS.uuuuuu or
// YYYY-MM-DD HH:MM:SS.uuuuuu from the start of b.
func parseTimestamp(b []byte) (Timestamp, bool) {
	// Full datetime first: YYYY-MM-DD HH:MM:SS.uuuuuu (min 26 bytes).
	if len(b) >= 26 && b[4] == '-' && b[7] == '-' && b[10] == ' ' {
		year, ok1 := parseDecimal(b[0:4], 4)
		month, ok2 := parseDecimal(b[5:7], 2)
		day, ok3 := parseDecimal(b[8:10], 2)
		if ok1 && ok2 && ok3 {
			ts, ok := parseTimePart(b[11:])
			if ok {
				ts.Year, ts.Month, ts.Day = year, month, day
				ts.HasDate = true
				return ts, true
			}
		}
		return Timestamp{}, false
	}
	return parseTimePart(b)
}

// parseTimePart parses HH:MM:SS.uuuuuu from the start of b.
func parseTimePart(b []byte) (Timestamp, bool) {
	if len(b) < 15 {
		return Timestamp{}, false
	}
	if b[2] != ':' || b[5] != ':' || b[8] != '.' {
		return Timestamp{}, false
	}
	hour, ok1 := parseDecimal(b[0:2], 2)
	min, ok2 := parseDecimal(b[3:5], 2)
	sec, ok3 := parseDecimal(b[6:8], 2)
	usec, ok4 := parseDecimal(b[9:15], 6)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Timestamp{}, false
	}
	return Timestamp{Hour: hour, Min: min, Sec: sec, Usec: usec}, true
}
