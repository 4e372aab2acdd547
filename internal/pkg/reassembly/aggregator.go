package reassembly

import (
	"bytes"
	"strconv"

	"github.com/sipcraft/sofiacat/internal/pkg/logger"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
)

// Aggregate splits a reassembled message into the SIP messages packed
// back-to-back inside it, using Content-Length as the only separator. Each
// split message carries the parent's envelope and frame count unchanged.
// A buffer without an end-of-headers marker or without a parseable
// Content-Length is returned whole.
func Aggregate(msg *sofia.Message) []*sofia.Message {
	buf := msg.Content
	var out []*sofia.Message

	emit := func(content []byte) {
		out = append(out, &sofia.Message{
			Direction:  msg.Direction,
			Transport:  msg.Transport,
			Address:    msg.Address,
			Timestamp:  msg.Timestamp,
			Content:    content,
			FrameCount: msg.FrameCount,
		})
	}

	for len(buf) > 0 {
		if len(out) > 0 {
			// Tolerate padding between back-to-back messages, then make
			// sure the remainder starts at a SIP start-line.
			trimmed := 0
			for trimmed < len(buf) && isLinearWhitespace(buf[trimmed]) {
				trimmed++
			}
			buf = buf[trimmed:]
			if len(buf) == 0 {
				break
			}
			if !isSIPStart(buf) {
				off, ok := findSIPStart(buf)
				if !ok {
					// Leave rejection of the residue to the parser.
					emit(buf)
					break
				}
				logger.Warn("skipped non-SIP bytes between aggregated messages",
					"skipped_bytes", off,
					"address", msg.Address)
				buf = buf[off:]
			}
		}

		headerEnd := bytes.Index(buf, crlfcrlf)
		if headerEnd < 0 {
			emit(buf)
			break
		}
		bodyStart := headerEnd + len(crlfcrlf)

		cl, ok := findContentLength(buf[:headerEnd])
		if !ok {
			emit(buf)
			break
		}

		bodyEnd := bodyStart + cl
		if bodyEnd > len(buf) {
			logger.Warn("content-length exceeds buffer",
				"content_length", cl,
				"available", len(buf)-bodyStart,
				"address", msg.Address)
			emit(buf)
			break
		}

		emit(buf[:bodyEnd])
		buf = buf[bodyEnd:]
	}

	if len(out) > 1 {
		logger.Debug("split aggregated buffer",
			"messages", len(out),
			"bytes", len(msg.Content),
			"address", msg.Address)
	}
	return out
}

func isLinearWhitespace(b byte) bool {
	return b == '\r' || b == '\n' || b == ' ' || b == '\t'
}

// findContentLength scans header lines (already bounded to before the blank
// line) for the first Content-Length or compact-form l header.
func findContentLength(headers []byte) (int, bool) {
	pos := 0
	for pos < len(headers) {
		lineEnd := bytes.Index(headers[pos:], crlf)
		if lineEnd < 0 {
			lineEnd = len(headers) - pos
		}
		line := headers[pos : pos+lineEnd]

		if v, ok := headerValue(line, "Content-Length"); ok {
			return parseContentLength(v)
		}
		if v, ok := headerValue(line, "l"); ok {
			return parseContentLength(v)
		}

		pos += lineEnd + len(crlf)
	}
	return 0, false
}

// headerValue returns the value of line when its name matches name
// case-insensitively.
func headerValue(line []byte, name string) ([]byte, bool) {
	if len(line) <= len(name) {
		return nil, false
	}
	if !bytes.EqualFold(line[:len(name)], []byte(name)) {
		return nil, false
	}
	if line[len(name)] != ':' {
		return nil, false
	}
	return bytes.Trim(line[len(name)+1:], " \t"), true
}

func parseContentLength(v []byte) (int, bool) {
	n, err := strconv.Atoi(string(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

var sipMethods = [][]byte{
	[]byte("INVITE "),
	[]byte("ACK "),
	[]byte("BYE "),
	[]byte("CANCEL "),
	[]byte("OPTIONS "),
	[]byte("REGISTER "),
	[]byte("PRACK "),
	[]byte("SUBSCRIBE "),
	[]byte("NOTIFY "),
	[]byte("PUBLISH "),
	[]byte("INFO "),
	[]byte("REFER "),
	[]byte("MESSAGE "),
	[]byte("UPDATE "),
}

// isSIPStart reports whether data begins with a SIP request or response
// start-line.
func isSIPStart(data []byte) bool {
	if bytes.HasPrefix(data, []byte("SIP/2.0 ")) {
		return true
	}
	for _, m := range sipMethods {
		if bytes.HasPrefix(data, m) {
			return true
		}
	}
	return false
}

// findSIPStart scans for the first SIP start-line at a CRLF boundary.
func findSIPStart(data []byte) (int, bool) {
	if isSIPStart(data) {
		return 0, true
	}
	pos := 0
	for {
		off := bytes.Index(data[pos:], crlf)
		if off < 0 {
			return 0, false
		}
		candidate := pos + off + len(crlf)
		if candidate >= len(data) {
			return 0, false
		}
		if isSIPStart(data[candidate:]) {
			return candidate, true
		}
		pos = candidate
	}
}
