package sip

import (
	"bytes"
	"strconv"

	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")
)

// ParseError reports a message whose prefix is not a parseable SIP
// start-line or header block. It carries the raw reassembled message so the
// consumer can skip or forward it; the pipeline keeps iterating.
type ParseError struct {
	Reason string
	Raw    *sofia.Message
}

func (e *ParseError) Error() string {
	return "invalid SIP message: " + e.Reason
}

// Parse splits a reassembled message into start-line, ordered headers and
// body. The body is the raw byte sequence after the first blank line; a
// message without a blank line has headers only and an empty body.
func Parse(msg *sofia.Message) (*Message, error) {
	content := msg.Content

	firstLineEnd := bytes.Index(content, crlf)
	if firstLineEnd < 0 {
		return nil, &ParseError{Reason: "no CRLF in message", Raw: msg}
	}

	out := &Message{
		Direction:  msg.Direction,
		Transport:  msg.Transport,
		Address:    msg.Address,
		Timestamp:  msg.Timestamp,
		FrameCount: msg.FrameCount,
	}

	if err := parseStartLine(content[:firstLineEnd], out, msg); err != nil {
		return nil, err
	}

	var headerBytes, body []byte
	headerEnd := bytes.Index(content, crlfcrlf)
	switch {
	case headerEnd < 0:
		// No blank line: the rest is headers, the body is empty.
		headerBytes = content[firstLineEnd+2:]
	case headerEnd > firstLineEnd+1:
		headerBytes = content[firstLineEnd+2 : headerEnd]
		body = content[headerEnd+4:]
	default:
		// Blank line immediately after the start-line.
		body = content[headerEnd+4:]
	}

	headers, err := parseHeaders(headerBytes)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: msg}
	}
	out.Headers = headers
	out.Body = body
	return out, nil
}

func parseStartLine(line []byte, out *Message, raw *sofia.Message) error {
	if bytes.HasPrefix(line, []byte("SIP/2.0 ")) {
		return parseStatusLine(line, out, raw)
	}
	return parseRequestLine(line, out, raw)
}

// parseStatusLine parses "SIP/2.0 <code> <reason>"; the reason phrase may
// be empty.
func parseStatusLine(line []byte, out *Message, raw *sofia.Message) error {
	rest := line[len("SIP/2.0 "):]

	codeBytes := rest
	var reason []byte
	if sp := bytes.IndexByte(rest, ' '); sp >= 0 {
		codeBytes = rest[:sp]
		reason = rest[sp+1:]
	}
	code, err := strconv.Atoi(string(codeBytes))
	if err != nil {
		return &ParseError{Reason: "invalid status code", Raw: raw}
	}
	out.Response = &StatusLine{Code: code, Reason: string(reason)}
	return nil
}

// parseRequestLine parses "<METHOD> <URI> SIP/2.0".
func parseRequestLine(line []byte, out *Message, raw *sofia.Message) error {
	firstSpace := bytes.IndexByte(line, ' ')
	if firstSpace < 0 {
		return &ParseError{Reason: "no space in request line", Raw: raw}
	}
	method := line[:firstSpace]
	rest := line[firstSpace+1:]

	lastSpace := bytes.LastIndexByte(rest, ' ')
	if lastSpace < 0 {
		return &ParseError{Reason: "no SIP version in request line", Raw: raw}
	}
	if !bytes.Equal(rest[lastSpace+1:], []byte("SIP/2.0")) {
		return &ParseError{Reason: "unsupported SIP version", Raw: raw}
	}
	out.Request = &RequestLine{
		Method: string(method),
		URI:    string(rest[:lastSpace]),
	}
	return nil
}

// parseHeaders parses the header block, joining folded continuation lines
// with a single space and trimming linear whitespace around values. Header
// order and duplicates are preserved.
func parseHeaders(data []byte) ([]Header, error) {
	var headers []Header
	pos := 0
	for pos < len(data) {
		lineEnd := bytes.Index(data[pos:], crlf)
		next := 0
		if lineEnd < 0 {
			lineEnd = len(data) - pos
			next = pos + lineEnd
		} else {
			next = pos + lineEnd + 2
		}
		line := append([]byte(nil), data[pos:pos+lineEnd]...)
		pos = next

		// Folded continuation lines start with SP or HT.
		for pos < len(data) && (data[pos] == ' ' || data[pos] == '\t') {
			contEnd := bytes.Index(data[pos:], crlf)
			if contEnd < 0 {
				contEnd = len(data) - pos
				next = pos + contEnd
			} else {
				next = pos + contEnd + 2
			}
			cont := bytes.Trim(data[pos:pos+contEnd], " \t")
			line = append(line, ' ')
			line = append(line, cont...)
			pos = next
		}

		if len(line) == 0 {
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errMalformedHeader(line)
		}
		name := bytes.TrimRight(line[:colon], " \t")
		if len(name) == 0 {
			return nil, errMalformedHeader(line)
		}
		value := bytes.Trim(line[colon+1:], " \t")
		headers = append(headers, Header{Name: string(name), Value: string(value)})
	}
	return headers, nil
}

type malformedHeaderError struct {
	line string
}

func (e *malformedHeaderError) Error() string {
	return "malformed header line: " + e.line
}

func errMalformedHeader(line []byte) error {
	const maxPreview = 60
	preview := line
	if len(preview) > maxPreview {
		preview = preview[:maxPreview]
	}
	return &malformedHeaderError{line: string(preview)}
}
