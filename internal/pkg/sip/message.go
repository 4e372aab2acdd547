// Package sip parses reassembled SIP messages into a typed start-line, an
// ordered header list, and a raw body. Only the prefix structure needed by
// consumers is parsed; bodies stay opaque byte sequences and no SIP grammar
// beyond the start-line is validated.
package sip

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

// Header is one name/value pair as it appeared on the wire. Order and
// duplicates are preserved; lookups are case-insensitive.
type Header struct {
	Name  string
	Value string
}

// RequestLine is the start-line of a SIP request.
type RequestLine struct {
	Method string
	URI    string
}

// StatusLine is the start-line of a SIP response.
type StatusLine struct {
	Code   int
	Reason string
}

// Message is a parsed SIP message plus the envelope of the dump frames it
// came from. Exactly one of Request or Response is set.
type Message struct {
	Direction  sofia.Direction
	Transport  sofia.Transport
	Address    string
	Timestamp  sofia.Timestamp
	Request    *RequestLine
	Response   *StatusLine
	Headers    []Header
	Body       []byte
	FrameCount int
}

// Summary renders the method of a request or the "code reason" of a
// response for one-line displays.
func (m *Message) Summary() string {
	if m.Request != nil {
		return m.Request.Method
	}
	return fmt.Sprintf("%d %s", m.Response.Code, m.Response.Reason)
}

// StartLine renders the full start-line without the trailing CRLF.
func (m *Message) StartLine() string {
	if m.Request != nil {
		return fmt.Sprintf("%s %s SIP/2.0", m.Request.Method, m.Request.URI)
	}
	return fmt.Sprintf("SIP/2.0 %d %s", m.Response.Code, m.Response.Reason)
}

// HeaderValue returns the first header matching name case-insensitively.
func (m *Message) HeaderValue(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

func (m *Message) headerCompact(name, compact string) (string, bool) {
	if v, ok := m.HeaderValue(name); ok {
		return v, true
	}
	return m.HeaderValue(compact)
}

// CallID returns the Call-ID header value (compact form i).
func (m *Message) CallID() (string, bool) {
	return m.headerCompact("Call-ID", "i")
}

// ContentType returns the Content-Type header value (compact form c).
func (m *Message) ContentType() (string, bool) {
	return m.headerCompact("Content-Type", "c")
}

// ContentLength returns the Content-Length header value (compact form l).
func (m *Message) ContentLength() (int, bool) {
	v, ok := m.headerCompact("Content-Length", "l")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// CSeq returns the CSeq header value.
func (m *Message) CSeq() (string, bool) {
	return m.HeaderValue("CSeq")
}

// Method returns the request method, or for responses the method recorded
// in the CSeq header.
func (m *Message) Method() (string, bool) {
	if m.Request != nil {
		return m.Request.Method, true
	}
	cseq, ok := m.CSeq()
	if !ok {
		return "", false
	}
	fields := strings.Fields(cseq)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

// Bytes re-renders the message as start-line, headers, blank line and body.
// For display only; the original wire bytes live on the level-2 message.
func (m *Message) Bytes() []byte {
	var out []byte
	out = append(out, m.StartLine()...)
	out = append(out, "\r\n"...)
	for _, h := range m.Headers {
		out = append(out, h.Name...)
		out = append(out, ": "...)
		out = append(out, h.Value...)
		out = append(out, "\r\n"...)
	}
	out = append(out, "\r\n"...)
	out = append(out, m.Body...)
	return out
}
