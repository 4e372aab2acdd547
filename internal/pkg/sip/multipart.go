package sip

import (
	"bytes"
	"strings"
)

// MimePart is one part of a multipart body.
type MimePart struct {
	Headers []Header
	Body    []byte
}

func (p *MimePart) headerValue(name string) (string, bool) {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// ContentType returns the part's Content-Type header.
func (p *MimePart) ContentType() (string, bool) {
	return p.headerValue("Content-Type")
}

// ContentID returns the part's Content-ID header.
func (p *MimePart) ContentID() (string, bool) {
	return p.headerValue("Content-ID")
}

// ContentDisposition returns the part's Content-Disposition header.
func (p *MimePart) ContentDisposition() (string, bool) {
	return p.headerValue("Content-Disposition")
}

// IsMultipart reports whether the message carries a multipart body.
func (m *Message) IsMultipart() bool {
	ct, ok := m.ContentType()
	return ok && strings.HasPrefix(strings.ToLower(ct), "multipart/")
}

// MultipartBoundary extracts the boundary parameter from the Content-Type
// header, quoted or unquoted.
func (m *Message) MultipartBoundary() (string, bool) {
	ct, ok := m.ContentType()
	if !ok {
		return "", false
	}
	return extractBoundary(ct)
}

// BodyParts splits a multipart body into its parts. Returns false when the
// message is not multipart or no boundary is declared.
func (m *Message) BodyParts() ([]MimePart, bool) {
	if !m.IsMultipart() {
		return nil, false
	}
	boundary, ok := m.MultipartBoundary()
	if !ok {
		return nil, false
	}
	return parseMultipartBody(m.Body, boundary), true
}

func extractBoundary(contentType string) (string, bool) {
	lower := strings.ToLower(contentType)
	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return "", false
	}
	after := contentType[idx+len("boundary="):]

	if rest, ok := strings.CutPrefix(after, `"`); ok {
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return "", false
		}
		return rest[:end], true
	}

	end := strings.IndexByte(after, ';')
	if end < 0 {
		end = len(after)
	}
	boundary := strings.TrimSpace(after[:end])
	if boundary == "" {
		return "", false
	}
	return boundary, true
}

func parseMultipartBody(body []byte, boundary string) []MimePart {
	open := []byte("--" + boundary)
	var parts []MimePart

	idx := bytes.Index(body, open)
	if idx < 0 {
		return parts
	}
	pos := idx + len(open)

	if bytes.HasPrefix(body[pos:], []byte("--")) {
		return parts
	}
	if bytes.HasPrefix(body[pos:], crlf) {
		pos += 2
	}

	for {
		next := bytes.Index(body[pos:], open)
		if next < 0 {
			break
		}

		// Strip the CRLF that precedes the delimiter.
		end := pos + next
		if end >= 2 && body[end-2] == '\r' && body[end-1] == '\n' {
			end -= 2
		}
		parts = append(parts, parseMimePart(body[pos:end]))

		pos = pos + next + len(open)
		if bytes.HasPrefix(body[pos:], []byte("--")) {
			break
		}
		if bytes.HasPrefix(body[pos:], crlf) {
			pos += 2
		}
	}

	return parts
}

func parseMimePart(data []byte) MimePart {
	if headerEnd := bytes.Index(data, crlfcrlf); headerEnd >= 0 {
		headers, err := parseHeaders(data[:headerEnd+2])
		if err != nil {
			return MimePart{Body: data}
		}
		return MimePart{Headers: headers, Body: data[headerEnd+4:]}
	}

	// Headers-only or body-only part: a colon on the first line means
	// headers with no body.
	firstLineEnd := bytes.Index(data, crlf)
	if firstLineEnd < 0 {
		firstLineEnd = len(data)
	}
	if bytes.IndexByte(data[:firstLineEnd], ':') >= 0 {
		headers, err := parseHeaders(data)
		if err == nil {
			return MimePart{Headers: headers}
		}
	}
	return MimePart{Body: data}
}
