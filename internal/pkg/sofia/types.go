// Package sofia parses FreeSWITCH mod_sofia SIP trace dump files. The dump
// is a sequence of frames, each a header line followed by raw payload bytes
// and a \x0B\n boundary. FrameReader recovers frames from an arbitrary byte
// stream, tolerating truncated prefixes, concatenated files, and boundary
// bytes that appear inside payloads.
package sofia

import "fmt"

// Direction indicates whether mod_sofia logged the payload as received or
// sent by the FreeSWITCH instance.
type Direction int

const (
	Recv Direction = iota
	Sent
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "recv"
}

// Preposition returns the word that pairs with the direction in a frame
// header line: "recv ... from", "sent ... to".
func (d Direction) Preposition() string {
	if d == Sent {
		return "to"
	}
	return "from"
}

// Transport is the transport protocol recorded in a frame header.
type Transport int

const (
	TCP Transport = iota
	UDP
	TLS
	WSS
)

func (t Transport) String() string {
	switch t {
	case UDP:
		return "udp"
	case TLS:
		return "tls"
	case WSS:
		return "wss"
	default:
		return "tcp"
	}
}

// Stream reports whether the transport is stream-oriented and therefore
// subject to reassembly. UDP datagrams are always complete messages.
func (t Transport) Stream() bool {
	return t != UDP
}

// Timestamp is the time-of-day recorded in a frame header, with an optional
// calendar date for dump formats that include one. It is preserved verbatim;
// the pipeline never does arithmetic on it. Ordering of messages is by
// upstream byte position, never by timestamp.
type Timestamp struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Min     int
	Sec     int
	Usec    int
	HasDate bool
}

func (t Timestamp) String() string {
	if t.HasDate {
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
			t.Year, t.Month, t.Day, t.Hour, t.Min, t.Sec, t.Usec)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Hour, t.Min, t.Sec, t.Usec)
}

// Frame is one physical dump record: the parsed header fields plus the raw
// payload bytes between the header's newline and the frame boundary.
type Frame struct {
	Direction Direction
	ByteCount int
	Transport Transport
	Address   string
	Timestamp Timestamp
	Content   []byte
}

// Message is one reassembled logical SIP message: the concatenated content
// of consecutive frames sharing (direction, transport, address). The
// envelope is copied from the first contributing frame.
type Message struct {
	Direction  Direction
	Transport  Transport
	Address    string
	Timestamp  Timestamp
	Content    []byte
	FrameCount int
}
