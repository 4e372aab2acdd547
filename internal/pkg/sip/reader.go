package sip

import (
	"io"

	"github.com/sipcraft/sofiacat/internal/pkg/reassembly"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

// ParsedReader is the top of the pipeline: it pulls reassembled messages,
// splits aggregated buffers, and parses each resulting message. A message
// that fails to parse yields (nil, *ParseError) and iteration continues
// with the next one.
type ParsedReader struct {
	messages *reassembly.MessageReader
	queue    []*sofia.Message
}

// NewParsedReader returns a reader producing parsed SIP messages from the
// dump stream r.
func NewParsedReader(r io.Reader) *ParsedReader {
	return &ParsedReader{messages: reassembly.NewMessageReader(r)}
}

// FrameStats exposes the underlying frame reader's diagnostic counters.
func (p *ParsedReader) FrameStats() sofia.ReaderStats {
	return p.messages.FrameStats()
}

// Next returns the next parsed message, (nil, *ParseError) for an
// unparseable one, io.EOF at the end of the stream, or a fatal upstream
// error.
func (p *ParsedReader) Next() (*Message, error) {
	for len(p.queue) == 0 {
		msg, err := p.messages.Next()
		if err != nil {
			return nil, err
		}
		p.queue = reassembly.Aggregate(msg)
	}

	msg := p.queue[0]
	p.queue = p.queue[1:]
	return Parse(msg)
}
