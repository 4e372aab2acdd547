// Package reassembly turns frames back into logical SIP messages. Stream
// transports (tcp, tls, wss) may split one message across several frames;
// MessageReader concatenates consecutive frames that share an envelope.
// The inverse also happens: several SIP messages packed into one reassembled
// buffer, which Aggregate splits apart again using Content-Length.
package reassembly

import (
	"errors"
	"io"

	"github.com/sipcraft/sofiacat/internal/pkg/logger"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

// MessageReader groups consecutive frames with identical
// (direction, transport, address) into single messages. UDP datagrams are
// complete messages and pass through one-to-one; they also terminate any
// pending group.
type MessageReader struct {
	frames  *sofia.FrameReader
	pending *group
	queued  *sofia.Message
	done    bool
}

type group struct {
	direction  sofia.Direction
	transport  sofia.Transport
	address    string
	timestamp  sofia.Timestamp
	content    []byte
	frameCount int
}

func (g *group) matches(f *sofia.Frame) bool {
	return g.direction == f.Direction &&
		g.transport == f.Transport &&
		g.address == f.Address
}

// NewMessageReader returns a reader producing reassembled messages from the
// dump stream r.
func NewMessageReader(r io.Reader) *MessageReader {
	return &MessageReader{frames: sofia.NewFrameReader(r)}
}

// FrameStats exposes the underlying frame reader's diagnostic counters.
func (m *MessageReader) FrameStats() sofia.ReaderStats {
	return m.frames.Stats()
}

// Next returns the next reassembled message, io.EOF at the end of the
// stream, or a fatal upstream error. Frames carrying recoverable header
// diagnostics are skipped without breaking the pending group.
func (m *MessageReader) Next() (*sofia.Message, error) {
	if m.queued != nil {
		msg := m.queued
		m.queued = nil
		return msg, nil
	}
	if m.done {
		return nil, io.EOF
	}

	for {
		f, err := m.frames.Next()
		if err != nil {
			var fe *sofia.FrameError
			if errors.As(err, &fe) {
				logger.Debug("skipping frame with recoverable error", "reason", fe.Reason)
				continue
			}
			if errors.Is(err, io.EOF) {
				m.done = true
				if m.pending != nil {
					return m.flush(), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		if !f.Transport.Stream() {
			msg := &sofia.Message{
				Direction:  f.Direction,
				Transport:  f.Transport,
				Address:    f.Address,
				Timestamp:  f.Timestamp,
				Content:    f.Content,
				FrameCount: 1,
			}
			if m.pending != nil {
				m.queued = msg
				return m.flush(), nil
			}
			return msg, nil
		}

		if m.pending == nil {
			m.start(f)
			continue
		}
		if !m.pending.matches(f) {
			flushed := m.flush()
			m.start(f)
			return flushed, nil
		}

		logger.Debug("buffering stream frame",
			"frame", m.pending.frameCount+1,
			"bytes", len(f.Content),
			"address", f.Address)
		m.pending.content = append(m.pending.content, f.Content...)
		m.pending.frameCount++
	}
}

func (m *MessageReader) start(f *sofia.Frame) {
	m.pending = &group{
		direction:  f.Direction,
		transport:  f.Transport,
		address:    f.Address,
		timestamp:  f.Timestamp,
		content:    f.Content,
		frameCount: 1,
	}
}

func (m *MessageReader) flush() *sofia.Message {
	g := m.pending
	m.pending = nil
	if g.frameCount > 1 {
		logger.Debug("reassembled stream message",
			"frame_count", g.frameCount,
			"bytes", len(g.content),
			"address", g.address)
	}
	return &sofia.Message{
		Direction:  g.direction,
		Transport:  g.transport,
		Address:    g.address,
		Timestamp:  g.timestamp,
		Content:    g.content,
		FrameCount: g.frameCount,
	}
}
