// Package render formats pipeline output for the terminal. Styles degrade
// to plain text automatically when stdout is not a TTY.
package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/sipcraft/sofiacat/internal/pkg/sip"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

var (
	recvStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	sentStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	requestStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	provisionalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	successStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle         = lipgloss.NewStyle().Faint(true)
)

func direction(d sofia.Direction) string {
	if d == sofia.Sent {
		return sentStyle.Render("sent")
	}
	return recvStyle.Render("recv")
}

func startToken(m *sip.Message) string {
	if m.Request != nil {
		return requestStyle.Render(m.Request.Method)
	}
	text := fmt.Sprintf("%d %s", m.Response.Code, m.Response.Reason)
	switch {
	case m.Response.Code < 200:
		return provisionalStyle.Render(text)
	case m.Response.Code < 300:
		return successStyle.Render(text)
	default:
		return failureStyle.Render(text)
	}
}

// Summary renders the one-line default output for a parsed message:
// timestamp, direction, transport/address, method or status, Call-ID.
func Summary(m *sip.Message) string {
	callID, ok := m.CallID()
	if !ok {
		callID = "-"
	}
	return fmt.Sprintf("%s %s %s/%s %s %s",
		dimStyle.Render(m.Timestamp.String()),
		direction(m.Direction),
		m.Transport, m.Address,
		startToken(m),
		callID)
}

// Detail renders the envelope line that precedes full or headers-only
// message output.
func Detail(m *sip.Message) string {
	return fmt.Sprintf("%s %s %s/%s at %s (%d frames) %s",
		direction(m.Direction),
		m.Direction.Preposition(),
		m.Transport, m.Address,
		m.Timestamp,
		m.FrameCount,
		startToken(m))
}

// FrameLine renders a level-1 frame's header fields.
func FrameLine(f *sofia.Frame) string {
	return fmt.Sprintf("%s %d bytes %s %s/%s at %s",
		direction(f.Direction),
		f.ByteCount,
		f.Direction.Preposition(),
		f.Transport, f.Address,
		f.Timestamp)
}

// MessageLine renders a level-2 reassembled message's envelope.
func MessageLine(m *sofia.Message) string {
	return fmt.Sprintf("%s %s %s/%s at %s (%d frames, %d bytes)",
		direction(m.Direction),
		m.Direction.Preposition(),
		m.Transport, m.Address,
		m.Timestamp,
		m.FrameCount,
		len(m.Content))
}
