package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipcraft/sofiacat/internal/pkg/sip"
	"github.com/sipcraft/sofiacat/internal/pkg/sofia"
)

func request(method, callID string, headers ...sip.Header) *sip.Message {
	msg := &sip.Message{
		Direction: sofia.Recv,
		Transport: sofia.UDP,
		Address:   "10.0.0.1:5060",
		Request:   &sip.RequestLine{Method: method, URI: "sip:a@host"},
		Headers: []sip.Header{
			{Name: "Call-ID", Value: callID},
			{Name: "CSeq", Value: "1 " + method},
		},
		FrameCount: 1,
	}
	msg.Headers = append(msg.Headers, headers...)
	return msg
}

func response(code int, cseqMethod string) *sip.Message {
	return &sip.Message{
		Direction: sofia.Sent,
		Transport: sofia.UDP,
		Address:   "10.0.0.2:5060",
		Response:  &sip.StatusLine{Code: code, Reason: "OK"},
		Headers: []sip.Header{
			{Name: "Call-ID", Value: "resp@host"},
			{Name: "CSeq", Value: "1 " + cseqMethod},
		},
		FrameCount: 1,
	}
}

func mustCompile(t *testing.T, opts Options) *Filters {
	t.Helper()
	f, err := Compile(opts)
	require.NoError(t, err)
	return f
}

func TestEmptyFiltersMatchEverything(t *testing.T) {
	f := mustCompile(t, Options{})
	assert.True(t, f.Matches(request("OPTIONS", "a@host")))
	assert.True(t, f.Matches(response(200, "INVITE")))
}

func TestMethodInclude(t *testing.T) {
	f := mustCompile(t, Options{Methods: []string{"invite"}})
	assert.True(t, f.Matches(request("INVITE", "a@host")))
	assert.False(t, f.Matches(request("OPTIONS", "a@host")))
	assert.True(t, f.Matches(response(200, "INVITE")), "responses match via CSeq method")
	assert.False(t, f.Matches(response(200, "OPTIONS")))
}

func TestMethodExclude(t *testing.T) {
	f := mustCompile(t, Options{Excludes: []string{"OPTIONS"}})
	assert.False(t, f.Matches(request("OPTIONS", "a@host")))
	assert.False(t, f.Matches(response(200, "OPTIONS")))
	assert.True(t, f.Matches(request("NOTIFY", "a@host")))
}

func TestCallIDRegex(t *testing.T) {
	f := mustCompile(t, Options{CallID: `^abc-[0-9]+@`})
	assert.True(t, f.Matches(request("INVITE", "abc-123@host")))
	assert.False(t, f.Matches(request("INVITE", "xyz@host")))
}

func TestDirectionFilter(t *testing.T) {
	f := mustCompile(t, Options{Direction: "sent"})
	assert.False(t, f.Matches(request("INVITE", "a@host")))
	assert.True(t, f.Matches(response(200, "INVITE")))
}

func TestAddressRegex(t *testing.T) {
	f := mustCompile(t, Options{Address: `^10\.0\.0\.1:`})
	assert.True(t, f.Matches(request("INVITE", "a@host")))
	assert.False(t, f.Matches(response(200, "INVITE")))
}

func TestHeaderFilter(t *testing.T) {
	f := mustCompile(t, Options{Headers: []string{"Event=dialog"}})
	withEvent := request("NOTIFY", "a@host", sip.Header{Name: "Event", Value: "dialog"})
	withOther := request("NOTIFY", "a@host", sip.Header{Name: "Event", Value: "presence"})
	without := request("NOTIFY", "a@host")
	assert.True(t, f.Matches(withEvent))
	assert.False(t, f.Matches(withOther))
	assert.False(t, f.Matches(without))
}

func TestCombinedFilters(t *testing.T) {
	f := mustCompile(t, Options{
		Methods:   []string{"NOTIFY"},
		Direction: "recv",
		CallID:    "conf",
	})
	assert.True(t, f.Matches(request("NOTIFY", "conf-42@host")))
	assert.False(t, f.Matches(request("NOTIFY", "other@host")))
	assert.False(t, f.Matches(request("INVITE", "conf-42@host")))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"bad call-id regex", Options{CallID: "("}},
		{"bad address regex", Options{Address: "["}},
		{"bad direction", Options{Direction: "sideways"}},
		{"header without equals", Options{Headers: []string{"Event"}}},
		{"header with bad regex", Options{Headers: []string{"Event=("}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.opts)
			require.Error(t, err)
			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}
