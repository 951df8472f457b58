// Package sse implements the Server-Sent-Events wire format used by the
// catalog event feed: frame encoding on the serving side and an incremental
// frame assembler for re-streaming a feed received over HTTP.
package sse

import (
	"bytes"
	"strings"
)

// Terminator separates frames on the wire. A frame is not complete until
// this sequence has been observed.
const Terminator = "\n\n"

// Frame is one complete SSE message: an optional id, an event name and a
// data payload (UTF-8 text, typically JSON).
type Frame struct {
	ID    string
	Event string
	Data  string
}

// Encode renders the frame in wire form:
//
//	id: <id>\n        (only when ID is set)
//	event: <name>\n
//	data: <payload>\n
//	\n
//
// Payloads containing newlines are split into one data line per segment,
// which the receiving side rejoins per the SSE specification.
func (f Frame) Encode() []byte {
	var b bytes.Buffer
	if f.ID != "" {
		b.WriteString("id: ")
		b.WriteString(f.ID)
		b.WriteByte('\n')
	}
	b.WriteString("event: ")
	b.WriteString(f.Event)
	b.WriteByte('\n')
	for _, line := range strings.Split(f.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// Comment renders a comment-only frame (a line starting with ':'), used as
// a heartbeat to keep intermediaries from closing an idle connection. It
// carries no event or data and is ignored by EventSource clients.
func Comment(text string) []byte {
	var b bytes.Buffer
	b.WriteString(": ")
	b.WriteString(text)
	b.WriteString(Terminator)
	return b.Bytes()
}
