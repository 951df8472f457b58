package sse

import "bytes"

var terminator = []byte(Terminator)

// Assembler reconstructs complete SSE frames from an arbitrarily chunked
// byte stream. Bytes are appended with Write and complete frames popped
// with Next; the internal buffer is never consumed until a full frame
// terminator has been observed, so a terminator split across reads is
// handled correctly.
//
// The zero value is ready to use. Assembler is not safe for concurrent use;
// each connection owns its own instance.
type Assembler struct {
	buf []byte
}

// Write appends a chunk of raw bytes to the buffer.
func (a *Assembler) Write(p []byte) {
	a.buf = append(a.buf, p...)
}

// Next returns the next complete frame, terminator included, or nil when
// the buffer does not yet hold one. Callers drain frames in a loop after
// each Write.
func (a *Assembler) Next() []byte {
	i := bytes.Index(a.buf, terminator)
	if i < 0 {
		return nil
	}
	end := i + len(terminator)
	frame := make([]byte, end)
	copy(frame, a.buf[:end])
	a.buf = a.buf[end:]
	return frame
}

// Flush returns whatever partial data remains and resets the buffer.
// Used when the source stream ends mid-frame.
func (a *Assembler) Flush() []byte {
	if len(a.buf) == 0 {
		return nil
	}
	rest := a.buf
	a.buf = nil
	return rest
}

// Pending reports how many buffered bytes are awaiting a terminator.
func (a *Assembler) Pending() int {
	return len(a.buf)
}
