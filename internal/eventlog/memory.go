package eventlog

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryLog is an in-process Log used by tests and single-process dev
// deployments. Entries are kept for the life of the process; ids are
// 1-based append sequence numbers.
type MemoryLog struct {
	mu      sync.Mutex
	streams map[string]*memStream
}

type memStream struct {
	entries []Entry
	// notify is closed and replaced on every append so blocked readers
	// wake without polling.
	notify chan struct{}
	groups map[string]*memGroup
}

type memGroup struct {
	cursor int
	acked  map[string]struct{}
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{streams: make(map[string]*memStream)}
}

// stream returns the named stream, creating it on first use.
// Caller must hold l.mu.
func (l *MemoryLog) stream(name string) *memStream {
	s, ok := l.streams[name]
	if !ok {
		s = &memStream{
			notify: make(chan struct{}),
			groups: make(map[string]*memGroup),
		}
		l.streams[name] = s
	}
	return s
}

// Append adds the payload and wakes any blocked readers.
func (l *MemoryLog) Append(ctx context.Context, stream string, payload []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stream(stream)
	buf := make([]byte, len(payload))
	copy(buf, payload)
	id := strconv.Itoa(len(s.entries) + 1)
	s.entries = append(s.entries, Entry{ID: id, Payload: buf})

	close(s.notify)
	s.notify = make(chan struct{})
	return id, nil
}

// CreateGroup registers a group cursor. An existing group keeps its cursor.
func (l *MemoryLog) CreateGroup(ctx context.Context, stream, group string, start StartPosition) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stream(stream)
	if _, ok := s.groups[group]; ok {
		return nil
	}
	g := &memGroup{acked: make(map[string]struct{})}
	if start == StartNew {
		g.cursor = len(s.entries)
	}
	s.groups[group] = g
	return nil
}

// ReadNew returns the next unread entries, blocking up to block for at
// least one to arrive.
func (l *MemoryLog) ReadNew(ctx context.Context, stream, group, consumer string, maxCount int, block time.Duration) ([]Entry, error) {
	deadline := time.Now().Add(block)
	for {
		l.mu.Lock()
		s := l.stream(stream)
		g, ok := s.groups[group]
		if !ok {
			l.mu.Unlock()
			return nil, ErrGroupNotFound
		}
		if g.cursor < len(s.entries) {
			end := g.cursor + maxCount
			if end > len(s.entries) {
				end = len(s.entries)
			}
			batch := make([]Entry, end-g.cursor)
			copy(batch, s.entries[g.cursor:end])
			g.cursor = end
			l.mu.Unlock()
			return batch, nil
		}
		notify := s.notify
		l.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-notify:
			timer.Stop()
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// Ack records the entry as processed by the group.
func (l *MemoryLog) Ack(ctx context.Context, stream, group, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.stream(stream).groups[group]
	if !ok {
		return ErrGroupNotFound
	}
	g.acked[id] = struct{}{}
	return nil
}

// DestroyGroup drops the group cursor. Unknown groups are tolerated.
func (l *MemoryLog) DestroyGroup(ctx context.Context, stream, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.stream(stream).groups, group)
	return nil
}

// HasGroup reports whether the group currently exists. Test helper.
func (l *MemoryLog) HasGroup(stream, group string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.stream(stream).groups[group]
	return ok
}

// Acked reports whether the group has acknowledged the entry. Test helper.
func (l *MemoryLog) Acked(stream, group, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.stream(stream).groups[group]
	if !ok {
		return false
	}
	_, ok = g.acked[id]
	return ok
}

// Compile-time check
var _ Log = (*MemoryLog)(nil)
