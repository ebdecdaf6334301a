package logging

import (
	"slices"
	"sync"
	"time"
)

// LogEntry is one record kept by a RingBuffer.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer holds the newest entries up to a fixed capacity.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{entries: make([]LogEntry, capacity)}
}

// Write stores entry, evicting the oldest one when the buffer is full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.next] = entry
	rb.next++
	if rb.next == len(rb.entries) {
		rb.next = 0
		rb.full = true
	}
}

// ReadAll returns the entries oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if !rb.full {
		return slices.Clone(rb.entries[:rb.next])
	}
	return slices.Concat(rb.entries[rb.next:], rb.entries[:rb.next])
}

// Recent returns up to n of the newest entries whose level is in levels,
// oldest first. No levels means every level.
func (rb *RingBuffer) Recent(n int, levels ...string) []LogEntry {
	var out []LogEntry
	for _, e := range rb.ReadAll() {
		if len(levels) == 0 || slices.Contains(levels, e.Level) {
			out = append(out, e)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.entries)
	}
	return rb.next
}
