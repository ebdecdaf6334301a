package ffmpeg

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Progress is one snapshot of ffmpeg -progress output.
type Progress struct {
	OutTime time.Duration
	Frame   int64
	Speed   string
	Done    bool
}

// ProgressTracker parses "-progress pipe:1" key=value lines and reports
// a snapshot each time a block ends. It implements process.OutputHandler.
type ProgressTracker struct {
	mu       sync.Mutex
	current  Progress
	onUpdate func(Progress)
}

// NewProgressTracker creates a tracker calling onUpdate at the end of each block.
func NewProgressTracker(onUpdate func(Progress)) *ProgressTracker {
	return &ProgressTracker{onUpdate: onUpdate}
}

// HandleLine consumes one output line; non-progress lines are ignored.
func (t *ProgressTracker) HandleLine(source, line string) {
	if source != "stdout" {
		return
	}
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}

	t.mu.Lock()
	var snapshot *Progress
	switch key {
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			t.current.Frame = n
		}
	case "out_time_us", "out_time_ms":
		// both keys carry microseconds
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			t.current.OutTime = time.Duration(n) * time.Microsecond
		}
	case "speed":
		t.current.Speed = strings.TrimSpace(value)
	case "progress":
		t.current.Done = value == "end"
		p := t.current
		snapshot = &p
	}
	t.mu.Unlock()

	if snapshot != nil && t.onUpdate != nil {
		t.onUpdate(*snapshot)
	}
}

// Last returns the most recent progress snapshot.
func (t *ProgressTracker) Last() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
