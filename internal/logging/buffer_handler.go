package logging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// LogCallback receives every entry written to a buffer.
type LogCallback func(entry LogEntry)

// BufferHandler keeps records in a RingBuffer so the CLI can show
// recent warnings after a failed command. A nil buffer means the
// package-wide buffer installed by Initialize.
type BufferHandler struct {
	scope
	buffer   *RingBuffer
	level    slog.Leveler
	callback LogCallback
}

func NewBufferHandler(buffer *RingBuffer, level slog.Leveler, callback LogCallback) *BufferHandler {
	return &BufferHandler{buffer: buffer, level: level, callback: callback}
}

func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	buffer, callback := h.buffer, h.callback
	if buffer == nil {
		mutex.RLock()
		buffer, callback = logBuffer, logCallback
		mutex.RUnlock()
	}
	if buffer == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     "app",
		Message:    r.Message,
		Attributes: make(map[string]any),
	}
	h.walk(r,
		func(module string) { entry.Module = module },
		func(path []string, a slog.Attr) {
			entry.Attributes[joinKey(path, a.Key, ".")] = entryValue(a.Value)
		})

	buffer.Write(entry)
	if callback != nil {
		callback(entry)
	}
	return nil
}

func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferHandler{scope: h.withAttrs(attrs), buffer: h.buffer, level: h.level, callback: h.callback}
}

func (h *BufferHandler) WithGroup(name string) slog.Handler {
	return &BufferHandler{scope: h.withGroup(name), buffer: h.buffer, level: h.level, callback: h.callback}
}

func entryValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}

// FormatLogLine renders an entry as
// "<time> [LEVEL] [module] message k=v ...", keys sorted.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s",
		entry.Timestamp.Format(time.RFC3339Nano), strings.ToUpper(entry.Level), entry.Module, entry.Message)

	keys := make([]string, 0, len(entry.Attributes))
	for k := range entry.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}
