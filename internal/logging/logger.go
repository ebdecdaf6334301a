package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Logger is the logging surface packages depend on. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config selects the global level, the stderr format ("text" or "json")
// and per-module level overrides keyed by module name.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mutex         sync.RWMutex
	globalConfig  Config
	isInitialized bool
	globalLevel   = &slog.LevelVar{}
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	logBuffer     *RingBuffer
	logCallback   LogCallback
	sink          = newSink("text")
)

// Initialize applies config. Loggers handed out earlier stay valid: their
// levels are updated in place and they write through the new sink.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)
	sink = newSink(config.Format)

	globalLevel.Set(levelOf(config.Level, slog.LevelInfo))
	for module, lv := range moduleLevels {
		lv.Set(moduleLevel(module))
	}
	slog.SetDefault(slog.New(&moduleHandler{level: globalLevel}))
}

// GetBuffer returns the ring buffer of recent entries, nil before Initialize.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers a function called for every buffered entry.
func SetLogCallback(callback LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = callback
}

// GetLogger returns the logger for module, tagged with a "module" attr.
// The same logger is returned on every call.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(moduleLevel(module))
	logger = slog.New(&moduleHandler{level: lv}).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = lv
	return logger
}

// moduleLevel resolves a module's level from the current config.
// Callers hold mutex.
func moduleLevel(module string) slog.Level {
	if !isInitialized {
		return slog.LevelInfo
	}
	level := levelOf(globalConfig.Level, slog.LevelInfo)
	if s, ok := globalConfig.Modules[module]; ok {
		level = levelOf(s, level)
	}
	return level
}

func levelOf(s string, fallback slog.Level) slog.Level {
	if l, ok := parseLevel(s); ok {
		return l
	}
	return fallback
}

// moduleHandler filters by its own level and forwards to the sink current
// at write time. attrs and groups are replayed onto the sink in order.
type moduleHandler struct {
	level slog.Leveler
	ops   []handlerOp
}

type handlerOp struct {
	group string
	attrs []slog.Attr
}

func (h *moduleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *moduleHandler) Handle(ctx context.Context, r slog.Record) error {
	mutex.RLock()
	target := sink
	mutex.RUnlock()

	for _, op := range h.ops {
		if op.group != "" {
			target = target.WithGroup(op.group)
		} else {
			target = target.WithAttrs(op.attrs)
		}
	}
	return target.Handle(ctx, r)
}

func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(handlerOp{attrs: attrs})
}

func (h *moduleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(handlerOp{group: name})
}

func (h *moduleHandler) with(op handlerOp) *moduleHandler {
	ops := make([]handlerOp, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &moduleHandler{level: h.level, ops: append(ops, op)}
}

// newSink builds the shared output chain: stderr in the given format, the
// journal when it is reachable, and the ring buffer. Stdout is left to
// command output such as tables and ffmpeg command lines. Level filtering
// happens in moduleHandler, so the sink accepts everything.
func newSink(format string) slog.Handler {
	all := slog.LevelDebug
	opts := &slog.HandlerOptions{Level: all}

	handlers := []slog.Handler{NewBufferHandler(nil, all, nil)}
	if stderrUsable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(all))
	}
	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stderrUsable reports whether stderr is a terminal, pipe, socket or file
// rather than a device such as /dev/null.
func stderrUsable() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// NewFileLogger opens path for appending and returns a text logger writing to it.
// The caller closes the returned io.Closer when the job ends.
func NewFileLogger(path string, module string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler).With("module", module), f, nil
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
