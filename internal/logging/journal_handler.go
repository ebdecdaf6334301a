package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags journal entries written by ffpanel.
const SyslogIdentifier = "ffpanel"

// JournalHandler writes records to the systemd journal. Attribute keys
// become upper-case journal fields, so a job_id attr is queryable with
// `journalctl SYSLOG_IDENTIFIER=ffpanel JOB_ID=...`.
type JournalHandler struct {
	scope
	level slog.Leveler
	send  func(message string, priority journal.Priority, fields map[string]string) error
}

// NewJournalHandler returns a handler for records at or above level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, send: journal.Send}
}

// IsJournalAvailable reports whether the journal socket can be reached.
func IsJournalAvailable() bool {
	return journal.Enabled()
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}
	h.walk(r,
		func(module string) { fields["MODULE"] = module },
		func(path []string, a slog.Attr) {
			fields[journalField(joinKey(path, a.Key, "_"))] = journalValue(a.Value)
		})

	if err := h.send(r.Message, journalPriority(r.Level), fields); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{scope: h.withAttrs(attrs), level: h.level, send: h.send}
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	return &JournalHandler{scope: h.withGroup(name), level: h.level, send: h.send}
}

func journalPriority(level slog.Level) journal.Priority {
	switch levelName(level) {
	case "error":
		return journal.PriErr
	case "warn":
		return journal.PriWarning
	case "info":
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalField maps a key onto the journal field alphabet [A-Z0-9_].
func journalField(key string) string {
	field := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
	if field == "" || field[0] == '_' || (field[0] >= '0' && field[0] <= '9') {
		field = "X" + field
	}
	return field
}

func journalValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}
