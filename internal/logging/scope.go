package logging

import (
	"log/slog"
	"slices"
	"strings"
)

// scope carries the attrs and groups a handler accumulated through
// WithAttrs and WithGroup. Handlers embed it by value.
type scope struct {
	attrs  []slog.Attr
	groups []string
}

// withAttrs nests attrs under the open groups so groups opened later
// do not qualify them.
func (s scope) withAttrs(attrs []slog.Attr) scope {
	for i := len(s.groups) - 1; i >= 0; i-- {
		attrs = []slog.Attr{{Key: s.groups[i], Value: slog.GroupValue(attrs...)}}
	}
	return scope{
		attrs:  append(slices.Clip(s.attrs), attrs...),
		groups: s.groups,
	}
}

func (s scope) withGroup(name string) scope {
	if name == "" {
		return s
	}
	return scope{
		attrs:  s.attrs,
		groups: append(slices.Clip(s.groups), name),
	}
}

// walk visits every leaf attr of the scope and then of r, with groups
// expanded into the path. A top-level "module" attr is reported separately.
func (s scope) walk(r slog.Record, module func(string), leaf func(path []string, a slog.Attr)) {
	for _, a := range s.attrs {
		if a.Key == "module" {
			module(a.Value.String())
			continue
		}
		walkAttr(nil, a, leaf)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && len(s.groups) == 0 {
			module(a.Value.String())
			return true
		}
		walkAttr(s.groups, a, leaf)
		return true
	})
}

func walkAttr(path []string, a slog.Attr, leaf func([]string, slog.Attr)) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() != slog.KindGroup {
		leaf(path, a)
		return
	}
	inner := path
	if a.Key != "" {
		inner = append(slices.Clip(path), a.Key)
	}
	for _, ga := range a.Value.Group() {
		walkAttr(inner, ga, leaf)
	}
}

func joinKey(path []string, key, sep string) string {
	if len(path) == 0 {
		return key
	}
	return strings.Join(path, sep) + sep + key
}

// levelName returns the lowercase name stored in LogEntry.Level.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
