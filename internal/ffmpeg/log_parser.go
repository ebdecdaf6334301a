package ffmpeg

import "strings"

// ParseLogLevel splits a line printed under "-loglevel level+info" into
// its level tag and message. Lines look like "[error] msg" or
// "[libx264 @ 0x55d] [warning] msg"; the component prefix is kept in msg.
// Untagged lines are reported as info.
func ParseLogLevel(line string) (level, msg string) {
	tag, rest, ok := cutTag(line)
	if !ok {
		return "info", line
	}
	if ffmpegLevels[tag] {
		return tag, rest
	}

	if lvl, tail, ok := cutTag(rest); ok && ffmpegLevels[lvl] {
		return lvl, line[:len(line)-len(rest)] + tail
	}
	return "info", line
}

// cutTag removes a leading "[tag] " from s.
func cutTag(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	tag, rest, ok = strings.Cut(s[1:], "] ")
	if !ok || tag == "" {
		return "", s, false
	}
	return tag, rest, true
}

var ffmpegLevels = map[string]bool{
	"quiet": true, "panic": true, "fatal": true, "error": true, "warning": true,
	"info": true, "verbose": true, "debug": true, "trace": true,
}
