package ffmpeg

import (
	"fmt"
	"os"
	"strings"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

// DefaultLogLevel prefixes every output line with its level for ParseLogLevel.
const DefaultLogLevel = "level+info"

// Base returns the ffmpeg invocation with standard flags.
func Base(binary string) string {
	if binary == "" {
		binary = DefaultBinary
	}
	return QuoteArg(binary) + " -hide_banner"
}

// ConvertConfig describes one encoding pass over one input.
type ConvertConfig struct {
	Input     string
	Output    string // ignored when NullOutput is set
	Args      string // pass arguments from BuildCommands
	ExtraArgs string // per-file additions such as a volume filter
	TimeRange TimeRange
	LogLevel  string
	// NullOutput discards the result, for measurement and first passes.
	NullOutput bool
	// Progress writes machine-readable progress to stdout.
	Progress bool
}

// VolumeDetectConfig describes a volumedetect analysis run.
type VolumeDetectConfig struct {
	Input     string
	TimeRange TimeRange
}

// CommandBuilder generates complete ffmpeg command lines.
type CommandBuilder interface {
	BuildConvertCommand(cfg ConvertConfig) (string, error)
	BuildVolumeDetectCommand(cfg VolumeDetectConfig) (string, error)
	BuildEncodersListCommand() (string, error)
}

// DefaultCommandBuilder implements CommandBuilder with manual command construction
type DefaultCommandBuilder struct {
	binary string
}

// NewCommandBuilder creates a command builder for the given ffmpeg binary.
func NewCommandBuilder(binary string) CommandBuilder {
	return &DefaultCommandBuilder{binary: binary}
}

// BuildConvertCommand renders one pass as a full command line.
func (cb *DefaultCommandBuilder) BuildConvertCommand(cfg ConvertConfig) (string, error) {
	if cfg.Input == "" {
		return "", fmt.Errorf("input path is required")
	}
	if cfg.Output == "" && !cfg.NullOutput {
		return "", fmt.Errorf("output path is required")
	}

	var cmd strings.Builder
	cmd.WriteString(Base(cb.binary))

	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	cmd.WriteString(" -loglevel " + logLevel)

	if cfg.Progress {
		cmd.WriteString(" -progress pipe:1 -nostats")
	}

	// Seek before input so analysis and encoding cover the same segment
	if ts := cfg.TimeRange.Args(); ts != "" {
		cmd.WriteString(" " + ts)
	}
	cmd.WriteString(" -i " + QuoteArg(cfg.Input))

	if cfg.Args != "" {
		cmd.WriteString(" " + cfg.Args)
	}
	if cfg.ExtraArgs != "" {
		cmd.WriteString(" " + cfg.ExtraArgs)
	}

	cmd.WriteString(" -y")
	if cfg.NullOutput {
		cmd.WriteString(" " + os.DevNull)
	} else {
		cmd.WriteString(" " + QuoteArg(cfg.Output))
	}

	return cmd.String(), nil
}

// BuildVolumeDetectCommand renders a volumedetect analysis for one input.
func (cb *DefaultCommandBuilder) BuildVolumeDetectCommand(cfg VolumeDetectConfig) (string, error) {
	if cfg.Input == "" {
		return "", fmt.Errorf("input path is required")
	}

	var cmd strings.Builder
	cmd.WriteString(Base(cb.binary))
	cmd.WriteString(" -nostats -loglevel info")
	if ts := cfg.TimeRange.Args(); ts != "" {
		cmd.WriteString(" " + ts)
	}
	cmd.WriteString(" -i " + QuoteArg(cfg.Input))
	cmd.WriteString(" -vn -sn -dn -af volumedetect -f null " + os.DevNull)
	return cmd.String(), nil
}

// BuildEncodersListCommand creates an FFmpeg command for listing available encoders
func (cb *DefaultCommandBuilder) BuildEncodersListCommand() (string, error) {
	return fmt.Sprintf("%s -encoders", Base(cb.binary)), nil
}

// QuoteArg quotes a path for the process command parser when it contains
// whitespace, quotes or backslashes.
func QuoteArg(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
