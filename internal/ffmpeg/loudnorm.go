package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoLoudnessSummary is returned when pass output carries no loudnorm summary.
var ErrNoLoudnessSummary = errors.New("loudnorm summary not found in output")

// LoudnessMeasurement holds the input statistics printed by the first loudnorm pass.
type LoudnessMeasurement struct {
	InputI       float64
	InputTP      float64
	InputLRA     float64
	InputThresh  float64
	TargetOffset float64
}

// summaryFields maps loudnorm summary labels to measurement fields.
var summaryFields = map[string]func(*LoudnessMeasurement) *float64{
	"Input Integrated": func(m *LoudnessMeasurement) *float64 { return &m.InputI },
	"Input True Peak":  func(m *LoudnessMeasurement) *float64 { return &m.InputTP },
	"Input LRA":        func(m *LoudnessMeasurement) *float64 { return &m.InputLRA },
	"Input Threshold":  func(m *LoudnessMeasurement) *float64 { return &m.InputThresh },
	"Target Offset":    func(m *LoudnessMeasurement) *float64 { return &m.TargetOffset },
}

// LoudnessCollector accumulates the loudnorm summary from pass output lines.
// It implements process.OutputHandler.
type LoudnessCollector struct {
	m    LoudnessMeasurement
	seen map[string]bool
}

// NewLoudnessCollector creates an empty collector.
func NewLoudnessCollector() *LoudnessCollector {
	return &LoudnessCollector{seen: make(map[string]bool)}
}

// HandleLine parses one output line.
func (c *LoudnessCollector) HandleLine(_, line string) {
	_, msg := ParseLogLevel(line)
	// component prefix such as "[Parsed_loudnorm_0 @ 0x...] " may remain
	if i := strings.LastIndex(msg, "] "); i != -1 {
		msg = msg[i+2:]
	}
	label, value, ok := strings.Cut(msg, ":")
	if !ok {
		return
	}
	label = strings.TrimSpace(label)
	field, known := summaryFields[label]
	if !known {
		return
	}
	v, err := parseLoudnessValue(value)
	if err != nil {
		return
	}
	*field(&c.m) = v
	c.seen[label] = true
}

// Result returns the measurement once every summary field was seen.
func (c *LoudnessCollector) Result() (LoudnessMeasurement, error) {
	for label := range summaryFields {
		if !c.seen[label] {
			return LoudnessMeasurement{}, fmt.Errorf("%w: missing %q", ErrNoLoudnessSummary, label)
		}
	}
	return c.m, nil
}

// parseLoudnessValue parses values like "-27.4 LUFS", "+0.3 LU" or "-inf dBTP".
func parseLoudnessValue(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(strings.TrimPrefix(fields[0], "+"), 64)
}

// SecondPassFilter renders the linear loudnorm filter using first-pass measurements.
func (l LoudnessParams) SecondPassFilter(m LoudnessMeasurement) string {
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s:measured_I=%s:measured_TP=%s:measured_LRA=%s:measured_thresh=%s:offset=%s:linear=true:print_format=summary",
		formatLevel(l.Integrated), formatLevel(l.TruePeak), formatLevel(l.LRA),
		formatMeasure(m.InputI), formatMeasure(m.InputTP), formatMeasure(m.InputLRA),
		formatMeasure(m.InputThresh), formatMeasure(m.TargetOffset))
}

func formatMeasure(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
