package volume

import (
	"errors"
	"fmt"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
)

// ErrNotAnalyzable is returned for normalization modes that do not use volumedetect.
var ErrNotAnalyzable = errors.New("normalization mode does not use volume analysis")

// Status summarizes whether the analyzed files need a gain change.
type Status int

// Analysis outcomes.
const (
	StatusRequired Status = iota
	StatusNotRequired
	StatusPartial
)

// Message returns the status line shown after analysis. Empty for StatusRequired.
func (s Status) Message() string {
	switch s {
	case StatusNotRequired:
		return "Audio normalization is not required based to set target level"
	case StatusPartial:
		return "Audio normalization is required only for some files"
	default:
		return ""
	}
}

// Row is one line of the analysis details table.
type Row struct {
	File   string  `json:"file"`
	Max    float64 `json:"max_volume"`
	Mean   float64 `json:"mean_volume"`
	Offset float64 `json:"offset"`
	Result float64 `json:"result"`
}

// Report is the outcome of ComputeGains.
type Report struct {
	Gains  []string `json:"gains"`
	Rows   []Row    `json:"rows"`
	Status Status   `json:"status"`
}

// ComputeGains turns measurements into one gain flag per file.
// PEAK compares the max level with target, RMS the mean level. A file
// already at target gets the blank marker.
func ComputeGains(mode catalog.NormalizationMode, target float64, ms []Measurement) (Report, error) {
	if !mode.NeedsAnalysis() {
		return Report{}, fmt.Errorf("%w: %s", ErrNotAnalyzable, mode)
	}

	report := Report{
		Gains: make([]string, 0, len(ms)),
		Rows:  make([]Row, 0, len(ms)),
	}
	blanks := 0
	for _, m := range ms {
		level := m.MaxVolume
		if mode == catalog.NormalizeRMS {
			level = m.MeanVolume
		}
		offset := level - target

		if level == target {
			report.Gains = append(report.Gains, ffmpeg.BlankGain)
			blanks++
		} else {
			report.Gains = append(report.Gains, GainFlag(-offset))
		}
		report.Rows = append(report.Rows, Row{
			File:   m.File,
			Max:    m.MaxVolume,
			Mean:   m.MeanVolume,
			Offset: offset,
			Result: m.MaxVolume - offset,
		})
	}

	switch {
	case blanks == len(ms):
		report.Status = StatusNotRequired
	case blanks > 0 && len(ms) > 1:
		report.Status = StatusPartial
	default:
		report.Status = StatusRequired
	}
	return report, nil
}

// GainFlag formats a volume change in dB as an audio filter flag.
func GainFlag(db float64) string {
	return fmt.Sprintf("-af volume=%fdB", db)
}
