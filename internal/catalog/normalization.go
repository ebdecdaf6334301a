package catalog

import "fmt"

// NormalizationMode selects the audio normalization strategy.
type NormalizationMode int

// Normalization modes in radio order
const (
	NormalizeOff NormalizationMode = iota
	NormalizePeak
	NormalizeRMS
	NormalizeEBU
)

func (m NormalizationMode) String() string {
	switch m {
	case NormalizePeak:
		return "PEAK"
	case NormalizeRMS:
		return "RMS"
	case NormalizeEBU:
		return "EBU R128"
	default:
		return "Disabled"
	}
}

// NeedsAnalysis reports whether a volume analysis must run before dispatch.
func (m NormalizationMode) NeedsAnalysis() bool {
	return m == NormalizePeak || m == NormalizeRMS
}

// DefaultTarget returns the initial target level in dBFS for the mode.
func (m NormalizationMode) DefaultTarget() float64 {
	if m == NormalizeRMS {
		return -20.0
	}
	return -1.0
}

// ParseNormalization maps a CLI name to a mode.
func ParseNormalization(s string) (NormalizationMode, error) {
	switch s {
	case "", "off", "none":
		return NormalizeOff, nil
	case "peak", "PEAK":
		return NormalizePeak, nil
	case "rms", "RMS":
		return NormalizeRMS, nil
	case "ebu", "EBU", "r128":
		return NormalizeEBU, nil
	}
	return NormalizeOff, fmt.Errorf("unknown normalization mode %q", s)
}

// EBU R128 loudness bounds.
const (
	EBUIntegratedDefault = -24.0
	EBUIntegratedMin     = -70.0
	EBUIntegratedMax     = -5.0
	EBUTruePeakDefault   = -2.0
	EBUTruePeakMin       = -9.0
	EBUTruePeakMax       = 0.0
	EBULRADefault        = 7.0
	EBULRAMin            = 1.0
	EBULRAMax            = 20.0
)

// PEAK/RMS target level bounds in dBFS.
const (
	TargetMin = -99.0
	TargetMax = 0.0
)
