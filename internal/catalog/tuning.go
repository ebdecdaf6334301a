package catalog

import (
	"fmt"
	"slices"
)

// Disabled is the first entry of every optional tuning list; it emits no flag.
const Disabled = "Disabled"

// h.264/h.265 tuning choices
var (
	X264Presets  = []string{Disabled, "ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow", "placebo"}
	X264Profiles = []string{Disabled, "baseline", "main", "high", "high10", "high444"}
	X264Tunes    = []string{Disabled, "film", "animation", "grain", "stillimage", "psnr", "ssim", "fastedecode", "zerolatency"}
)

// x265Unsupported lists x264 tunes libx265 does not accept.
var x265Unsupported = []string{"film", "animation", "stillimage"}

// VP8/VP9/AV1 tuning choices
var Deadlines = []string{"best", "good", "realtime"}

// DefaultDeadline is selected whenever a VP8/VP9/AV1 container is chosen.
const DefaultDeadline = "good"

// Aspect and frame-rate menu entries. "Default" emits no flag.
var (
	Aspects    = []string{"Default", "4:3", "16:9", "1.3333", "1.7777"}
	FrameRates = []string{"Default", "25", "29.97", "30", "0.2", "0.5", "1", "1.5", "2"}
)

// Bitrate spinner bounds in kbit/s.
const (
	BitrateMin     = 0
	BitrateMax     = 204800
	BitrateDefault = 1500
)

// TuneAllowed reports whether tune is offered for the family.
func TuneAllowed(f Family, tune string) bool {
	if !slices.Contains(X264Tunes, tune) {
		return false
	}
	return f != FamilyX265 || !slices.Contains(x265Unsupported, tune)
}

// CPUUsedRange returns the inclusive cpu-used bounds for a deadline.
func CPUUsedRange(deadline string) (lo, hi int) {
	if deadline == "realtime" {
		return 0, 15
	}
	return 0, 5
}

// ValidateChoice returns an error naming kind when value is not in choices.
func ValidateChoice(kind, value string, choices []string) error {
	if slices.Contains(choices, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q: must be one of %v", kind, value, choices)
}
