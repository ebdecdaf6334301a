package panel

import (
	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
)

// PassLock tells whether the two-pass toggle is free or pinned.
type PassLock int

// Pass lock states
const (
	PassUnlocked PassLock = iota
	PassForcedOn
	PassForcedOff
)

func (l PassLock) String() string {
	switch l {
	case PassForcedOn:
		return "forced-on"
	case PassForcedOff:
		return "forced-off"
	default:
		return "unlocked"
	}
}

// State is the part of the panel that decides which controls are usable.
type State struct {
	Container     catalog.Container
	Pass          ffmpeg.Pass
	Normalization catalog.NormalizationMode
	Audio         catalog.AudioCodec
	Analyzed      bool
}

// Family returns the codec family of the selected container.
func (s State) Family() catalog.Family {
	return s.Container.Family
}

// Enablement lists which controls accept input for a State.
type Enablement struct {
	BitrateEnabled       bool     `json:"bitrate_enabled"`
	CRFEnabled           bool     `json:"crf_enabled"`
	PassToggleEnabled    bool     `json:"pass_toggle_enabled"`
	PassLock             PassLock `json:"pass_lock"`
	FiltersEnabled       bool     `json:"filters_enabled"`
	H264TabEnabled       bool     `json:"h264_tab_enabled"`
	VPXPanelVisible      bool     `json:"vpx_panel_visible"`
	NormalizationEnabled bool     `json:"normalization_enabled"`
	AudioParamsEnabled   bool     `json:"audio_params_enabled"`
	PeakPanelVisible     bool     `json:"peak_panel_visible"`
	EBUPanelVisible      bool     `json:"ebu_panel_visible"`
	AnalyzeEnabled       bool     `json:"analyze_enabled"`
	AllowedAudio         []bool   `json:"allowed_audio"` // indexed like catalog.AudioFormats
	AllowedTunes         []bool   `json:"allowed_tunes"` // indexed like catalog.X264Tunes
}

// Derive computes control enablement from state. It has no side effects.
func Derive(s State) Enablement {
	family := s.Family()
	e := Enablement{
		PassLock:             passLock(s),
		FiltersEnabled:       family != catalog.FamilyCopy,
		H264TabEnabled:       family == catalog.FamilyX264 || family == catalog.FamilyX265,
		VPXPanelVisible:      family == catalog.FamilyVPX || family == catalog.FamilyAV1,
		NormalizationEnabled: !s.Audio.DisablesNormalization(),
		AudioParamsEnabled:   s.Audio != catalog.AudioDefault && !s.Audio.DisablesNormalization(),
		PeakPanelVisible:     s.Normalization.NeedsAnalysis(),
		EBUPanelVisible:      s.Normalization == catalog.NormalizeEBU,
		AnalyzeEnabled:       s.Normalization.NeedsAnalysis() && !s.Analyzed,
		AllowedAudio:         catalog.AudioMask(s.Container),
	}
	e.PassToggleEnabled = e.PassLock == PassUnlocked
	e.BitrateEnabled, e.CRFEnabled = rateControls(family, s.Pass)

	e.AllowedTunes = make([]bool, len(catalog.X264Tunes))
	for i, tune := range catalog.X264Tunes {
		e.AllowedTunes[i] = e.H264TabEnabled && catalog.TuneAllowed(family, tune)
	}
	return e
}

// passLock pins two-pass on for EBU and off for stream copy.
func passLock(s State) PassLock {
	switch {
	case s.Normalization == catalog.NormalizeEBU:
		return PassForcedOn
	case s.Container.IsCopy():
		return PassForcedOff
	default:
		return PassUnlocked
	}
}

// rateControls returns whether the bitrate and CRF controls are enabled.
func rateControls(f catalog.Family, p ffmpeg.Pass) (bitrate, crf bool) {
	if f == catalog.FamilyCopy {
		return false, false
	}
	if p == ffmpeg.PassDouble {
		// vp8/vp9 keep both; h.264/h.265/AV1 two-pass is bitrate driven
		return true, f == catalog.FamilyVPX
	}
	switch f {
	case catalog.FamilyX264, catalog.FamilyX265:
		return false, true
	case catalog.FamilyVPX, catalog.FamilyAV1:
		return true, true
	default:
		return true, false
	}
}
