package ffmpeg

import (
	"slices"
	"strings"

	"github.com/smazurov/ffpanel/internal/catalog"
)

// DefaultMap keeps every input stream and its global metadata.
const DefaultMap = "-map 0 -map_metadata 0"

// BlankGain marks a file whose volume already matches the target.
const BlankGain = "  "

// Pass selects single or two-pass encoding.
type Pass int

// Pass modes
const (
	PassSingle Pass = iota
	PassDouble
)

func (p Pass) String() string {
	if p == PassDouble {
		return "double"
	}
	return "single"
}

// Param pairs a human-readable description with the flag it emits.
type Param struct {
	Description string `toml:"description" json:"description"`
	Flag        string `toml:"flag" json:"flag"`
}

// Filters holds the confirmed video filter fragments.
type Filters struct {
	Crop        string // crop=w:h:x:y
	Scale       string // scale=w:h
	Setdar      string // setdar=16/9
	Setsar      string // setsar=1/1
	Rotate      string // transpose=1
	RotateLabel string // human label for the rotation
	Deinterlace string // yadif=...
	Interlace   string // interlace=...
	Denoiser    string // hqdn3d=...
}

// LoudnessParams are the EBU R128 loudnorm targets.
type LoudnessParams struct {
	Integrated float64 `toml:"integrated" json:"integrated"`
	TruePeak   float64 `toml:"true_peak" json:"true_peak"`
	LRA        float64 `toml:"lra" json:"lra"`
}

// DefaultLoudness returns the EBU R128 default targets.
func DefaultLoudness() LoudnessParams {
	return LoudnessParams{
		Integrated: catalog.EBUIntegratedDefault,
		TruePeak:   catalog.EBUTruePeakDefault,
		LRA:        catalog.EBULRADefault,
	}
}

// TimeRange restricts processing to a segment of each input.
type TimeRange struct {
	Start    string // -ss position, e.g. 00:01:30
	Duration string // -t duration
}

// IsZero reports whether the whole input is processed.
func (t TimeRange) IsZero() bool {
	return t.Start == "" && t.Duration == ""
}

// Args renders the seek flags placed before -i.
func (t TimeRange) Args() string {
	var parts []string
	if t.Start != "" {
		parts = append(parts, "-ss "+t.Start)
	}
	if t.Duration != "" {
		parts = append(parts, "-t "+t.Duration)
	}
	return strings.Join(parts, " ")
}

// Options is the full encoding configuration edited by the conversion panel.
// Every string field holds a complete flag fragment or is empty.
type Options struct {
	// Container selection
	Container   catalog.Container
	VideoCodec  string // -c:v libx264
	Extension   string // mkv
	PixelFormat string // -pix_fmt yuv420p

	Pass Pass

	// Video quality; at most one is set unless the family accepts both
	Bitrate string // -b:v 1500k
	CRF     string // -crf 23

	Aspect    string // -aspect 16:9
	FrameRate string // -r 25

	Filters     Filters
	VideoFilter string // -vf crop=...,scale=...

	// Audio
	Audio          catalog.AudioCodec
	AudioCodecFlag string // -c:a aac
	AudioChannel   Param
	AudioRate      Param
	AudioDepth     Param
	AudioBitrate   Param

	// Normalization; one gain entry per queued input
	Normalization catalog.NormalizationMode
	PeakGains     []string
	RMSGains      []string
	EBU           LoudnessParams

	// h.264/h.265 tuning
	Preset  string // -preset:v slow
	Profile string // -profile:v high
	Tune    string // -tune:v film

	// VP8/VP9/AV1 tuning
	Deadline string // -deadline good
	CPUUsed  string // -cpu-used 0
	RowMT    string // -row-mt 1

	Map string
}

// DefaultOptions returns the configuration shown on startup.
func DefaultOptions() *Options {
	c := catalog.DefaultContainer()
	return &Options{
		Container:   c,
		VideoCodec:  c.VideoCodec,
		Extension:   c.Extension,
		PixelFormat: c.PixelFormat(),
		Pass:        PassSingle,
		Audio:       catalog.AudioDefault,
		EBU:         DefaultLoudness(),
		Map:         DefaultMap,
	}
}

// Snapshot returns a deep copy safe to hand to the command builder.
func (o *Options) Snapshot() Options {
	s := *o
	s.PeakGains = slices.Clone(o.PeakGains)
	s.RMSGains = slices.Clone(o.RMSGains)
	return s
}

// Gains returns the per-file gain list for the active analysis, if any.
func (o Options) Gains() []string {
	if len(o.PeakGains) > 0 {
		return o.PeakGains
	}
	return o.RMSGains
}

// GainFor returns the volume filter for the i-th input, or "" when no gain applies.
func (o Options) GainFor(i int) string {
	gains := o.Gains()
	if i < 0 || i >= len(gains) {
		return ""
	}
	return strings.TrimSpace(gains[i])
}

// ClearAudioParams resets the optional audio parameters.
func (o *Options) ClearAudioParams() {
	o.AudioChannel = Param{}
	o.AudioRate = Param{}
	o.AudioDepth = Param{}
	o.AudioBitrate = Param{}
}

// audioArgs returns codec and parameter flags in command order.
func (o Options) audioArgs() []string {
	return []string{
		o.AudioCodecFlag,
		o.AudioBitrate.Flag,
		o.AudioRate.Flag,
		o.AudioChannel.Flag,
		o.AudioDepth.Flag,
	}
}

// qualityArgs returns the rate control and tuning flags shared by every encoding pass.
func (o Options) qualityArgs() []string {
	return []string{
		o.CRF,
		o.Bitrate,
		o.Deadline,
		o.CPUUsed,
		o.RowMT,
		o.Preset,
		o.Profile,
		o.Tune,
	}
}

// pictureArgs returns aspect, rate, filter and pixel format flags.
func (o Options) pictureArgs() []string {
	return []string{
		o.Aspect,
		o.FrameRate,
		o.VideoFilter,
		o.PixelFormat,
	}
}
