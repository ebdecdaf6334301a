package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/panel"
)

// panelFlags mirrors the panel controls. Only flags set on the command line
// are applied, in the order the panel enables them.
type panelFlags struct {
	container string
	twoPass   bool
	bitrate   int
	crf       int
	aspect    string
	rate      string

	crop        string
	scale       string
	setdar      string
	setsar      string
	rotate      string
	deinterlace string
	interlace   string
	denoise     string

	audio         string
	audioBitrate  string
	audioRate     string
	audioChannels string
	audioDepth    string

	normalize string
	target    float64
	ebuI      float64
	ebuTP     float64
	ebuLRA    float64

	preset   string
	profile  string
	tune     string
	deadline string
	cpuUsed  int
	rowMT    bool

	start    string
	duration string
}

var rotations = map[string]struct{ filter, label string }{
	"cw":  {"transpose=1", "Rotate 90 degrees clockwise"},
	"ccw": {"transpose=2", "Rotate 90 degrees counterclockwise"},
	"180": {"transpose=2,transpose=2", "Rotate 180 degrees"},
}

func addPanelFlags(fs *pflag.FlagSet, f *panelFlags) {
	fs.StringVar(&f.container, "container", catalog.LabelDefault, "Container label, see 'ffpanel catalog containers'")
	fs.BoolVar(&f.twoPass, "two-pass", false, "Encode in two passes")
	fs.IntVar(&f.bitrate, "bitrate", catalog.BitrateDefault, "Video bitrate in kb/s")
	fs.IntVar(&f.crf, "crf", 0, "Constant rate factor")
	fs.StringVar(&f.aspect, "aspect", "", "Display aspect ratio, e.g. 16:9")
	fs.StringVar(&f.rate, "rate", "", "Output frame rate, e.g. 25")

	fs.StringVar(&f.crop, "crop", "", "Crop area w:h:x:y")
	fs.StringVar(&f.scale, "scale", "", "Scale filter, e.g. scale=1280:-1")
	fs.StringVar(&f.setdar, "setdar", "", "Display aspect filter, e.g. setdar=16/9")
	fs.StringVar(&f.setsar, "setsar", "", "Sample aspect filter, e.g. setsar=1/1")
	fs.StringVar(&f.rotate, "rotate", "", "Rotation: cw, ccw or 180")
	fs.StringVar(&f.deinterlace, "deinterlace", "", "Deinterlace filter, e.g. yadif")
	fs.StringVar(&f.interlace, "interlace", "", "Interlace filter, e.g. interlace")
	fs.StringVar(&f.denoise, "denoise", "", "Denoise filter, e.g. hqdn3d")

	fs.StringVar(&f.audio, "audio", string(catalog.AudioDefault), "Audio codec key, see 'ffpanel catalog audio'")
	fs.StringVar(&f.audioBitrate, "audio-bitrate", "", "Audio bitrate, e.g. 192k")
	fs.StringVar(&f.audioRate, "audio-rate", "", "Audio sample rate in Hz")
	fs.StringVar(&f.audioChannels, "audio-channels", "", "Audio channel count")
	fs.StringVar(&f.audioDepth, "audio-depth", "", "Audio bit depth: 16, 24 or 32")

	fs.StringVar(&f.normalize, "normalize", "off", "Audio normalization: off, peak, rms or ebu")
	fs.Float64Var(&f.target, "target", 0, "PEAK/RMS target level in dBFS")
	fs.Float64Var(&f.ebuI, "ebu-i", catalog.EBUIntegratedDefault, "EBU integrated loudness target")
	fs.Float64Var(&f.ebuTP, "ebu-tp", catalog.EBUTruePeakDefault, "EBU true peak target")
	fs.Float64Var(&f.ebuLRA, "ebu-lra", catalog.EBULRADefault, "EBU loudness range target")

	fs.StringVar(&f.preset, "preset", "", "h.264/h.265 preset")
	fs.StringVar(&f.profile, "profile", "", "h.264/h.265 profile")
	fs.StringVar(&f.tune, "tune", "", "h.264/h.265 tune")
	fs.StringVar(&f.deadline, "deadline", catalog.DefaultDeadline, "VP8/VP9/AV1 deadline")
	fs.IntVar(&f.cpuUsed, "cpu-used", 0, "VP8/VP9/AV1 cpu-used")
	fs.BoolVar(&f.rowMT, "row-mt", true, "VP9 row based multithreading")

	fs.StringVar(&f.start, "start", "", "Seek position before each input, e.g. 00:01:30")
	fs.StringVar(&f.duration, "duration", "", "Process only this duration of each input")
}

func (f *panelFlags) timeRange() ffmpeg.TimeRange {
	return ffmpeg.TimeRange{Start: strings.TrimSpace(f.start), Duration: strings.TrimSpace(f.duration)}
}

// apply replays the set flags onto c. Inputs are queued before
// normalization since queueing switches it off.
func (f *panelFlags) apply(c *panel.Controller, fs *pflag.FlagSet, inputs []string) error {
	set := func(name string) bool { return fs.Changed(name) }
	steps := []struct {
		when bool
		name string
		run  func() error
	}{
		{set("container"), "container", func() error { return c.SelectContainer(f.container) }},
		{set("audio"), "audio", func() error { return c.SelectAudio(catalog.AudioCodec(f.audio)) }},
		{set("audio-bitrate") || set("audio-rate") || set("audio-channels") || set("audio-depth"), "audio parameters", func() error {
			return c.ApplyAudioParams(f.audioParams(c.Options().Audio), true)
		}},
		{len(inputs) > 0, "inputs", func() error { c.SetInputs(inputs); return nil }},
		{set("normalize"), "normalize", func() error {
			mode, err := catalog.ParseNormalization(strings.ToLower(f.normalize))
			if err != nil {
				return err
			}
			return c.SetNormalization(mode)
		}},
		{set("target"), "target", func() error { return c.SetTarget(f.target) }},
		{set("ebu-i") || set("ebu-tp") || set("ebu-lra"), "loudness", func() error {
			return c.SetLoudness(ffmpeg.LoudnessParams{Integrated: f.ebuI, TruePeak: f.ebuTP, LRA: f.ebuLRA})
		}},
		{set("two-pass"), "two-pass", func() error { return c.SetTwoPass(f.twoPass) }},
		{set("bitrate"), "bitrate", func() error { return c.SetBitrate(f.bitrate) }},
		{set("crf"), "crf", func() error { return c.SetCRF(f.crf) }},
		{set("aspect"), "aspect", func() error { return c.SetAspect(f.aspect) }},
		{set("rate"), "rate", func() error { return c.SetFrameRate(f.rate) }},
		{set("preset"), "preset", func() error { return c.SetPreset(f.preset) }},
		{set("profile"), "profile", func() error { return c.SetProfile(f.profile) }},
		{set("tune"), "tune", func() error { return c.SetTune(f.tune) }},
		{set("deadline"), "deadline", func() error { return c.SetDeadline(f.deadline) }},
		{set("cpu-used"), "cpu-used", func() error { return c.SetCPUUsed(f.cpuUsed) }},
		{set("row-mt"), "row-mt", func() error { return c.SetRowMT(f.rowMT) }},
		{set("crop"), "crop", func() error { return c.ApplyCrop(f.crop, true) }},
		{set("scale") || set("setdar") || set("setsar"), "size", func() error {
			return c.ApplySize(panel.SizeResult{Scale: f.scale, Setdar: f.setdar, Setsar: f.setsar}, true)
		}},
		{set("rotate"), "rotate", func() error {
			r, ok := rotations[f.rotate]
			if !ok {
				return fmt.Errorf("unknown rotation %q (cw, ccw, 180)", f.rotate)
			}
			return c.ApplyRotate(r.filter, r.label, true)
		}},
		{set("deinterlace") || set("interlace"), "lacing", func() error {
			return c.ApplyLacing(panel.LacingResult{Deinterlace: f.deinterlace, Interlace: f.interlace}, true)
		}},
		{set("denoise"), "denoise", func() error { return c.ApplyDenoiser(f.denoise, true) }},
	}

	for _, s := range steps {
		if !s.when {
			continue
		}
		if err := s.run(); err != nil {
			return fmt.Errorf("failed to apply %s: %w", s.name, err)
		}
	}
	return nil
}

// audioParams turns the audio flags into dialog values for codec a.
func (f *panelFlags) audioParams(a catalog.AudioCodec) panel.AudioParams {
	return panel.AudioParams{
		Channel: param(f.audioChannels, f.audioChannels+" channels", "-ac"),
		Rate:    param(f.audioRate, f.audioRate+" Hz", "-ar"),
		Bitrate: param(f.audioBitrate, f.audioBitrate, "-b:a"),
		Depth:   depthParam(a, f.audioDepth),
	}
}

func param(value, description, flag string) ffmpeg.Param {
	if value = strings.TrimSpace(value); value == "" {
		return ffmpeg.Param{}
	}
	return ffmpeg.Param{Description: description, Flag: flag + " " + value}
}

// depthParam selects the pcm encoder for wav/aiff and the sample format otherwise.
func depthParam(a catalog.AudioCodec, bits string) ffmpeg.Param {
	if bits = strings.TrimSpace(bits); bits == "" {
		return ffmpeg.Param{}
	}
	if a.IsPCM() {
		return ffmpeg.Param{Description: bits + " bit", Flag: "-c:a pcm_s" + bits + "le"}
	}
	return ffmpeg.Param{Description: bits + " bit", Flag: "-sample_fmt s" + bits}
}
