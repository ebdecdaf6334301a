package encoders

import (
	"testing"
)

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_vaapi           H.264/AVC (VAAPI) (codec h264)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 V.S... mpeg4                MPEG-4 part 2
 A....D aac                  AAC (Advanced Audio Coding)
 A....D pcm_s16le            PCM signed 16-bit little-endian
 A....D libopus              libopus Opus (codec opus)
 S..... srt                  SubRip subtitle
`

func TestParse(t *testing.T) {
	list, err := Parse(encodersOutput)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(list.Encoders) != 8 {
		t.Fatalf("got %d encoders, want 8", len(list.Encoders))
	}
	if !list.Has("libx264") || list.Has("libx265") {
		t.Errorf("Has() mismatch")
	}

	tests := []struct {
		name    string
		typ     EncoderType
		hwaccel bool
	}{
		{"libx264", VideoEncoder, false},
		{"h264_vaapi", VideoEncoder, true},
		{"aac", AudioEncoder, false},
		{"srt", SubtitleEncoder, false},
	}
	for _, tt := range tests {
		e := list.byName[tt.name]
		if e.Type != tt.typ || e.HWAccel != tt.hwaccel {
			t.Errorf("%s = %+v, want type %s hwaccel %v", tt.name, e, tt.typ, tt.hwaccel)
		}
	}
}

func TestParseRejectsUnexpectedOutput(t *testing.T) {
	if _, err := Parse("ffmpeg: command not understood\n"); err == nil {
		t.Error("Parse() succeeded on output without an encoder table")
	}
}

func TestFilter(t *testing.T) {
	list, err := Parse(encodersOutput)
	if err != nil {
		t.Fatal(err)
	}
	if got := list.Filter(AudioEncoder, ""); len(got) != 3 {
		t.Errorf("audio encoders = %d, want 3", len(got))
	}
	if got := list.Filter(VideoEncoder, "h.264"); len(got) != 2 {
		t.Errorf("h.264 video encoders = %v", got)
	}
	if got := list.Filter("", "opus"); len(got) != 1 || got[0].Name != "libopus" {
		t.Errorf("opus search = %v", got)
	}
}

func TestEncoderName(t *testing.T) {
	tests := map[string]string{
		"-c:v libx264":               "libx264",
		"-c:v mpeg4 -vtag xvid":      "mpeg4",
		"-c:v libaom-av1 -strict -2": "libaom-av1",
		"-c:a pcm_s16le":             "pcm_s16le",
		"-c:v copy":                  "",
		"-an":                        "",
		"":                           "",
	}
	for in, want := range tests {
		if got := EncoderName(in); got != want {
			t.Errorf("EncoderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheck(t *testing.T) {
	list, err := Parse(encodersOutput)
	if err != nil {
		t.Fatal(err)
	}
	support := make(map[string]Support)
	for _, s := range Check(list) {
		support[s.Label] = s
	}

	tests := map[string]bool{
		"MKV (h.264/AVC)":               true,
		"MKV (h.265/HEVC)":              false,
		"WebM vp9 (HTML5)":              true,
		"WebM vp8 (HTML5)":              false,
		"Copy video codec":              true,
		"Aac (Lossy, MultiChannel)":     true,
		"Mp3 (Lossy, No_MultiChannel)":  false,
		"No audio stream (silent)":      true,
		"Default (managed by FFmpeg)":   true,
		"Opus (Lossy, No_MultiChannel)": true,
	}
	for label, want := range tests {
		s, ok := support[label]
		if !ok {
			t.Errorf("%q missing from Check()", label)
			continue
		}
		if s.Available != want {
			t.Errorf("%q available = %v, want %v (encoder %q)", label, s.Available, want, s.Encoder)
		}
	}
}
