package panel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/volume"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) operations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ops []string
	for _, ev := range p.events {
		if e, ok := ev.(events.OptionsChangedEvent); ok {
			ops = append(ops, e.Operation)
		}
	}
	return ops
}

type fakeAnalyzer struct {
	ms    []volume.Measurement
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, files []string, _ ffmpeg.TimeRange) ([]volume.Measurement, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]volume.Measurement, len(files))
	for i, file := range files {
		out[i] = f.ms[i]
		out[i].File = file
	}
	return out, nil
}

func newTestController(t *testing.T) (*Controller, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	return New(WithPublisher(pub), WithLogger(testLogger())), pub
}

func mustSelect(t *testing.T, c *Controller, label string) {
	t.Helper()
	if err := c.SelectContainer(label); err != nil {
		t.Fatalf("SelectContainer(%q) error = %v", label, err)
	}
}

func mustCommands(t *testing.T, c *Controller) ffmpeg.Commands {
	t.Helper()
	cmds, err := c.Commands()
	if err != nil {
		t.Fatalf("Commands() error = %v", err)
	}
	return cmds
}

func TestDeriveRateControls(t *testing.T) {
	tests := []struct {
		label       string
		pass        ffmpeg.Pass
		wantBitrate bool
		wantCRF     bool
	}{
		{"MKV (h.264/AVC)", ffmpeg.PassSingle, false, true},
		{"MKV (h.264/AVC)", ffmpeg.PassDouble, true, false},
		{"MP4 (h.265/HEVC)", ffmpeg.PassSingle, false, true},
		{"MP4 (h.265/HEVC)", ffmpeg.PassDouble, true, false},
		{"WebM vp9 (HTML5)", ffmpeg.PassSingle, true, true},
		{"WebM vp8 (HTML5)", ffmpeg.PassDouble, true, true},
		{"MKV (AV1/libaom)", ffmpeg.PassSingle, true, true},
		{"MKV (AV1/libaom)", ffmpeg.PassDouble, true, false},
		{"AVI (XVID mpeg4)", ffmpeg.PassSingle, true, false},
		{"OGG theora", ffmpeg.PassDouble, true, false},
		{catalog.LabelCopyVideo, ffmpeg.PassSingle, false, false},
		{catalog.LabelCopyVideo, ffmpeg.PassDouble, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.label+"/"+tt.pass.String(), func(t *testing.T) {
			ct, ok := catalog.ContainerByLabel(tt.label)
			if !ok {
				t.Fatalf("unknown container %q", tt.label)
			}
			e := Derive(State{Container: ct, Pass: tt.pass, Audio: catalog.AudioDefault})
			if e.BitrateEnabled != tt.wantBitrate || e.CRFEnabled != tt.wantCRF {
				t.Errorf("bitrate=%v crf=%v, want bitrate=%v crf=%v", e.BitrateEnabled, e.CRFEnabled, tt.wantBitrate, tt.wantCRF)
			}
		})
	}
}

func TestDerivePanels(t *testing.T) {
	x264, _ := catalog.ContainerByLabel("MKV (h.264/AVC)")
	x265, _ := catalog.ContainerByLabel("MKV (h.265/HEVC)")
	vp8, _ := catalog.ContainerByLabel("WebM vp8 (HTML5)")
	av1, _ := catalog.ContainerByLabel("MKV (AV1/libaom)")
	cp, _ := catalog.ContainerByLabel(catalog.LabelCopyVideo)

	tests := []struct {
		name  string
		state State
		check func(t *testing.T, e Enablement)
	}{
		{"x264 tab", State{Container: x264}, func(t *testing.T, e Enablement) {
			if !e.H264TabEnabled || e.VPXPanelVisible || !e.FiltersEnabled || !e.PassToggleEnabled {
				t.Errorf("unexpected %+v", e)
			}
		}},
		{"x265 hides some tunes", State{Container: x265}, func(t *testing.T, e Enablement) {
			for i, tune := range catalog.X264Tunes {
				want := tune != "film" && tune != "animation" && tune != "stillimage"
				if e.AllowedTunes[i] != want {
					t.Errorf("tune %s allowed = %v, want %v", tune, e.AllowedTunes[i], want)
				}
			}
		}},
		{"vp8 panel", State{Container: vp8}, func(t *testing.T, e Enablement) {
			if !e.VPXPanelVisible || e.H264TabEnabled {
				t.Errorf("unexpected %+v", e)
			}
		}},
		{"av1 panel", State{Container: av1}, func(t *testing.T, e Enablement) {
			if !e.VPXPanelVisible {
				t.Error("AV1 should show the VP panel")
			}
		}},
		{"copy locks pass off", State{Container: cp}, func(t *testing.T, e Enablement) {
			if e.PassLock != PassForcedOff || e.PassToggleEnabled || e.FiltersEnabled {
				t.Errorf("unexpected %+v", e)
			}
			for i, ok := range e.AllowedAudio {
				if !ok {
					t.Errorf("copy container should offer audio slot %d", i)
				}
			}
		}},
		{"ebu locks pass on", State{Container: cp, Normalization: catalog.NormalizeEBU}, func(t *testing.T, e Enablement) {
			if e.PassLock != PassForcedOn || !e.EBUPanelVisible || e.PeakPanelVisible {
				t.Errorf("unexpected %+v", e)
			}
		}},
		{"peak pending analysis", State{Container: x264, Normalization: catalog.NormalizePeak}, func(t *testing.T, e Enablement) {
			if !e.PeakPanelVisible || !e.AnalyzeEnabled {
				t.Errorf("unexpected %+v", e)
			}
		}},
		{"peak analyzed", State{Container: x264, Normalization: catalog.NormalizeRMS, Analyzed: true}, func(t *testing.T, e Enablement) {
			if e.AnalyzeEnabled {
				t.Error("analysis should be disabled once done")
			}
		}},
		{"default audio", State{Container: x264, Audio: catalog.AudioDefault}, func(t *testing.T, e Enablement) {
			if !e.NormalizationEnabled || e.AudioParamsEnabled {
				t.Errorf("unexpected %+v", e)
			}
		}},
		{"silent audio", State{Container: x264, Audio: catalog.AudioSilent}, func(t *testing.T, e Enablement) {
			if e.NormalizationEnabled || e.AudioParamsEnabled {
				t.Errorf("unexpected %+v", e)
			}
		}},
		{"aac audio", State{Container: x264, Audio: catalog.AudioAAC}, func(t *testing.T, e Enablement) {
			if !e.NormalizationEnabled || !e.AudioParamsEnabled {
				t.Errorf("unexpected %+v", e)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Derive(tt.state))
		})
	}
}

func TestNewDefaults(t *testing.T) {
	c, _ := newTestController(t)
	o := c.Options()
	if o.Container.Label != catalog.LabelDefault || o.VideoCodec != "-c:v libx264" || o.Extension != "mkv" {
		t.Fatalf("unexpected defaults %+v", o.Container)
	}

	cmds := mustCommands(t, c)
	if cmds.Mode != ffmpeg.ModeOnePass || len(cmds.Passes) != 1 {
		t.Fatalf("Commands() = %+v", cmds)
	}
	cmd := cmds.Passes[0]
	if want := "-c:v libx264 -crf 23 -pix_fmt yuv420p -map 0 -map_metadata 0"; cmd != want {
		t.Errorf("command = %q, want %q", cmd, want)
	}
	if strings.Contains(cmd, "-b:v") {
		t.Error("single pass h.264 must not carry a bitrate")
	}
}

func TestSelectContainer(t *testing.T) {
	c, pub := newTestController(t)

	if err := c.SelectContainer("VHS"); !errors.Is(err, ErrUnknownContainer) {
		t.Errorf("SelectContainer(unknown) error = %v", err)
	}

	mustSelect(t, c, "WebM vp9 (HTML5)")
	o := c.Options()
	if o.VideoCodec != "-c:v libvpx-vp9" || o.Extension != "webm" || o.PixelFormat != catalog.PixelFormatYUV420P {
		t.Errorf("unexpected options %+v", o)
	}
	if o.Bitrate != "" || o.CRF != "" {
		t.Error("container switch should clear bitrate and crf")
	}

	mustSelect(t, c, "OGG theora")
	if got := c.Options().PixelFormat; got != "" {
		t.Errorf("theora pixel format = %q, want empty", got)
	}
	if ops := pub.operations(); len(ops) != 2 || ops[0] != "container" {
		t.Errorf("published operations = %v", ops)
	}
}

func TestSelectContainerResetsAudioAndTuning(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SelectAudio(catalog.AudioFlac); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPreset("slow"); err != nil {
		t.Fatal(err)
	}

	mustSelect(t, c, "MP4 (h.264/AVC)")
	o := c.Options()
	if o.Audio != catalog.AudioDefault || o.AudioCodecFlag != "" {
		t.Errorf("audio = %s %q, want default", o.Audio, o.AudioCodecFlag)
	}
	if o.Preset != "" {
		t.Errorf("preset = %q, want reset", o.Preset)
	}
}

func TestCopyContainerLocksPass(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SetTwoPass(true); err != nil {
		t.Fatal(err)
	}
	mustSelect(t, c, catalog.LabelCopyVideo)

	if c.Options().Pass != ffmpeg.PassSingle {
		t.Error("copy container should force single pass")
	}
	if err := c.SetTwoPass(true); !errors.Is(err, ErrPassLocked) {
		t.Errorf("SetTwoPass(true) error = %v, want ErrPassLocked", err)
	}
	if err := c.SetTwoPass(false); err != nil {
		t.Errorf("SetTwoPass(false) on a locked-off toggle should be a no-op, got %v", err)
	}
	if err := c.SetBitrate(1000); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("SetBitrate() error = %v, want ErrControlDisabled", err)
	}

	cmds := mustCommands(t, c)
	if cmds.Passes[0] != "-c:v copy -map 0 -map_metadata 0" {
		t.Errorf("copy command = %q", cmds.Passes[0])
	}
}

func TestTwoPassBitrate(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.SetBitrate(1500); !errors.Is(err, ErrControlDisabled) {
		t.Fatalf("bitrate should be disabled for single pass h.264, got %v", err)
	}
	if err := c.SetTwoPass(true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetCRF(20); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("crf should be disabled for two-pass h.264, got %v", err)
	}
	if err := c.SetBitrate(1500); err != nil {
		t.Fatal(err)
	}

	cmds := mustCommands(t, c)
	if cmds.Mode != ffmpeg.ModeTwoPass || len(cmds.Passes) != 2 {
		t.Fatalf("Commands() = %+v", cmds)
	}
	wantFirst := "-an -c:v libx264 -b:v 1500k -pix_fmt yuv420p -pass 1 -f rawvideo"
	wantSecond := "-c:v libx264 -b:v 1500k -pix_fmt yuv420p -map 0 -map_metadata 0 -pass 2"
	if cmds.Passes[0] != wantFirst {
		t.Errorf("pass 1 = %q, want %q", cmds.Passes[0], wantFirst)
	}
	if cmds.Passes[1] != wantSecond {
		t.Errorf("pass 2 = %q, want %q", cmds.Passes[1], wantSecond)
	}
}

func TestBitrateOutOfRange(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, "AVI (XVID mpeg4)")
	if err := c.SetBitrate(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetBitrate(-1) error = %v", err)
	}
	if err := c.SetBitrate(catalog.BitrateMax + 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetBitrate(max+1) error = %v", err)
	}
	if err := c.SetCRF(10); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("SetCRF() error = %v, want ErrControlDisabled", err)
	}
}

func TestVPXKeepsBitrateAndCRF(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, "WebM vp9 (HTML5)")

	if err := c.SetCRF(64); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetCRF(64) error = %v", err)
	}
	if err := c.SetCRF(30); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBitrate(800); err != nil {
		t.Fatal(err)
	}
	o := c.Options()
	if o.CRF != "-crf 30" || o.Bitrate != "-b:v 800k" {
		t.Errorf("crf=%q bitrate=%q, want both set", o.CRF, o.Bitrate)
	}

	if err := c.SetDeadline("realtime"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetCPUUsed(12); err != nil {
		t.Fatal(err)
	}
	if err := c.SetRowMT(false); err != nil {
		t.Fatal(err)
	}

	cmd := mustCommands(t, c).Passes[0]
	want := "-c:v libvpx-vp9 -crf 30 -b:v 800k -deadline realtime -cpu-used 12 -pix_fmt yuv420p -map 0 -map_metadata 0"
	if cmd != want {
		t.Errorf("command = %q, want %q", cmd, want)
	}
}

func TestAV1TwoPassClearsCRF(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, "MKV (AV1/libaom)")
	if err := c.SetCRF(40); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBitrate(1200); err != nil {
		t.Fatal(err)
	}
	if o := c.Options(); o.CRF == "" {
		t.Fatal("single pass AV1 keeps crf alongside bitrate")
	}

	if err := c.SetTwoPass(true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBitrate(1200); err != nil {
		t.Fatal(err)
	}
	if o := c.Options(); o.CRF != "" {
		t.Errorf("two-pass AV1 crf = %q, want cleared", o.CRF)
	}
}

func TestCPUUsedRange(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SetCPUUsed(1); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("cpu-used on h.264 error = %v", err)
	}
	mustSelect(t, c, "WebM vp8 (HTML5)")
	if err := c.SetCPUUsed(6); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetCPUUsed(6) with deadline good error = %v", err)
	}
	if err := c.SetDeadline("fastest"); err == nil {
		t.Error("expected invalid deadline error")
	}
}

func TestFinalizeClearsVPXFlagsForOtherFamilies(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, "WebM vp8 (HTML5)")
	c.Finalize()
	if o := c.Options(); o.Deadline != "-deadline good" || o.CPUUsed != "-cpu-used 0" || o.RowMT != "-row-mt 1" {
		t.Fatalf("vp8 flags = %q %q %q", o.Deadline, o.CPUUsed, o.RowMT)
	}
	mustSelect(t, c, "MKV (h.265/HEVC)")
	c.Finalize()
	if o := c.Options(); o.Deadline != "" || o.CPUUsed != "" || o.RowMT != "" {
		t.Errorf("h.265 carries vp flags %q %q %q", o.Deadline, o.CPUUsed, o.RowMT)
	}
	if o := c.Options(); o.CRF != "-crf 28" {
		t.Errorf("h.265 default crf = %q, want -crf 28", o.CRF)
	}
}

func TestTuning(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SetTune("film"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetProfile("high"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetPreset(catalog.Disabled); err != nil {
		t.Fatal(err)
	}
	o := c.Options()
	if o.Tune != "-tune:v film" || o.Profile != "-profile:v high" || o.Preset != "" {
		t.Errorf("tuning = %q %q %q", o.Preset, o.Profile, o.Tune)
	}

	mustSelect(t, c, "MKV (h.265/HEVC)")
	if err := c.SetTune("film"); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("x265 film tune error = %v", err)
	}
	if err := c.SetTune("grain"); err != nil {
		t.Errorf("x265 grain tune error = %v", err)
	}

	mustSelect(t, c, "WebM vp9 (HTML5)")
	if err := c.SetPreset("slow"); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("vp9 preset error = %v", err)
	}
}

func TestAspectAndRate(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SetAspect("16:9"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetFrameRate("29.97"); err != nil {
		t.Fatal(err)
	}
	o := c.Options()
	if o.Aspect != "-aspect 16:9" || o.FrameRate != "-r 29.97" {
		t.Errorf("aspect=%q rate=%q", o.Aspect, o.FrameRate)
	}
	if err := c.SetAspect("Default"); err != nil {
		t.Fatal(err)
	}
	if c.Options().Aspect != "" {
		t.Error("Default aspect should clear the flag")
	}
	if err := c.SetFrameRate("120"); err == nil {
		t.Error("expected invalid frame rate error")
	}
}

func TestFilters(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.ClearFilters(); !errors.Is(err, ErrNoFilters) {
		t.Errorf("ClearFilters() on empty error = %v", err)
	}
	if err := c.ApplyCrop("640:480:0:0", false); err != nil {
		t.Fatal(err)
	}
	if c.Options().VideoFilter != "" {
		t.Fatal("cancelled dialog must not change filters")
	}

	steps := []struct {
		name  string
		apply func() error
		want  string
	}{
		{"denoiser", func() error { return c.ApplyDenoiser("hqdn3d=4", true) }, "-vf hqdn3d=4"},
		{"crop", func() error { return c.ApplyCrop("640:480:0:0", true) }, "-vf crop=640:480:0:0,hqdn3d=4"},
		{"size", func() error { return c.ApplySize(SizeResult{Scale: "scale=320:-1", Setsar: "setsar=1/1"}, true) }, "-vf crop=640:480:0:0,scale=320:-1,setsar=1/1,hqdn3d=4"},
		{"lacing", func() error { return c.ApplyLacing(LacingResult{Deinterlace: "yadif", Interlace: "interlace"}, true) }, "-vf crop=640:480:0:0,scale=320:-1,setsar=1/1,yadif,hqdn3d=4"},
		{"rotate", func() error { return c.ApplyRotate("transpose=1", "90° right", true) }, "-vf crop=640:480:0:0,scale=320:-1,setsar=1/1,transpose=1,yadif,hqdn3d=4"},
		{"clear crop", func() error { return c.ApplyCrop("", true) }, "-vf scale=320:-1,setsar=1/1,transpose=1,yadif,hqdn3d=4"},
	}
	for _, s := range steps {
		if err := s.apply(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if got := c.Options().VideoFilter; got != s.want {
			t.Errorf("%s: filter = %q, want %q", s.name, got, s.want)
		}
	}

	if err := c.ClearFilters(); err != nil {
		t.Fatal(err)
	}
	if o := c.Options(); o.VideoFilter != "" || !o.Filters.IsZero() {
		t.Errorf("filters after clear = %+v", o.Filters)
	}

	mustSelect(t, c, catalog.LabelCopyVideo)
	if err := c.ApplyCrop("1:1:0:0", true); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("crop with copy codec error = %v", err)
	}
}

func TestSelectAudio(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, "AVI (h.264/AVC)")

	if err := c.SelectAudio(catalog.AudioFlac); !errors.Is(err, ErrAudioNotAllowed) {
		t.Errorf("flac in avi error = %v", err)
	}
	if err := c.SelectAudio("dts"); !errors.Is(err, ErrAudioNotAllowed) {
		t.Errorf("unknown codec error = %v", err)
	}
	if err := c.SelectAudio(catalog.AudioMP3); err != nil {
		t.Fatal(err)
	}
	if o := c.Options(); o.AudioCodecFlag != "-c:a libmp3lame" {
		t.Errorf("codec flag = %q", o.AudioCodecFlag)
	}

	if err := c.SetNormalization(catalog.NormalizePeak); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectAudio(catalog.AudioCopy); err != nil {
		t.Fatal(err)
	}
	o := c.Options()
	if o.Normalization != catalog.NormalizeOff {
		t.Error("copying audio should switch normalization off")
	}
	if err := c.SetNormalization(catalog.NormalizeRMS); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("normalization with copied audio error = %v", err)
	}
	if err := c.ApplyAudioParams(AudioParams{}, true); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("audio params with copied audio error = %v", err)
	}
}

func TestApplyAudioParams(t *testing.T) {
	c, _ := newTestController(t)

	if err := c.ApplyAudioParams(AudioParams{}, true); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("default audio params error = %v", err)
	}

	if err := c.SelectAudio(catalog.AudioWav); err != nil {
		t.Fatal(err)
	}
	params := AudioParams{
		Channel: ffmpeg.Param{Description: "Stereo", Flag: "-ac 2"},
		Rate:    ffmpeg.Param{Description: "48000 Hz", Flag: "-ar 48000"},
		Depth:   ffmpeg.Param{Description: "24 bit", Flag: "-c:a pcm_s24le"},
	}
	if err := c.ApplyAudioParams(params, false); err != nil {
		t.Fatal(err)
	}
	if c.Options().AudioChannel.Flag != "" {
		t.Fatal("cancelled dialog must not change audio params")
	}
	if err := c.ApplyAudioParams(params, true); err != nil {
		t.Fatal(err)
	}
	o := c.Options()
	if o.AudioCodecFlag != "-c:a pcm_s24le" || o.AudioDepth.Flag != "" || o.AudioDepth.Description != "24 bit" {
		t.Errorf("pcm depth: codec=%q depth=%+v", o.AudioCodecFlag, o.AudioDepth)
	}
	cmd := mustCommands(t, c).Passes[0]
	if strings.Count(cmd, "pcm_s24le") != 1 || !strings.Contains(cmd, "-c:a pcm_s24le -ar 48000 -ac 2") {
		t.Errorf("command = %q", cmd)
	}

	params.Depth = ffmpeg.Param{Description: "Default"}
	if err := c.ApplyAudioParams(params, true); err != nil {
		t.Fatal(err)
	}
	if got := c.Options().AudioCodecFlag; got != "-c:a pcm_s16le" {
		t.Errorf("default depth codec = %q", got)
	}

	if err := c.SelectAudio(catalog.AudioAAC); err != nil {
		t.Fatal(err)
	}
	if o := c.Options(); o.AudioChannel.Flag != "" || o.AudioRate.Flag != "" {
		t.Error("changing codec should clear audio params")
	}
}

func TestEBUForcesTwoPass(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SetNormalization(catalog.NormalizeEBU); err != nil {
		t.Fatal(err)
	}
	if c.Options().Pass != ffmpeg.PassDouble {
		t.Fatal("EBU should force two-pass")
	}
	if err := c.SetTwoPass(false); !errors.Is(err, ErrPassLocked) {
		t.Errorf("SetTwoPass(false) error = %v", err)
	}
	if err := c.SetLoudness(ffmpeg.LoudnessParams{Integrated: -80, TruePeak: -2, LRA: 7}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetLoudness(out of range) error = %v", err)
	}
	if err := c.SetLoudness(ffmpeg.LoudnessParams{Integrated: -16, TruePeak: -1.5, LRA: 11}); err != nil {
		t.Fatal(err)
	}

	cmds := mustCommands(t, c)
	if cmds.Mode != ffmpeg.ModeTwoPassEBU {
		t.Fatalf("mode = %s", cmds.Mode)
	}
	if want := "loudnorm=I=-16.0:TP=-1.5:LRA=11.0:offset=0.0:print_format=summary"; cmds.LoudnessFilter != want {
		t.Errorf("loudness filter = %q, want %q", cmds.LoudnessFilter, want)
	}

	if err := c.SetNormalization(catalog.NormalizeOff); err != nil {
		t.Fatal(err)
	}
	if err := c.SetTwoPass(false); err != nil {
		t.Errorf("pass toggle should unlock after EBU, got %v", err)
	}
}

func TestEBUWithCopyCodec(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, catalog.LabelCopyVideo)
	if err := c.SetNormalization(catalog.NormalizeEBU); err != nil {
		t.Fatal(err)
	}
	if c.Options().Pass != ffmpeg.PassDouble {
		t.Fatal("EBU wins over the copy pass lock")
	}
	cmds := mustCommands(t, c)
	if !strings.Contains(cmds.Passes[0], "-vn -sn") {
		t.Errorf("pass 1 = %q, want audio-only measurement", cmds.Passes[0])
	}

	if err := c.SetNormalization(catalog.NormalizeOff); err != nil {
		t.Fatal(err)
	}
	if c.Options().Pass != ffmpeg.PassSingle {
		t.Error("leaving EBU with copy codec should fall back to single pass")
	}
}

func TestAnalyze(t *testing.T) {
	c, pub := newTestController(t)
	analyzer := &fakeAnalyzer{ms: []volume.Measurement{
		{MaxVolume: -3.0, MeanVolume: -22.0},
		{MaxVolume: -1.0, MeanVolume: -20.0},
	}}

	if _, err := c.Analyze(context.Background(), analyzer, ffmpeg.TimeRange{}); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("Analyze() with normalization off error = %v", err)
	}
	if err := c.SetNormalization(catalog.NormalizePeak); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Analyze(context.Background(), analyzer, ffmpeg.TimeRange{}); !errors.Is(err, ErrNoInputs) {
		t.Errorf("Analyze() without inputs error = %v", err)
	}

	c.SetInputs([]string{"a.mkv", "b.mkv"})
	if c.Options().Normalization != catalog.NormalizeOff {
		t.Fatal("SetInputs should reset normalization")
	}
	if err := c.SetNormalization(catalog.NormalizePeak); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Commands(); !errors.Is(err, ErrAnalysisRequired) {
		t.Fatalf("Commands() before analysis error = %v", err)
	}

	report, err := c.Analyze(context.Background(), analyzer, ffmpeg.TimeRange{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != volume.StatusPartial {
		t.Errorf("status = %v, want partial", report.Status)
	}
	o := c.Options()
	if len(o.PeakGains) != 2 || o.PeakGains[0] != "-af volume=2.000000dB" || o.PeakGains[1] != ffmpeg.BlankGain {
		t.Errorf("peak gains = %q", o.PeakGains)
	}
	if len(o.RMSGains) != 0 {
		t.Error("RMS gains must stay empty under PEAK")
	}
	if o.GainFor(1) != "" {
		t.Errorf("GainFor(1) = %q, want empty", o.GainFor(1))
	}
	if len(c.Details()) != 2 {
		t.Errorf("details = %v", c.Details())
	}
	if err := c.ReadyToStart(); err != nil {
		t.Errorf("ReadyToStart() = %v", err)
	}
	if _, err := c.Analyze(context.Background(), analyzer, ffmpeg.TimeRange{}); !errors.Is(err, ErrControlDisabled) {
		t.Errorf("second Analyze() error = %v", err)
	}

	if err := c.SetTarget(-2); err != nil {
		t.Fatal(err)
	}
	if err := c.ReadyToStart(); !errors.Is(err, ErrAnalysisRequired) {
		t.Errorf("ReadyToStart() after target change = %v", err)
	}

	if err := c.SetNormalization(catalog.NormalizeRMS); err != nil {
		t.Fatal(err)
	}
	if c.Target() != -20 {
		t.Errorf("RMS target = %v, want -20", c.Target())
	}
	if o := c.Options(); len(o.PeakGains) != 0 || len(o.RMSGains) != 0 {
		t.Error("switching mode should clear gains")
	}
	if _, err := c.Analyze(context.Background(), analyzer, ffmpeg.TimeRange{}); err != nil {
		t.Fatal(err)
	}
	if o := c.Options(); len(o.RMSGains) != 2 || o.RMSGains[0] != "-af volume=2.000000dB" {
		t.Errorf("rms gains = %q", o.RMSGains)
	}

	var analyses int
	pub.mu.Lock()
	for _, ev := range pub.events {
		if _, ok := ev.(events.AnalysisCompletedEvent); ok {
			analyses++
		}
	}
	pub.mu.Unlock()
	if analyses != 2 {
		t.Errorf("published %d analysis events, want 2", analyses)
	}
}

func TestAnalyzeFailureCommitsNothing(t *testing.T) {
	c, _ := newTestController(t)
	c.SetInputs([]string{"a.mkv"})
	if err := c.SetNormalization(catalog.NormalizePeak); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("a.mkv: Invalid data found when processing input")
	_, err := c.Analyze(context.Background(), &fakeAnalyzer{err: wantErr}, ffmpeg.TimeRange{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Analyze() error = %v, want %v", err, wantErr)
	}
	if len(c.Options().PeakGains) != 0 || !c.Enablement().AnalyzeEnabled {
		t.Error("failed analysis must leave state unchanged")
	}
	if err := c.SetTarget(1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetTarget(1) error = %v", err)
	}
}

// shortAnalyzer measures only the first file it is given.
type shortAnalyzer struct{}

func (shortAnalyzer) Analyze(_ context.Context, files []string, _ ffmpeg.TimeRange) ([]volume.Measurement, error) {
	return []volume.Measurement{{File: files[0], MaxVolume: -3.0, MeanVolume: -22.0}}, nil
}

func TestAnalyzeRejectsMeasurementCountMismatch(t *testing.T) {
	c, pub := newTestController(t)
	c.SetInputs([]string{"a.mkv", "b.mkv"})
	if err := c.SetNormalization(catalog.NormalizePeak); err != nil {
		t.Fatal(err)
	}

	_, err := c.Analyze(context.Background(), shortAnalyzer{}, ffmpeg.TimeRange{})
	if !errors.Is(err, volume.ErrAnalysis) {
		t.Fatalf("Analyze() error = %v, want ErrAnalysis", err)
	}
	if o := c.Options(); len(o.PeakGains) != 0 {
		t.Errorf("peak gains = %q, want none after a short analysis", o.PeakGains)
	}
	if err := c.ReadyToStart(); !errors.Is(err, ErrAnalysisRequired) {
		t.Errorf("ReadyToStart() = %v, want ErrAnalysisRequired", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, ev := range pub.events {
		if _, ok := ev.(events.AnalysisCompletedEvent); ok {
			t.Error("analysis event published for a rejected analysis")
		}
	}
}

func TestCommandsIdempotent(t *testing.T) {
	c, _ := newTestController(t)
	mustSelect(t, c, "MP4 (h.265/HEVC)")
	if err := c.SetTwoPass(true); err != nil {
		t.Fatal(err)
	}
	if err := c.ApplyDenoiser("nlmeans", true); err != nil {
		t.Fatal(err)
	}
	first := mustCommands(t, c)
	second := mustCommands(t, c)
	for i := range first.Passes {
		if first.Passes[i] != second.Passes[i] {
			t.Errorf("pass %d differs: %q vs %q", i, first.Passes[i], second.Passes[i])
		}
	}
	if !strings.Contains(first.Passes[0], "-x265-params pass=1") {
		t.Errorf("x265 pass 1 = %q", first.Passes[0])
	}
}

func TestSummary(t *testing.T) {
	c, _ := newTestController(t)
	c.SetInputs([]string{"a.mkv", "b.mkv"})
	rows := c.Summary(ffmpeg.TimeRange{Start: "00:00:05"})
	if rows[0].Value != "2 file in pending" {
		t.Errorf("first row = %+v", rows[0])
	}
	if last := rows[len(rows)-1]; last.Value != "-ss 00:00:05" {
		t.Errorf("time selection row = %+v", last)
	}
}
