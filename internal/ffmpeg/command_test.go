package ffmpeg

import (
	"os"
	"strings"
	"testing"
)

func TestNewCommandBuilder(t *testing.T) {
	builder := NewCommandBuilder("")
	if builder == nil {
		t.Fatal("NewCommandBuilder() returned nil")
	}

	var _ CommandBuilder = builder
}

func TestBuildEncodersListCommand(t *testing.T) {
	builder := NewCommandBuilder("/opt/ffmpeg/bin/ffmpeg")
	cmd, err := builder.BuildEncodersListCommand()
	if err != nil {
		t.Fatalf("BuildEncodersListCommand() failed: %v", err)
	}

	expected := "/opt/ffmpeg/bin/ffmpeg -hide_banner -encoders"
	if cmd != expected {
		t.Errorf("BuildEncodersListCommand() = %q, want %q", cmd, expected)
	}
}

func TestBuildConvertCommand(t *testing.T) {
	builder := NewCommandBuilder("")

	tests := []struct {
		name    string
		config  ConvertConfig
		want    string
		wantErr bool
	}{
		{
			name: "single pass",
			config: ConvertConfig{
				Input:  "/in/a.avi",
				Output: "/out/a.mkv",
				Args:   "-c:v libx264 -crf 23",
			},
			want: "ffmpeg -hide_banner -loglevel level+info -i /in/a.avi -c:v libx264 -crf 23 -y /out/a.mkv",
		},
		{
			name: "quoted paths, time range, gain and progress",
			config: ConvertConfig{
				Input:     "/in/my clip.mov",
				Output:    "/out/my clip.mkv",
				Args:      "-c:v libx264",
				ExtraArgs: "-af volume=2.000000dB",
				TimeRange: TimeRange{Start: "00:00:10", Duration: "00:00:05"},
				Progress:  true,
			},
			want: `ffmpeg -hide_banner -loglevel level+info -progress pipe:1 -nostats -ss 00:00:10 -t 00:00:05 -i "/in/my clip.mov" -c:v libx264 -af volume=2.000000dB -y "/out/my clip.mkv"`,
		},
		{
			name: "null output",
			config: ConvertConfig{
				Input:      "a.mp4",
				Args:       "-an -c:v libx264 -pass 1 -f rawvideo",
				NullOutput: true,
				LogLevel:   "level+warning",
			},
			want: "ffmpeg -hide_banner -loglevel level+warning -i a.mp4 -an -c:v libx264 -pass 1 -f rawvideo -y " + os.DevNull,
		},
		{
			name:    "missing input",
			config:  ConvertConfig{Output: "x.mkv"},
			wantErr: true,
		},
		{
			name:    "missing output",
			config:  ConvertConfig{Input: "x.avi"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := builder.BuildConvertCommand(tt.config)

			if tt.wantErr {
				if err == nil {
					t.Errorf("BuildConvertCommand() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildConvertCommand() unexpected error: %v", err)
			}
			if cmd != tt.want {
				t.Errorf("BuildConvertCommand() =\n%q\nwant\n%q", cmd, tt.want)
			}
		})
	}
}

func TestBuildVolumeDetectCommand(t *testing.T) {
	builder := NewCommandBuilder("ffmpeg")
	cmd, err := builder.BuildVolumeDetectCommand(VolumeDetectConfig{
		Input:     "song.flac",
		TimeRange: TimeRange{Start: "00:01:00"},
	})
	if err != nil {
		t.Fatalf("BuildVolumeDetectCommand() error: %v", err)
	}

	checks := []string{"-ss 00:01:00 -i song.flac", "-af volumedetect", "-f null " + os.DevNull, "-vn"}
	for _, check := range checks {
		if !strings.Contains(cmd, check) {
			t.Errorf("command %q missing %q", cmd, check)
		}
	}

	if _, err := builder.BuildVolumeDetectCommand(VolumeDetectConfig{}); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestQuoteArg(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain.mkv", "plain.mkv"},
		{"with space.mkv", `"with space.mkv"`},
		{`say "hi".mkv`, `"say \"hi\".mkv"`},
		{`C:\dir\f.mkv`, `"C:\\dir\\f.mkv"`},
		{"", `""`},
	}
	for _, tt := range tests {
		if got := QuoteArg(tt.in); got != tt.want {
			t.Errorf("QuoteArg(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[info] Stream mapping:", "info", "Stream mapping:"},
		{"[error] Conversion failed!", "error", "Conversion failed!"},
		{"[libx264 @ 0x55d] [warning] frame size", "warning", "[libx264 @ 0x55d] frame size"},
		{"plain line", "info", "plain line"},
		{"[Parsed_volumedetect_0 @ 0x1] max_volume: -3.0 dB", "info", "[Parsed_volumedetect_0 @ 0x1] max_volume: -3.0 dB"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}
