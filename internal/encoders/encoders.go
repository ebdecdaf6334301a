// Package encoders reports which encoders the installed ffmpeg provides and
// which catalog choices they make usable.
package encoders

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/smazurov/ffpanel/internal/catalog"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/process"
)

// ErrFFmpegMissing is returned when the ffmpeg binary cannot be found.
var ErrFFmpegMissing = errors.New("ffmpeg is not installed or not in PATH")

// EncoderType represents the type of encoder (video, audio, subtitle)
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder represents an FFmpeg encoder
type Encoder struct {
	Type        EncoderType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	HWAccel     bool        `json:"hwaccel"`
}

// EncoderList holds the encoders reported by ffmpeg, keyed by name.
type EncoderList struct {
	Encoders []Encoder
	byName   map[string]Encoder
}

// Has reports whether ffmpeg provides the named encoder.
func (l EncoderList) Has(name string) bool {
	_, ok := l.byName[name]
	return ok
}

// Filter returns the encoders of type t whose name or description
// contains search. An empty t or search matches everything.
func (l EncoderList) Filter(t EncoderType, search string) []Encoder {
	search = strings.ToLower(search)
	var out []Encoder
	for _, e := range l.Encoders {
		if t != "" && e.Type != t {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Name), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

var (
	encoderRegex = regexp.MustCompile(`^\s*([VASF\.]{6})\s+(\S+)\s+(.+)$`)
	hwaccelRegex = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|vdpau|cuda|dxva2|d3d11va|opencl|vulkan|v4l2m2m|rkmpp)`)
)

// Parse processes the output of ffmpeg -encoders.
func Parse(output string) (EncoderList, error) {
	list := EncoderList{byName: make(map[string]Encoder)}
	scanner := bufio.NewScanner(strings.NewReader(output))

	// Skip the legend until the line after "------"
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				started = true
			}
			continue
		}
		m := encoderRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		e := Encoder{Type: Unknown, Name: m[2], Description: strings.TrimSpace(m[3])}
		switch m[1][0] {
		case 'V':
			e.Type = VideoEncoder
		case 'A':
			e.Type = AudioEncoder
		case 'S':
			e.Type = SubtitleEncoder
		}
		e.HWAccel = hwaccelRegex.MatchString(e.Name) || hwaccelRegex.MatchString(e.Description)

		list.Encoders = append(list.Encoders, e)
		list.byName[e.Name] = e
	}
	if err := scanner.Err(); err != nil {
		return EncoderList{}, fmt.Errorf("error reading encoder list: %w", err)
	}
	if !started {
		return EncoderList{}, fmt.Errorf("unexpected ffmpeg -encoders output")
	}
	return list, nil
}

// List runs ffmpeg -encoders and parses the result.
func List(ctx context.Context, binary string) (EncoderList, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return EncoderList{}, fmt.Errorf("%w: %s", ErrFFmpegMissing, binary)
	}
	cmd, err := ffmpeg.NewCommandBuilder(binary).BuildEncodersListCommand()
	if err != nil {
		return EncoderList{}, fmt.Errorf("failed to build encoders command: %w", err)
	}

	logger := logging.GetLogger("ffmpeg")
	out := &collector{}
	p := process.NewProcessWithOutput("encoders", cmd, logger, out)
	p.SetLogParser(logger, func(line string) (string, string) { return "debug", line })
	code, err := p.Run(ctx)
	if err != nil {
		return EncoderList{}, err
	}
	if code != 0 {
		return EncoderList{}, fmt.Errorf("ffmpeg -encoders exited with code %d", code)
	}
	return Parse(out.String())
}

// collector gathers stdout lines.
type collector struct {
	mu sync.Mutex
	sb strings.Builder
}

func (c *collector) HandleLine(source, line string) {
	if source != "stdout" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sb.WriteString(line)
	c.sb.WriteByte('\n')
}

func (c *collector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sb.String()
}

// Support tells whether a catalog choice can be encoded.
type Support struct {
	Kind      string `json:"kind"` // "container" or "audio"
	Label     string `json:"label"`
	Encoder   string `json:"encoder"`
	Available bool   `json:"available"`
}

// Check maps every container and audio choice to its encoder. Choices that
// need no encoder (stream copy, silent, ffmpeg default) are always available.
func Check(list EncoderList) []Support {
	var out []Support
	for _, c := range catalog.Containers {
		name := EncoderName(c.VideoCodec)
		out = append(out, Support{Kind: "container", Label: c.Label, Encoder: name, Available: name == "" || list.Has(name)})
	}
	for _, a := range catalog.AudioFormats {
		name := EncoderName(a.Flag)
		out = append(out, Support{Kind: "audio", Label: a.Label, Encoder: name, Available: name == "" || list.Has(name)})
	}
	return out
}

// EncoderName extracts the encoder from a codec flag such as "-c:v libx264".
// It returns "" for copy, for -an and for an empty flag.
func EncoderName(flag string) string {
	fields := strings.Fields(flag)
	for i := 0; i+1 < len(fields); i++ {
		if strings.HasPrefix(fields[i], "-c:") || fields[i] == "-codec" {
			if fields[i+1] == "copy" {
				return ""
			}
			return fields[i+1]
		}
	}
	return ""
}
