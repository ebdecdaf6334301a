package volume

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/process"
)

// ErrAnalysis is returned when a file cannot be measured.
var ErrAnalysis = errors.New("volume analysis failed")

// Measurement holds the volumedetect levels of one file in dBFS.
type Measurement struct {
	File       string  `json:"file"`
	MaxVolume  float64 `json:"max_volume"`
	MeanVolume float64 `json:"mean_volume"`
}

// Analyzer measures peak and mean volume for a list of files.
type Analyzer interface {
	Analyze(ctx context.Context, files []string, tr ffmpeg.TimeRange) ([]Measurement, error)
}

// FFmpegAnalyzer runs ffmpeg's volumedetect filter on each file in turn.
type FFmpegAnalyzer struct {
	builder ffmpeg.CommandBuilder
	logger  logging.Logger
}

// NewFFmpegAnalyzer creates an analyzer using the given ffmpeg binary.
func NewFFmpegAnalyzer(binary string) *FFmpegAnalyzer {
	return &FFmpegAnalyzer{
		builder: ffmpeg.NewCommandBuilder(binary),
		logger:  logging.GetLogger("volume"),
	}
}

// Analyze measures every file, stopping at the first failure.
func (a *FFmpegAnalyzer) Analyze(ctx context.Context, files []string, tr ffmpeg.TimeRange) ([]Measurement, error) {
	results := make([]Measurement, 0, len(files))
	for _, file := range files {
		m, err := a.analyzeFile(ctx, file, tr)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, nil
}

func (a *FFmpegAnalyzer) analyzeFile(ctx context.Context, file string, tr ffmpeg.TimeRange) (Measurement, error) {
	cmd, err := a.builder.BuildVolumeDetectCommand(ffmpeg.VolumeDetectConfig{Input: file, TimeRange: tr})
	if err != nil {
		return Measurement{}, fmt.Errorf("failed to build volumedetect command: %w", err)
	}

	detector := &Detector{}
	p := process.NewProcessWithOutput("volumedetect", cmd, a.logger, detector)
	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)

	code, err := p.Run(ctx)
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: %s: %w", ErrAnalysis, file, err)
	}
	if code != 0 {
		return Measurement{}, fmt.Errorf("%w: %s: %s", ErrAnalysis, file, detector.LastLine())
	}

	m, err := detector.Measurement(file)
	if err != nil {
		return Measurement{}, err
	}
	a.logger.Debug("Volume measured", "file", file, "max", m.MaxVolume, "mean", m.MeanVolume)
	return m, nil
}

// Detector collects max_volume and mean_volume from volumedetect output.
type Detector struct {
	mu      sync.Mutex
	max     *float64
	mean    *float64
	last    string
	lastErr error
}

// HandleLine implements process.OutputHandler.
func (d *Detector) HandleLine(source, line string) {
	if source != "stderr" {
		return
	}
	_, msg := ffmpeg.ParseLogLevel(line)

	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.TrimSpace(msg) != "" {
		d.last = msg
	}
	for _, key := range []string{"max_volume:", "mean_volume:"} {
		idx := strings.Index(msg, key)
		if idx < 0 {
			continue
		}
		fields := strings.Fields(msg[idx+len(key):])
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			d.lastErr = fmt.Errorf("failed to parse %s %q: %w", strings.TrimSuffix(key, ":"), fields[0], err)
			continue
		}
		if key == "max_volume:" {
			d.max = &v
		} else {
			d.mean = &v
		}
	}
}

// LastLine returns the last non-empty line seen, used as the failure message.
func (d *Detector) LastLine() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Measurement returns the collected levels for file.
func (d *Detector) Measurement(file string) (Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.max == nil || d.mean == nil {
		if d.lastErr != nil {
			return Measurement{}, fmt.Errorf("%w: %s: %w", ErrAnalysis, file, d.lastErr)
		}
		return Measurement{}, fmt.Errorf("%w: %s: no volume statistics in output", ErrAnalysis, file)
	}
	return Measurement{File: file, MaxVolume: *d.max, MeanVolume: *d.mean}, nil
}
