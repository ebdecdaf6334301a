package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/metrics"
	"github.com/smazurov/ffpanel/internal/process"
)

// ErrPassFailed is returned for a pass that exits with a non-zero code.
var ErrPassFailed = errors.New("ffmpeg pass failed")

// Dispatcher runs jobs file by file, pass by pass.
type Dispatcher struct {
	builder     ffmpeg.CommandBuilder
	runner      Runner
	publisher   events.Publisher
	logger      logging.Logger
	logDir      string
	logLevel    string
	metricsFile string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(d *Dispatcher) { d.runner = r }
}

// WithPublisher publishes job events.
func WithPublisher(p events.Publisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithLogDir writes each job log into dir.
func WithLogDir(dir string) Option {
	return func(d *Dispatcher) { d.logDir = dir }
}

// WithLogLevel sets the ffmpeg -loglevel value.
func WithLogLevel(level string) Option {
	return func(d *Dispatcher) { d.logLevel = level }
}

// WithMetricsTextfile exports metrics to path after every job.
func WithMetricsTextfile(path string) Option {
	return func(d *Dispatcher) { d.metricsFile = path }
}

// New creates a dispatcher for the given ffmpeg binary.
func New(binary string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		builder: ffmpeg.NewCommandBuilder(binary),
		logger:  logging.GetLogger("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner == nil {
		d.runner = NewProcessRunner(d.logger)
	}
	return d
}

// Run converts every file of the job in order. A failing pass aborts its
// file; the batch continues unless StopOnError is set. Cancelling ctx stops
// the running pass and skips the remaining files.
func (d *Dispatcher) Run(ctx context.Context, job Job) (Result, error) {
	if err := job.Validate(); err != nil {
		return Result{}, err
	}

	outputLogger, closeLog, err := d.openJobLog(job)
	if err != nil {
		return Result{}, err
	}
	defer closeLog()

	logger := d.logger
	if l, ok := logger.(*slog.Logger); ok {
		logger = l.With("job_id", job.ID)
	}

	started := time.Now()
	result := Result{JobID: job.ID}
	logger.Info("Job started", "mode", string(job.Mode), "files", job.Plan.Count, "passes", job.PassCount())
	outputLogger.Info("Job started", "job_id", job.ID, "mode", string(job.Mode), "passes", strings.Join(job.Passes, " | "))
	d.publish(events.JobStartedEvent{
		JobID:     job.ID,
		Mode:      string(job.Mode),
		Files:     job.Plan.Count,
		Timestamp: started,
	})

	for i := range job.Plan.Count {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		fr := d.runFile(ctx, job, i, outputLogger)
		result.Files = append(result.Files, fr)

		res := metrics.ResultCompleted
		switch {
		case errors.Is(fr.Err, process.ErrCancelled):
			res = metrics.ResultCancelled
			result.Cancelled = true
		case fr.Err != nil:
			res = metrics.ResultFailed
			result.Failed++
			logger.Warn("File failed", "file", fr.Source, "exit_code", fr.ExitCode, "error", fr.Err)
		default:
			result.Completed++
			logger.Info("File finished", "file", fr.Source, "output", fr.Output, "duration", fr.Duration)
		}
		metrics.RecordFile(string(job.Mode), res, fr.Duration)

		errText := ""
		if fr.Err != nil {
			errText = fr.Err.Error()
		}
		d.publish(events.FileFinishedEvent{
			JobID:     job.ID,
			File:      fr.Source,
			Output:    fr.Output,
			ExitCode:  fr.ExitCode,
			Error:     errText,
			Timestamp: time.Now(),
		})

		if result.Cancelled || (fr.Err != nil && job.StopOnError) {
			break
		}
	}

	metrics.DeleteEncodeMetrics(job.ID)
	result.Duration = time.Since(started)
	logger.Info("Job finished", "completed", result.Completed, "failed", result.Failed,
		"cancelled", result.Cancelled, "duration", result.Duration)
	outputLogger.Info("Job finished", "job_id", job.ID, "completed", result.Completed, "failed", result.Failed)
	d.publish(events.JobFinishedEvent{
		JobID:     job.ID,
		Completed: result.Completed,
		Failed:    result.Failed,
		Cancelled: result.Cancelled,
		Duration:  result.Duration,
		Timestamp: time.Now(),
	})
	d.writeMetrics(logger)

	switch {
	case result.Cancelled:
		return result, process.ErrCancelled
	case result.Failed > 0:
		return result, fmt.Errorf("%w: %d of %d", ErrFilesFailed, result.Failed, job.Plan.Count)
	}
	return result, nil
}

// runFile runs every pass for the i-th source.
func (d *Dispatcher) runFile(ctx context.Context, job Job, i int, outputLogger logging.Logger) (fr FileResult) {
	src, out := job.Plan.Sources[i], job.Plan.Outputs[i]
	fr = FileResult{Source: src, Output: out}
	started := time.Now()
	defer func() { fr.Duration = time.Since(started) }()

	var loudness *ffmpeg.LoudnessCollector
	extra := ""

	for pass, args := range job.Passes {
		last := pass == len(job.Passes)-1
		cfg := ffmpeg.ConvertConfig{
			Input:      src,
			Output:     out,
			Args:       args,
			TimeRange:  job.TimeRange,
			LogLevel:   d.logLevel,
			NullOutput: !last,
			Progress:   true,
		}

		hs := handlers{d.progressHandler(job, i, pass)}
		lastLine := &tail{}
		hs = append(hs, lastLine)

		switch {
		case job.Mode == ffmpeg.ModeTwoPassEBU && !last:
			loudness = ffmpeg.NewLoudnessCollector()
			hs = append(hs, loudness)
		case job.Mode == ffmpeg.ModeTwoPassEBU:
			cfg.ExtraArgs = extra
		case last:
			cfg.ExtraArgs = job.gain(i)
		}

		cmd, err := d.builder.BuildConvertCommand(cfg)
		if err != nil {
			fr.ExitCode, fr.Err = 1, fmt.Errorf("failed to build pass %d: %w", pass+1, err)
			return fr
		}
		outputLogger.Info("Running pass", "file", src, "pass", pass+1, "command", cmd)

		code, err := d.runner.Run(ctx, fmt.Sprintf("%s-%d-%d", job.ID, i, pass+1), cmd, hs, outputLogger)
		metrics.RecordPass(string(job.Mode))
		fr.ExitCode = code
		if err != nil {
			fr.Err = err
			return fr
		}
		if code != 0 {
			fr.Err = fmt.Errorf("%w: pass %d exited with code %d: %s", ErrPassFailed, pass+1, code, lastLine)
			return fr
		}

		if loudness != nil && !last {
			m, err := loudness.Result()
			if err != nil {
				fr.ExitCode, fr.Err = 1, fmt.Errorf("%w: pass 1: %w", ErrPassFailed, err)
				return fr
			}
			extra = "-af " + job.Loudness.SecondPassFilter(m)
			outputLogger.Info("Loudness measured", "file", src,
				"input_i", m.InputI, "input_tp", m.InputTP, "input_lra", m.InputLRA,
				"input_thresh", m.InputThresh, "target_offset", m.TargetOffset)
		}
	}
	return fr
}

func (d *Dispatcher) progressHandler(job Job, i, pass int) *ffmpeg.ProgressTracker {
	return ffmpeg.NewProgressTracker(func(p ffmpeg.Progress) {
		metrics.SetEncodeProgress(job.ID, p.Frame, parseSpeed(p.Speed), p.OutTime)
		d.publish(events.JobProgressEvent{
			JobID:     job.ID,
			File:      job.Plan.Sources[i],
			Index:     i + 1,
			Count:     job.Plan.Count,
			Pass:      pass + 1,
			Passes:    job.PassCount(),
			OutTime:   p.OutTime,
			Frame:     p.Frame,
			Speed:     p.Speed,
			Timestamp: time.Now(),
		})
	})
}

// openJobLog returns the logger receiving ffmpeg output. With a log
// directory it writes to the job file as well as the ffmpeg module logger.
func (d *Dispatcher) openJobLog(job Job) (logging.Logger, func(), error) {
	ffmpegLogger := logging.GetLogger("ffmpeg")
	if d.logDir == "" || job.LogName == "" {
		return ffmpegLogger, func() {}, nil
	}

	fileLogger, closer, err := logging.NewFileLogger(filepath.Join(d.logDir, job.LogName), "ffmpeg")
	if err != nil {
		return nil, nil, err
	}
	combined := slog.New(logging.NewMultiHandler(fileLogger.Handler(), ffmpegLogger.Handler()))
	return combined, func() { closeQuietly(d.logger, closer) }, nil
}

func (d *Dispatcher) writeMetrics(logger logging.Logger) {
	if d.metricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(d.metricsFile); err != nil {
		logger.Warn("Failed to export metrics", "path", d.metricsFile, "error", err)
	}
}

func (d *Dispatcher) publish(ev events.Event) {
	if d.publisher != nil {
		d.publisher.Publish(ev)
	}
}

func closeQuietly(logger logging.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close job log", "error", err)
	}
}

// parseSpeed converts ffmpeg's "1.25x" to 1.25; unknown values are 0.
func parseSpeed(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "x"), 64)
	if err != nil {
		return 0
	}
	return v
}
