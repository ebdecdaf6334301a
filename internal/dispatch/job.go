package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/ffpanel/internal/ffmpeg"
)

// LogName is the job log written for conversions built from the panel.
const LogName = "Videomass_VideoConversion.log"

// Job errors
var (
	ErrInvalidJob  = errors.New("invalid job")
	ErrFilesFailed = errors.New("some files failed")
)

// Job is a batch of files converted with the same pass commands.
type Job struct {
	ID        string
	Mode      ffmpeg.Mode
	Passes    []string
	Extension string
	Plan      Plan
	// Gains holds one volume filter per source; blank entries add nothing.
	Gains []string
	// Loudness holds the EBU targets used to render the measured second pass.
	Loudness    ffmpeg.LoudnessParams
	TimeRange   ffmpeg.TimeRange
	LogName     string
	StopOnError bool
}

// NewJob creates a job for built commands and an inspected plan.
func NewJob(cmds ffmpeg.Commands, plan Plan) Job {
	return Job{
		ID:        uuid.NewString(),
		Mode:      cmds.Mode,
		Passes:    cmds.Passes,
		Extension: cmds.Extension,
		Plan:      plan,
		Loudness:  ffmpeg.DefaultLoudness(),
		LogName:   LogName,
	}
}

// Validate checks the job is consistent before anything runs.
func (j Job) Validate() error {
	if j.Plan.Count == 0 || len(j.Plan.Sources) != j.Plan.Count || len(j.Plan.Outputs) != j.Plan.Count {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrNoInputs)
	}
	want := 1
	if j.Mode == ffmpeg.ModeTwoPass || j.Mode == ffmpeg.ModeTwoPassEBU {
		want = 2
	}
	if len(j.Passes) != want {
		return fmt.Errorf("%w: mode %s needs %d passes, got %d", ErrInvalidJob, j.Mode, want, len(j.Passes))
	}
	if len(j.Gains) > 0 && len(j.Gains) != j.Plan.Count {
		return fmt.Errorf("%w: %d gains for %d files", ErrInvalidJob, len(j.Gains), j.Plan.Count)
	}
	return nil
}

// PassCount returns the number of passes run per file.
func (j Job) PassCount() int {
	return len(j.Passes)
}

func (j Job) gain(i int) string {
	if i < 0 || i >= len(j.Gains) {
		return ""
	}
	return strings.TrimSpace(j.Gains[i])
}

// FileResult is the outcome of one source.
type FileResult struct {
	Source   string
	Output   string
	ExitCode int
	Err      error
	Duration time.Duration
}

// Result summarises a finished job.
type Result struct {
	JobID     string
	Files     []FileResult
	Completed int
	Failed    int
	Cancelled bool
	Duration  time.Duration
}
