package dispatch

import (
	"context"
	"strings"
	"sync"

	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/process"
)

// Runner executes one ffmpeg command line to completion.
// output receives every stdout/stderr line; outputLogger records them.
type Runner interface {
	Run(ctx context.Context, id, command string, output process.OutputHandler, outputLogger logging.Logger) (int, error)
}

// ProcessRunner runs commands as subprocesses.
type ProcessRunner struct {
	logger logging.Logger
}

// NewProcessRunner creates a runner logging process lifecycle to logger.
func NewProcessRunner(logger logging.Logger) *ProcessRunner {
	return &ProcessRunner{logger: logger}
}

// Run implements Runner.
func (r *ProcessRunner) Run(ctx context.Context, id, command string, output process.OutputHandler, outputLogger logging.Logger) (int, error) {
	p := process.NewProcessWithOutput(id, command, r.logger, output)
	p.SetLogParser(outputLogger, ffmpeg.ParseLogLevel)
	return p.Run(ctx)
}

// handlers fans output lines out to several handlers.
type handlers []process.OutputHandler

func (hs handlers) HandleLine(source, line string) {
	for _, h := range hs {
		h.HandleLine(source, line)
	}
}

// tail keeps the last non-empty stderr line for error reports.
type tail struct {
	mu   sync.Mutex
	last string
}

func (t *tail) HandleLine(source, line string) {
	if source != "stderr" {
		return
	}
	if line = strings.TrimSpace(line); line == "" {
		return
	}
	_, msg := ffmpeg.ParseLogLevel(line)
	t.mu.Lock()
	t.last = msg
	t.mu.Unlock()
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
