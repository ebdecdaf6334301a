package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode"

	"github.com/smazurov/ffpanel/internal/logging"
)

// ErrCancelled is returned when the context ends before the subprocess exits.
var ErrCancelled = errors.New("process cancelled")

var (
	errEmptyCommand  = errors.New("empty command")
	errUnclosedQuote = errors.New("unclosed quote in command")
)

// killedExitCode is what a shell reports for a child ended by SIGKILL.
const killedExitCode = 128 + int(syscall.SIGKILL)

const maxLineSize = 1 << 20

// OutputHandler receives every line the subprocess prints, tagged with
// "stdout" or "stderr".
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser maps a raw output line to a level name and the message to log.
type LogParser func(line string) (level, msg string)

// Process runs one command line to completion.
type Process struct {
	id      string
	command string
	logger  logging.Logger
	output  OutputHandler

	outLogger logging.Logger
	parse     LogParser

	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu   sync.RWMutex
	info Info
}

// NewProcess returns a process for command whose output is only logged.
func NewProcess(id, command string, logger logging.Logger) *Process {
	return NewProcessWithOutput(id, command, logger, nil)
}

// NewProcessWithOutput returns a process that feeds each output line to handler.
func NewProcessWithOutput(id, command string, logger logging.Logger, handler OutputHandler) *Process {
	return &Process{
		id:              id,
		command:         command,
		logger:          logger,
		output:          handler,
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
		info:            Info{ID: id, State: StateIdle},
	}
}

// SetLogParser routes output lines to logger at the level parser picks.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.outLogger = logger
	p.parse = parser
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

func (p *Process) transition(s State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.info.State = s
	if err != nil {
		p.info.LastError = err
	}
}

// Run starts the command and waits for it. A start failure returns exit
// code 1 and the error. When ctx ends first the process gets SIGINT, then
// SIGKILL for its whole group after the graceful timeout, and Run returns
// ErrCancelled with whatever code the process exited with.
func (p *Process) Run(ctx context.Context) (int, error) {
	p.transition(StateStarting, nil)
	cmd, exited, err := p.spawn()
	if err != nil {
		p.logger.Error("Failed to start process", "id", p.id, "error", err)
		p.transition(StateError, err)
		return 1, err
	}
	p.transition(StateRunning, nil)

	select {
	case err := <-exited:
		code := exitCode(err)
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.logger.Error("Process wait failed", "id", p.id, "error", err)
		}
		p.logger.Info("Process exited", "id", p.id, "exit_code", code)
		if code != 0 {
			p.transition(StateError, fmt.Errorf("exit code %d", code))
		} else {
			p.transition(StateIdle, nil)
		}
		return code, nil

	case <-ctx.Done():
		p.transition(StateStopping, nil)
		code := p.interrupt(cmd.Process, exited)
		p.transition(StateIdle, ErrCancelled)
		return code, ErrCancelled
	}
}

// spawn starts the command in its own process group. The returned channel
// yields the wait result once both output pipes are drained.
func (p *Process) spawn() (*exec.Cmd, <-chan error, error) {
	args, err := ParseCommand(p.command)
	if err != nil {
		return nil, nil, err
	}
	if len(args) == 0 {
		return nil, nil, errEmptyCommand
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	pid := cmd.Process.Pid
	p.mu.Lock()
	p.info.PID = pid
	p.info.StartedAt = time.Now()
	p.mu.Unlock()
	p.logger.Info("Process started", "id", p.id, "pid", pid, "command", p.command)

	var drained sync.WaitGroup
	drained.Add(2)
	go p.pump("stdout", stdout, &drained)
	go p.pump("stderr", stderr, &drained)

	exited := make(chan error, 1)
	go func() {
		drained.Wait()
		exited <- cmd.Wait()
	}()
	return cmd, exited, nil
}

// interrupt asks the process to stop and escalates to SIGKILL when it does
// not exit within the graceful timeout.
func (p *Process) interrupt(proc *os.Process, exited <-chan error) int {
	p.logger.Info("Interrupting process", "id", p.id, "pid", proc.Pid)
	if err := proc.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}

	grace := time.NewTimer(p.gracefulTimeout)
	defer grace.Stop()
	select {
	case err := <-exited:
		return exitCode(err)
	case <-grace.C:
	}

	p.logger.Warn("Process ignored SIGINT, killing", "id", p.id, "timeout", p.gracefulTimeout)
	if err := syscall.Kill(-proc.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Error("Failed to kill process group", "id", p.id, "error", err)
	}

	select {
	case <-exited:
	case <-time.After(p.killTimeout):
		p.logger.Error("Process did not exit after SIGKILL", "id", p.id)
	}
	return killedExitCode
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// pump hands each line from r to the output handler and then logs it.
// Bare key=value progress lines on stdout are not logged.
func (p *Process) pump(source string, r io.Reader, drained *sync.WaitGroup) {
	defer drained.Done()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if p.output != nil {
			p.output.HandleLine(source, line)
		}
		if source == "stdout" && strings.Contains(line, "=") && !strings.ContainsRune(line, ' ') {
			continue
		}
		p.logLine(line)
	}
	if err := sc.Err(); err != nil {
		p.logger.Warn("Error reading output", "id", p.id, "source", source, "error", err)
	}
}

func (p *Process) logLine(line string) {
	logger := p.outLogger
	if logger == nil {
		logger = p.logger
	}
	level, msg := "info", line
	if p.parse != nil {
		level, msg = p.parse(line)
	}

	switch level {
	case "panic", "fatal", "error":
		logger.Error(msg)
	case "warning":
		logger.Warn(msg)
	case "verbose", "debug", "trace":
		logger.Debug(msg)
	default:
		logger.Info(msg)
	}
}

// ParseCommand splits a command line into arguments. Single and double
// quotes group words and a backslash takes the next rune literally, inside
// quotes too. A quoted empty string yields an empty argument.
func ParseCommand(command string) ([]string, error) {
	var (
		args    []string
		word    strings.Builder
		started bool
		quote   rune
		escaped bool
	)
	for _, r := range command {
		switch {
		case escaped:
			word.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped, started = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, started = r, true
		case unicode.IsSpace(r):
			if started {
				args = append(args, word.String())
				word.Reset()
				started = false
			}
		default:
			word.WriteRune(r)
			started = true
		}
	}

	if quote != 0 {
		return nil, errUnclosedQuote
	}
	if escaped {
		word.WriteRune('\\')
	}
	if started {
		args = append(args, word.String())
	}
	return args, nil
}
