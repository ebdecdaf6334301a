package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpanel/internal/dispatch"
	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
)

type runFlags struct {
	dest        string
	overwrite   bool
	stopOnError bool
	quiet       bool
}

func addRunFlags(cmd *cobra.Command, r *runFlags) {
	cmd.Flags().StringVarP(&r.dest, "dest", "d", "", "Output directory (default: next to each source)")
	cmd.Flags().BoolVar(&r.overwrite, "overwrite", false, "Replace existing output files")
	cmd.Flags().BoolVar(&r.stopOnError, "stop-on-error", false, "Stop the batch at the first failed file")
	cmd.Flags().BoolVarP(&r.quiet, "quiet", "q", false, "Do not print progress")
}

func newRunCmd(a *app) *cobra.Command {
	var f panelFlags
	var r runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] FILE...",
		Short: "Convert files with the selected options",
		Long: `Run applies the panel flags, analyzes volume when PEAK or RMS normalization is selected, ` +
			`then converts every file pass by pass. Interrupting stops the running ffmpeg and skips the rest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := a.newController(cmd, &f, args)
			if err != nil {
				return err
			}
			tr := f.timeRange()
			if _, _, err := a.analyze(ctx, c, tr); err != nil {
				return err
			}
			cmds, err := c.Commands()
			if err != nil {
				return err
			}
			if !r.quiet {
				printSummary(c, tr)
			}

			opts := c.Options()
			job, err := a.newJob(cmds, args, r)
			if err != nil {
				return err
			}
			job.Gains = opts.Gains()
			job.Loudness = opts.EBU
			job.TimeRange = tr
			return a.runJob(ctx, job, r.quiet)
		},
	}
	addPanelFlags(cmd.Flags(), &f)
	addRunFlags(cmd, &r)
	return cmd
}

func (a *app) newJob(cmds ffmpeg.Commands, files []string, r runFlags) (dispatch.Job, error) {
	plan, err := dispatch.Inspect(files, r.dest, cmds.Extension, r.overwrite)
	if err != nil {
		return dispatch.Job{}, err
	}
	job := dispatch.NewJob(cmds, plan)
	job.StopOnError = r.stopOnError
	return job, nil
}

// runJob dispatches job and prints its progress and outcome.
func (a *app) runJob(ctx context.Context, job dispatch.Job, quiet bool) error {
	d := dispatch.New(a.opts.FfmpegBinary,
		dispatch.WithPublisher(a.bus),
		dispatch.WithLogger(logging.GetLogger("dispatch")),
		dispatch.WithLogDir(a.opts.LogDir),
		dispatch.WithLogLevel(a.opts.FfmpegLoglevel),
		dispatch.WithMetricsTextfile(a.opts.MetricsTextfile),
	)

	if !quiet {
		p := newProgressPrinter(os.Stderr)
		defer p.subscribe(a.bus)()
	}

	result, err := d.Run(ctx, job)
	printResult(os.Stdout, result)
	if errors.Is(err, dispatch.ErrFilesFailed) && len(result.Files) > 0 {
		a.logger.Warn("Conversion finished with failures", "job_id", job.ID,
			"failed", result.Failed, "log", a.opts.LogDir)
	}
	return err
}

func printResult(w io.Writer, result dispatch.Result) {
	if len(result.Files) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Files))
	for _, fr := range result.Files {
		status := "done"
		if fr.Err != nil {
			status = fr.Err.Error()
		}
		rows = append(rows, []string{fr.Source, fr.Output, strconv.Itoa(fr.ExitCode), fr.Duration.Round(10*time.Millisecond).String(), status})
	}
	renderTable(w, []string{"Source", "Output", "Exit", "Time", "Status"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight})
	fmt.Fprintf(w, "%d completed, %d failed", result.Completed, result.Failed)
	if result.Cancelled {
		fmt.Fprint(w, ", cancelled")
	}
	fmt.Fprintln(w)
}

// progressPrinter writes job events as they arrive. On a terminal the
// progress line is rewritten in place.
type progressPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	terminal bool
	dirty    bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, terminal: isTerminal(w)}
}

func (p *progressPrinter) subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.JobStartedEvent) {
			p.line(fmt.Sprintf("Job %s: %d file(s), %s", e.JobID, e.Files, e.Mode))
		}),
		bus.Subscribe(func(e events.JobProgressEvent) {
			msg := fmt.Sprintf("[%d/%d] pass %d/%d %s frame=%d time=%s speed=%s",
				e.Index, e.Count, e.Pass, e.Passes, e.File, e.Frame, e.OutTime.Round(time.Second), e.Speed)
			p.progress(msg)
		}),
		bus.Subscribe(func(e events.FileFinishedEvent) {
			if e.Error != "" {
				p.line(fmt.Sprintf("Failed %s: %s", e.File, e.Error))
				return
			}
			p.line("Done " + e.Output)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (p *progressPrinter) progress(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.terminal {
		return
	}
	fmt.Fprintf(p.w, "\r\033[K%s", msg)
	p.dirty = true
}

func (p *progressPrinter) line(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprint(p.w, "\r\033[K")
		p.dirty = false
	}
	fmt.Fprintln(p.w, msg)
}
