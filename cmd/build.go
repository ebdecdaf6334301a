package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpanel/internal/ffmpeg"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/panel"
	"github.com/smazurov/ffpanel/internal/volume"
)

// newController creates a controller with the command's panel flags applied.
func (a *app) newController(cmd *cobra.Command, f *panelFlags, inputs []string) (*panel.Controller, error) {
	c := panel.New(
		panel.WithPublisher(a.bus),
		panel.WithLogger(logging.GetLogger("panel")),
	)
	if err := f.apply(c, cmd.Flags(), inputs); err != nil {
		return nil, err
	}
	return c, nil
}

// analyze runs the volumedetect analysis when the normalization mode needs it.
func (a *app) analyze(ctx context.Context, c *panel.Controller, tr ffmpeg.TimeRange) (volume.Report, bool, error) {
	if !c.Enablement().AnalyzeEnabled {
		return volume.Report{}, false, nil
	}
	report, err := c.Analyze(ctx, volume.NewFFmpegAnalyzer(a.opts.FfmpegBinary), tr)
	if err != nil {
		return volume.Report{}, false, err
	}
	return report, true, nil
}

func newBuildCmd(a *app) *cobra.Command {
	var f panelFlags
	cmd := &cobra.Command{
		Use:   "build [flags] [FILE...]",
		Short: "Print the ffmpeg pass arguments for the selected options",
		Long: `Build applies the panel flags and prints the settings summary and the argument string of every pass. ` +
			`With PEAK or RMS normalization the files are analyzed first so their gains appear in the output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.newController(cmd, &f, args)
			if err != nil {
				return err
			}
			tr := f.timeRange()
			if _, _, err := a.analyze(cmd.Context(), c, tr); err != nil {
				return err
			}
			cmds, err := c.Commands()
			if err != nil {
				return err
			}

			printSummary(c, tr)
			rows := make([][]string, 0, len(cmds.Passes))
			for i, p := range cmds.Passes {
				rows = append(rows, []string{strconv.Itoa(i + 1), p})
			}
			fmt.Printf("Mode: %s  Extension: %s\n", cmds.Mode, displayExtension(cmds.Extension))
			renderTable(os.Stdout, []string{"Pass", "Arguments"}, rows, []columnAlignment{alignRight})

			if gains := c.Options().Gains(); len(gains) > 0 {
				printGains(c.Inputs(), gains)
			}
			return nil
		},
	}
	addPanelFlags(cmd.Flags(), &f)
	return cmd
}

func printSummary(c *panel.Controller, tr ffmpeg.TimeRange) {
	summary := c.Summary(tr)
	rows := make([][]string, 0, len(summary))
	for _, r := range summary {
		rows = append(rows, []string{r.Field, r.Value})
	}
	renderTable(os.Stdout, []string{"Setting", "Value"}, rows, nil)
}

func printGains(files, gains []string) {
	rows := make([][]string, 0, len(files))
	for i, file := range files {
		gain := "-"
		if i < len(gains) && gains[i] != ffmpeg.BlankGain {
			gain = gains[i]
		}
		rows = append(rows, []string{file, gain})
	}
	renderTable(os.Stdout, []string{"File", "Gain"}, rows, nil)
}

func displayExtension(ext string) string {
	if ext == "" {
		return "(source)"
	}
	return ext
}
