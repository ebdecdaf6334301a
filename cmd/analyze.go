package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var f panelFlags
	cmd := &cobra.Command{
		Use:   "analyze [flags] FILE...",
		Short: "Measure PEAK or RMS levels and show the gain per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("normalize") {
				if err := cmd.Flags().Set("normalize", "peak"); err != nil {
					return err
				}
			}
			c, err := a.newController(cmd, &f, args)
			if err != nil {
				return err
			}
			report, ran, err := a.analyze(cmd.Context(), c, f.timeRange())
			if err != nil {
				return err
			}
			if !ran {
				return fmt.Errorf("normalization %q does not use volume analysis", f.normalize)
			}

			rows := make([][]string, 0, len(report.Rows))
			for _, r := range c.Details() {
				rows = append(rows, []string{r.File, formatDB(r.Max), formatDB(r.Mean), formatDB(r.Offset), formatDB(r.Result)})
			}
			renderTable(os.Stdout, []string{"File", "Max volume", "Mean volume", "Offset", "Result"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight})
			if msg := report.Status.Message(); msg != "" {
				fmt.Println(msg)
			}
			printGains(c.Inputs(), report.Gains)
			return nil
		},
	}
	addPanelFlags(cmd.Flags(), &f)
	return cmd
}
