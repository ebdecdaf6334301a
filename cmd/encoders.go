package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpanel/internal/encoders"
	"github.com/smazurov/ffpanel/internal/version"
)

func newEncodersCmd(a *app) *cobra.Command {
	var typ, search string
	var check bool
	cmd := &cobra.Command{
		Use:   "encoders",
		Short: "List ffmpeg encoders or check which catalog choices are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := encoders.List(cmd.Context(), a.opts.FfmpegBinary)
			if err != nil {
				return err
			}

			if check {
				var rows [][]string
				missing := 0
				for _, s := range encoders.Check(list) {
					status := "ok"
					if !s.Available {
						status = "missing"
						missing++
					}
					enc := s.Encoder
					if enc == "" {
						enc = "-"
					}
					rows = append(rows, []string{s.Kind, s.Label, enc, status})
				}
				renderTable(os.Stdout, []string{"Kind", "Choice", "Encoder", "Status"}, rows, nil)
				if missing > 0 {
					fmt.Printf("%d choice(s) need an encoder this ffmpeg lacks\n", missing)
				}
				return nil
			}

			var rows [][]string
			for _, e := range list.Filter(encoders.EncoderType(typ), search) {
				hw := ""
				if e.HWAccel {
					hw = "hw"
				}
				rows = append(rows, []string{string(e.Type), e.Name, hw, e.Description})
			}
			renderTable(os.Stdout, []string{"Type", "Name", "Accel", "Description"}, rows, nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Only this encoder type: V, A or S")
	cmd.Flags().StringVar(&search, "search", "", "Only encoders whose name or description contains this")
	cmd.Flags().BoolVar(&check, "check", false, "Report which containers and audio codecs can be encoded")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			info := version.Get()
			if !verbose {
				fmt.Println(info.String())
				return
			}
			renderTable(os.Stdout, []string{"Field", "Value"}, [][]string{
				{"Version", info.Version},
				{"Commit", info.GitCommit},
				{"Build date", info.BuildDate},
				{"Modified", fmt.Sprint(info.Modified)},
				{"Go", info.GoVersion},
				{"Platform", info.Platform},
			}, nil)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every build field")
	return cmd
}
