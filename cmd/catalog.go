package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpanel/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List selectable containers and audio codecs",
	}

	containers := &cobra.Command{
		Use:   "containers",
		Short: "List output containers",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			rows := make([][]string, 0, len(catalog.Containers))
			for i, c := range catalog.Containers {
				crf := "-"
				if c.Family != catalog.FamilyOther && !c.IsCopy() {
					maxCRF, def := c.CRFRange()
					crf = fmt.Sprintf("%d (0-%d)", def, maxCRF)
				}
				ext := c.Extension
				if ext == "" {
					ext = "(source)"
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), c.Label, c.VideoCodec, ext, c.Family.String(), crf})
			}
			renderTable(os.Stdout, []string{"#", "Label", "Video codec", "Extension", "Family", "CRF"}, rows,
				[]columnAlignment{alignRight})
		},
	}

	var containerLabel string
	audio := &cobra.Command{
		Use:   "audio",
		Short: "List audio codecs, optionally those a container accepts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			allowed := func(catalog.AudioCodec) bool { return true }
			if containerLabel != "" {
				ct, ok := catalog.ContainerByLabel(containerLabel)
				if !ok {
					return fmt.Errorf("unknown container %q", containerLabel)
				}
				allowed = func(a catalog.AudioCodec) bool { return catalog.IsAudioAllowed(ct, a) }
			}
			var rows [][]string
			for _, a := range catalog.AudioFormats {
				if !allowed(a.Key) {
					continue
				}
				rows = append(rows, []string{string(a.Key), a.Label, a.Flag})
			}
			renderTable(os.Stdout, []string{"Key", "Label", "Flag"}, rows, nil)
			return nil
		},
	}
	audio.Flags().StringVar(&containerLabel, "container", "", "Only codecs this container accepts")

	cmd.AddCommand(containers, audio)
	return cmd
}
