package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/presets"
)

func newPresetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage saved presets and their profiles",
	}
	cmd.AddCommand(
		newPresetsListCmd(a),
		newPresetsShowCmd(a),
		newPresetsAddCmd(a),
		newPresetsEditCmd(a),
		newPresetsDeleteCmd(a),
		newPresetsRestoreCmd(a),
		newPresetsRestoreAllCmd(a),
		newPresetsExportCmd(a),
		newPresetsImportCmd(a),
		newPresetsRunCmd(a),
		newPresetsWatchCmd(a),
	)
	return cmd
}

func newPresetsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presets",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			list, err := s.List()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(list))
			for _, p := range list {
				rows = append(rows, []string{p.Name, strconv.Itoa(len(p.Profiles)), p.Description})
			}
			renderTable(os.Stdout, []string{"Preset", "Profiles", "Description"}, rows,
				[]columnAlignment{alignLeft, alignRight})
			return nil
		},
	}
}

func newPresetsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show PRESET [PROFILE]",
		Short: "Show the profiles of a preset, or one profile in full",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				p, err := s.Select(args[0], args[1])
				if err != nil {
					return err
				}
				renderTable(os.Stdout, []string{"Field", "Value"}, [][]string{
					{"Name", p.Name},
					{"Description", p.Description},
					{"Command", p.Command},
					{"Extension", p.Extension},
					{"Supported formats", strings.Join(p.SupportedFormats, " ")},
					{"Double pass", strconv.FormatBool(p.IsDoublePass())},
				}, nil)
				return nil
			}
			profiles, err := s.Profiles(args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, []string{p.Name, p.Description, p.Extension, strings.Join(p.SupportedFormats, " ")})
			}
			renderTable(os.Stdout, []string{"Profile", "Description", "Extension", "Supported"}, rows, nil)
			return nil
		},
	}
}

type profileFlags struct {
	name        string
	description string
	command     string
	extension   string
	supported   []string
}

func addProfileFlags(cmd *cobra.Command, f *profileFlags) {
	cmd.Flags().StringVar(&f.description, "description", "", "Profile description")
	cmd.Flags().StringVar(&f.command, "command", "", "FFmpeg arguments; separate two passes with "+presets.DoublePassToken)
	cmd.Flags().StringVar(&f.extension, "extension", "", "Output extension")
	cmd.Flags().StringSliceVar(&f.supported, "supported", nil, "Accepted input extensions (default: all)")
}

func newPresetsAddCmd(a *app) *cobra.Command {
	var pf profileFlags
	var f panelFlags
	cmd := &cobra.Command{
		Use:   "add PRESET NAME",
		Short: "Add a profile from --command or from the panel flags",
		Long: `Add stores a new profile in PRESET. With --command the arguments are stored as given. ` +
			`Otherwise the panel flags are applied and the resulting pass commands are saved.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			preset, name := args[0], args[1]
			if pf.command != "" {
				p := presets.Profile{
					Name:             name,
					Description:      pf.description,
					Command:          pf.command,
					Extension:        pf.extension,
					SupportedFormats: pf.supported,
				}
				if err := s.Add(preset, p); err != nil {
					return err
				}
				fmt.Printf("Added %s/%s\n", preset, name)
				return nil
			}

			c, err := a.newController(cmd, &f, nil)
			if err != nil {
				return err
			}
			c.Finalize()
			p, err := s.SaveFromOptions(preset, name, pf.description, c.Options())
			if err != nil {
				return err
			}
			fmt.Printf("Added %s/%s: %s\n", preset, p.Name, p.Command)
			return nil
		},
	}
	addProfileFlags(cmd, &pf)
	addPanelFlags(cmd.Flags(), &f)
	return cmd
}

func newPresetsEditCmd(a *app) *cobra.Command {
	var pf profileFlags
	cmd := &cobra.Command{
		Use:   "edit PRESET NAME",
		Short: "Change fields of a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			p, err := s.Select(args[0], args[1])
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("name") {
				p.Name = pf.name
			}
			if fs.Changed("description") {
				p.Description = pf.description
			}
			if fs.Changed("command") {
				p.Command = pf.command
			}
			if fs.Changed("extension") {
				p.Extension = pf.extension
			}
			if fs.Changed("supported") {
				p.SupportedFormats = pf.supported
			}
			if err := s.Edit(args[0], args[1], p); err != nil {
				return err
			}
			fmt.Printf("Updated %s/%s\n", args[0], p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&pf.name, "name", "", "New profile name")
	addProfileFlags(cmd, &pf)
	return cmd
}

func newPresetsDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete PRESET NAME",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, fmt.Sprintf("Delete profile %s/%s?", args[0], args[1])); err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			return s.Delete(args[0], args[1])
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newPresetsRestoreCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore PRESET",
		Short: "Replace a preset with its shipped version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, fmt.Sprintf("Restore %s? Its custom profiles will be lost.", args[0])); err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			return s.RestoreDefault(args[0])
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newPresetsRestoreAllCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore-all",
		Short: "Replace every shipped preset with its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := confirm(cmd, yes, "Restore all presets? Custom profiles will be lost."); err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			return s.RestoreAll()
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newPresetsExportCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export PRESET",
		Short: "Copy a preset file into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			path, err := s.Export(args[0], dir)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Destination directory")
	return cmd
}

func newPresetsImportCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Replace a preset with a previously exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := confirm(cmd, yes, fmt.Sprintf("Import %s over the installed preset?", args[0])); err != nil {
				return err
			}
			s, err := a.store()
			if err != nil {
				return err
			}
			p, err := s.Import(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %s (%d profiles)\n", p.Name, len(p.Profiles))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newPresetsRunCmd(a *app) *cobra.Command {
	var r runFlags
	cmd := &cobra.Command{
		Use:   "run PRESET PROFILE FILE...",
		Short: "Convert files with a saved profile",
		Long: `Run converts the files whose extension the profile supports. ` +
			`Profiles holding ` + presets.DoublePassToken + ` run as two passes.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.store()
			if err != nil {
				return err
			}
			p, err := s.Select(args[0], args[1])
			if err != nil {
				return err
			}
			files := presets.FilterSupported(p, args[2:])
			if skipped := len(args[2:]) - len(files); skipped > 0 {
				a.logger.Warn("Skipping unsupported files", "profile", p.Name,
					"skipped", skipped, "supported", strings.Join(p.SupportedFormats, ","))
			}
			if len(files) == 0 {
				return fmt.Errorf("no file matches the formats supported by %s", p.Name)
			}

			cmds, err := presets.RunCommands(p, a.opts.FfmpegThreads)
			if err != nil {
				return err
			}
			job, err := a.newJob(cmds, files, r)
			if err != nil {
				return err
			}
			job.LogName = presets.LogName
			return a.runJob(ctx, job, r.quiet)
		},
	}
	addRunFlags(cmd, &r)
	return cmd
}

func newPresetsWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report preset file changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.store()
			if err != nil {
				return err
			}
			unsub := a.bus.Subscribe(func(e events.PresetsReloadedEvent) {
				fmt.Printf("%s: %d presets in %s\n", e.Timestamp.Format("15:04:05"), e.Presets, e.Dir)
			})
			defer unsub()

			w, err := s.Watch(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			fmt.Printf("Watching %s\n", s.Dir())
			<-ctx.Done()
			return nil
		},
	}
}

// confirm asks on a terminal unless yes is set; elsewhere yes is required.
func confirm(cmd *cobra.Command, yes bool, question string) error {
	if yes {
		return nil
	}
	if !isTerminal(os.Stdin) {
		return fmt.Errorf("confirmation required: rerun %s with --yes", cmd.CommandPath())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return fmt.Errorf("aborted")
}
