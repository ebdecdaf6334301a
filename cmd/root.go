package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpanel/internal/config"
	"github.com/smazurov/ffpanel/internal/events"
	"github.com/smazurov/ffpanel/internal/logging"
	"github.com/smazurov/ffpanel/internal/presets"
	"github.com/smazurov/ffpanel/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string

	// FFmpeg settings
	FfmpegBinary   string `toml:"ffmpeg.binary" env:"FFMPEG_BINARY"`
	FfmpegLoglevel string `toml:"ffmpeg.loglevel" env:"FFMPEG_LOGLEVEL"`
	FfmpegThreads  string `toml:"ffmpeg.threads" env:"FFMPEG_THREADS"`

	// Storage settings
	PresetsDir      string `toml:"presets.dir" env:"PRESETS_DIR"`
	LogDir          string `toml:"logs.dir" env:"LOGS_DIR"`
	MetricsTextfile string `toml:"metrics.textfile" env:"METRICS_TEXTFILE"`

	// Logging settings
	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
}

// app carries what every subcommand shares once flags and config are loaded.
type app struct {
	opts   Options
	bus    *events.Bus
	logger *slog.Logger
}

// store opens the preset store and seeds it with the built-in presets.
func (a *app) store() (*presets.Store, error) {
	s := presets.NewStore(a.opts.PresetsDir,
		presets.WithLogger(logging.GetLogger("presets")),
		presets.WithPublisher(a.bus),
	)
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewRootCmd creates the ffpanel command tree.
func NewRootCmd() *cobra.Command {
	a := &app{bus: events.New()}
	paths := config.DefaultPaths()

	root := &cobra.Command{
		Use:           "ffpanel",
		Version:       version.Get().String(),
		Short:         "Build and run ffmpeg conversions from a panel of options",
		Long:          `ffpanel turns container, codec, filter and normalization choices into ffmpeg command lines and runs them over batches of files. Saved profiles live in per-preset TOML files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(&a.opts, cmd); err != nil {
				return err
			}
			loggingConfig := config.LoadLoggingConfig(a.opts.Config)
			loggingConfig.Level = a.opts.LoggingLevel
			loggingConfig.Format = a.opts.LoggingFormat
			logging.Initialize(loggingConfig)
			a.logger = logging.GetLogger("main")
			a.logger.Debug("Configuration loaded", "config", a.opts.Config,
				"ffmpeg", a.opts.FfmpegBinary, "presets", a.opts.PresetsDir)
			return nil
		},
	}

	fs := root.PersistentFlags()
	fs.StringVarP(&a.opts.Config, "config", "c", paths.Config, "Path to configuration file")
	fs.StringVar(&a.opts.FfmpegBinary, "ffmpeg-binary", "ffmpeg", "FFmpeg executable")
	fs.StringVar(&a.opts.FfmpegLoglevel, "ffmpeg-loglevel", "", "FFmpeg -loglevel for conversions (default level+info)")
	fs.StringVar(&a.opts.FfmpegThreads, "ffmpeg-threads", "-threads 4", "Thread option added to preset runs")
	fs.StringVar(&a.opts.PresetsDir, "presets-dir", paths.Presets, "Directory holding preset files")
	fs.StringVar(&a.opts.LogDir, "log-dir", paths.Logs, "Directory for job logs")
	fs.StringVar(&a.opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after each job")
	fs.StringVar(&a.opts.LoggingLevel, "logging-level", "info", "Global logging level (debug, info, warn, error)")
	fs.StringVar(&a.opts.LoggingFormat, "logging-format", "text", "Logging format (text, json)")

	root.AddCommand(
		newCatalogCmd(),
		newBuildCmd(a),
		newAnalyzeCmd(a),
		newRunCmd(a),
		newPresetsCmd(a),
		newEncodersCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree. On failure the recent warnings and errors
// are printed after the error itself.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		printRecentErrors(os.Stderr)
		return 1
	}
	return 0
}
