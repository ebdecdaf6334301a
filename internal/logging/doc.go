// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stderr when a terminal, pipe, or file is connected
//   - Keeps the most recent entries in a ring buffer for failure reports
//
// Stdout is never written to, so generated ffmpeg command lines and tables
// can be piped.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"dispatch": "debug",  // Per-module overrides
//			"ffmpeg":   "warn",
//		},
//	})
//
// Get a logger for your module. Loggers may be created before Initialize;
// they pick up the configured level and outputs once it runs:
//
//	logger := logging.GetLogger("panel")
//	logger.Info("Container selected", "container", "MP4")
//	logger.Warn("Analysis skipped", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("dispatch").With("job_id", id)
//	logger.Info("Job started")  // Includes job_id in all logs
//
// Each conversion job additionally writes the ffmpeg output it produces to
// its own file, opened with [NewFileLogger].
//
// # Viewing Logs
//
// When running on a system with journald:
//
//	journalctl -t ffpanel              # All ffpanel logs
//	journalctl -t ffpanel -p err       # Errors only
//	journalctl -t ffpanel MODULE=dispatch
//
// # Configuration
//
// Example TOML configuration. Keys other than level and format are module
// overrides:
//
//	[logging]
//	level = "info"
//	format = "text"
//	dispatch = "debug"
//	ffmpeg = "warn"
package logging
