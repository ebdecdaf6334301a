// Package process runs ffmpeg subprocesses to completion.
//
// Process wraps os/exec for a single run:
//   - Cancellation through context, sending SIGINT first
//   - SIGKILL for the whole process group if the graceful timeout elapses
//   - Output streaming to an OutputHandler with pluggable log parsing
//
// Example usage:
//
//	p := process.NewProcessWithOutput("job-1", cmd, logger, tracker)
//	p.SetLogParser(ffmpegLogger, ffmpeg.ParseLogLevel)
//	code, err := p.Run(ctx)
package process
