package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeOptionsChanged uint32 = iota + 1
	TypeAnalysisCompleted
	TypeJobStarted
	TypeJobProgress
	TypeFileFinished
	TypeJobFinished
	TypePresetsReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// OptionsChangedEvent is published after every controller mutation.
type OptionsChangedEvent struct {
	Operation     string    `json:"operation"`
	Container     string    `json:"container"`
	Pass          string    `json:"pass"`
	Normalization string    `json:"normalization"`
	Audio         string    `json:"audio"`
	Timestamp     time.Time `json:"timestamp"`
}

// Type returns the event type identifier for OptionsChangedEvent.
func (e OptionsChangedEvent) Type() uint32 { return TypeOptionsChanged }

// AnalysisCompletedEvent reports a finished PEAK/RMS volume analysis.
type AnalysisCompletedEvent struct {
	Mode      string    `json:"mode"`
	Files     int       `json:"files"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for AnalysisCompletedEvent.
func (e AnalysisCompletedEvent) Type() uint32 { return TypeAnalysisCompleted }

// JobStartedEvent is published when a batch starts.
type JobStartedEvent struct {
	JobID     string    `json:"job_id"`
	Mode      string    `json:"mode"`
	Files     int       `json:"files"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for JobStartedEvent.
func (e JobStartedEvent) Type() uint32 { return TypeJobStarted }

// JobProgressEvent carries encoder progress for one pass of one file.
type JobProgressEvent struct {
	JobID     string        `json:"job_id"`
	File      string        `json:"file"`
	Index     int           `json:"index"`
	Count     int           `json:"count"`
	Pass      int           `json:"pass"`
	Passes    int           `json:"passes"`
	OutTime   time.Duration `json:"out_time"`
	Frame     int64         `json:"frame"`
	Speed     string        `json:"speed,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for JobProgressEvent.
func (e JobProgressEvent) Type() uint32 { return TypeJobProgress }

// FileFinishedEvent reports the outcome of one file in a batch.
type FileFinishedEvent struct {
	JobID     string    `json:"job_id"`
	File      string    `json:"file"`
	Output    string    `json:"output"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for FileFinishedEvent.
func (e FileFinishedEvent) Type() uint32 { return TypeFileFinished }

// JobFinishedEvent is published when a batch ends, successfully or not.
type JobFinishedEvent struct {
	JobID     string        `json:"job_id"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for JobFinishedEvent.
func (e JobFinishedEvent) Type() uint32 { return TypeJobFinished }

// PresetsReloadedEvent is published when preset files change on disk.
type PresetsReloadedEvent struct {
	Dir       string    `json:"dir"`
	Presets   int       `json:"presets"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for PresetsReloadedEvent.
func (e PresetsReloadedEvent) Type() uint32 { return TypePresetsReloaded }
