package process

import "time"

// State is the lifecycle position of a Process within its single run.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// Info is a snapshot of a Process. LastError holds the most recent failure
// and is kept when the process later returns to idle.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
	LastError error
}
