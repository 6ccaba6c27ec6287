// Package timer describes the stopwatch the splitter drives.
package timer

import "fmt"

// Phase is the lifecycle phase of a timer.
type Phase int

const (
	NotRunning Phase = iota
	Running
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotRunning:
		return "NotRunning"
	case Running:
		return "Running"
	case Finished:
		return "Finished"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Timer is the part of the host capability boundary that controls the timer.
// Commands are fire-and-forget; issuing one that does not apply in the
// current phase is a no-op.
type Timer interface {
	// Phase is read-only ground truth for the splitter.
	Phase() Phase

	Start()
	Split()
	Reset()
	PauseGameTime()
	ResumeGameTime()

	// SetTickRate hints how often the driver should run a tick. It takes
	// effect after the current tick.
	SetTickRate(ticksPerSecond float64)
}
