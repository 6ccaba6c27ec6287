// Package host defines the capability surface the splitter runs against.
// The splitter never touches processes or timers except through it.
package host

import (
	"github.com/Moonlight-Companies/gologger/logger"

	"memsplit/process"
	"memsplit/timer"
)

// Host is everything the splitter may ask of its environment.
type Host interface {
	process.Memory
	timer.Timer

	// PrintMessage shows text to the user.
	PrintMessage(text string)
}

// Local is a Host assembled from a process backend, a timer and a logger.
type Local struct {
	process.Memory
	timer.Timer

	log *logger.Logger
}

var _ Host = (*Local)(nil)

// NewLocal combines a memory backend, a timer and a logger into a Host.
func NewLocal(mem process.Memory, t timer.Timer, log *logger.Logger) *Local {
	return &Local{Memory: mem, Timer: t, log: log}
}

// PrintMessage logs text at info level.
func (l *Local) PrintMessage(text string) {
	l.log.Infoln(text)
}
