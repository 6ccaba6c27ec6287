// Package splitter turns polled target memory into timer commands.
package splitter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"

	"memsplit/host"
	"memsplit/process"
	"memsplit/profile"
	"memsplit/watcher"
)

// ErrPanic is returned by Tick when the tick panicked.
var ErrPanic = errors.New("tick panicked")

// Engine is the splitter state: the tracked process and the watchers that
// need memory across ticks. All methods serialize on one lock.
type Engine struct {
	mu      sync.Mutex
	host    host.Host
	profile profile.Profile
	log     *logger.Logger

	overlayName  []byte // UTF-16LE, no terminator
	overlayUnits uint32

	proc     *process.Handle
	session  uuid.UUID
	ready    watcher.Watcher[uint8]
	failures int
}

// New creates an engine for the target described by p.
func New(h host.Host, p profile.Profile) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	name, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(p.OverlayName))
	if err != nil {
		return nil, fmt.Errorf("encode overlay name %q: %w", p.OverlayName, err)
	}

	return &Engine{
		host:         h,
		profile:      p,
		log:          logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "splitter")),
		overlayName:  name,
		overlayUnits: uint32(len(name) / 2),
	}, nil
}

// Configure passes the profile's tick rate to the host. It is meant to run
// once at load time but is safe to repeat.
func (e *Engine) Configure() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.host.SetTickRate(e.profile.TickRate)
	e.log.Infoln("Configured for", e.profile.ProcessName, "at", e.profile.TickRate, "ticks/s")
}

// Update runs one tick and swallows its outcome. It never panics.
func (e *Engine) Update() {
	if err := e.Tick(); err != nil {
		e.log.Debugln("Tick aborted:", err)
	}
}

// Tick runs one tick. A non-nil error means the tick was abandoned part way
// and no timer command was issued by the Running branch.
func (e *Engine) Tick() (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("Recovered from panic during tick: ", r)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	err = e.tick()
	e.trackFailures(err)
	return err
}

// Detach releases the tracked process. The next tick attaches again. Read
// failures never do this on their own: a target that is briefly unreadable
// keeps its handle, so a different process with the same name is not picked
// up by accident.
func (e *Engine) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detach()
}

// Close detaches for shutdown.
func (e *Engine) Close() error {
	e.Detach()
	return nil
}

// Attached reports whether a process is tracked.
func (e *Engine) Attached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.proc != nil
}

// Session identifies the current attachment in logs. It is uuid.Nil while
// detached.
func (e *Engine) Session() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Ready returns the last two successful samples of the ready flag.
func (e *Engine) Ready() (old, current uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready.Old, e.ready.Current
}

// Failures is the number of consecutive aborted ticks.
func (e *Engine) Failures() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures
}

func (e *Engine) attach() {
	proc, ok := process.Attach(e.host, e.profile.ProcessName)
	if !ok {
		return
	}

	e.proc = proc
	e.session = uuid.New()
	e.ready.Reset()
	e.failures = 0

	e.log.Infoln("Attached to", e.profile.ProcessName, "handle", proc.Raw(), "session", e.session)
	e.host.PrintMessage(fmt.Sprintf("attached to %s", e.profile.ProcessName))
}

func (e *Engine) detach() {
	if e.proc == nil {
		return
	}

	if err := e.proc.Close(); err != nil {
		e.log.Warn("Detach failed: ", err)
	}
	e.log.Infoln("Detached from", e.profile.ProcessName, "session", e.session)
	e.host.PrintMessage(fmt.Sprintf("detached from %s", e.profile.ProcessName))

	e.proc = nil
	e.session = uuid.Nil
}

func (e *Engine) trackFailures(err error) {
	if err == nil {
		if e.failures > 0 {
			e.log.Infoln("Reads recovered after", e.failures, "failed ticks")
		}
		e.failures = 0
		return
	}

	e.failures++
	if e.failures == 1 {
		e.log.Infoln("Reads failing, keeping handle:", err)
	}
}
