// Package hosttest provides a scriptable in-memory Host.
package hosttest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"memsplit/host"
	"memsplit/process"
	"memsplit/process_blob"
	"memsplit/timer"
)

// ErrInjected is returned by reads that were made to fail.
var ErrInjected = errors.New("injected read failure")

// Fake serves one process from a ProcessBlob and records every call made to
// it. The timer phase is whatever the test sets; commands do not change it.
type Fake struct {
	mu sync.Mutex

	// Memory is the target address space.
	Memory *process_blob.ProcessBlob

	// ProcessName is the only name Attach succeeds for, while Running.
	ProcessName string
	Running     bool

	phase    timer.Phase
	next     process.RawHandle
	live     map[process.RawHandle]bool
	failAt   map[process.Address]bool
	failAll  bool
	calls    []string
	messages []string
	reads    []process.Address
	attaches int
	detaches int
	tickRate float64
}

var _ host.Host = (*Fake)(nil)

// New creates a Fake whose target process is called name and is running.
func New(name string) *Fake {
	return &Fake{
		Memory:      process_blob.NewProcessBlob(),
		ProcessName: name,
		Running:     true,
		live:        make(map[process.RawHandle]bool),
		failAt:      make(map[process.Address]bool),
	}
}

// Attach returns a fresh handle while Running and the name matches.
func (f *Fake) Attach(name string) process.RawHandle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attaches++
	if !f.Running || name != f.ProcessName {
		return process.InvalidHandle
	}
	f.next++
	f.live[f.next] = true
	return f.next
}

// Detach releases h.
func (f *Fake) Detach(h process.RawHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.detaches++
	delete(f.live, h)
}

// ReadBytes reads from Memory unless the handle is stale or a failure is injected.
func (f *Fake) ReadBytes(h process.RawHandle, addr process.Address, buf []byte) error {
	f.mu.Lock()
	f.reads = append(f.reads, addr)
	live := f.live[h]
	fail := f.failAll || f.failAt[addr]
	f.mu.Unlock()

	switch {
	case !live:
		return process.ErrProcessNotOpen
	case fail:
		return fmt.Errorf("%w at %s", ErrInjected, addr)
	}
	return f.Memory.ReadBytes(addr, buf)
}

// FailAt makes every read starting at addr fail until cleared.
func (f *Fake) FailAt(addr process.Address, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fail {
		f.failAt[addr] = true
	} else {
		delete(f.failAt, addr)
	}
}

// FailAll makes every read fail, as when the target has exited.
func (f *Fake) FailAll(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = fail
}

// SetPhase sets the phase the engine will observe.
func (f *Fake) SetPhase(p timer.Phase) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phase = p
}

// Phase returns the phase set by SetPhase.
func (f *Fake) Phase() timer.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// Start records "start".
func (f *Fake) Start()          { f.record("start") }
// Split records "split".
func (f *Fake) Split()          { f.record("split") }
// Reset records "reset".
func (f *Fake) Reset()          { f.record("reset") }
// PauseGameTime records "pause".
func (f *Fake) PauseGameTime()  { f.record("pause") }
// ResumeGameTime records "resume".
func (f *Fake) ResumeGameTime() { f.record("resume") }

// SetTickRate records the rate and remembers it.
func (f *Fake) SetTickRate(ticksPerSecond float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickRate = ticksPerSecond
	f.calls = append(f.calls, fmt.Sprintf("tick_rate %g", ticksPerSecond))
}

// PrintMessage stores text.
func (f *Fake) PrintMessage(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
}

// Calls returns the timer commands issued so far and clears the record.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls
	f.calls = nil
	return calls
}

// Reads returns the start address of every read so far and clears the record.
func (f *Fake) Reads() []process.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	reads := f.reads
	f.reads = nil
	return reads
}

// ReadFrom reports whether any recorded read started at addr.
func (f *Fake) ReadFrom(addr process.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reads {
		if r == addr {
			return true
		}
	}
	return false
}

// Messages returns every printed message, one per line.
func (f *Fake) Messages() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.messages, "\n")
}

// Attaches counts successful attaches.
func (f *Fake) Attaches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attaches
}

// Detaches counts detaches.
func (f *Fake) Detaches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detaches
}

// Live is the number of attachments not yet detached.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// TickRate returns the last rate set, 0 if none.
func (f *Fake) TickRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickRate
}
