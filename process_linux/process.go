//go:build linux

package process_linux

import (
	"fmt"
	"sync"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"memsplit/process"
)

type attachment struct {
	pid int
	log *logger.Logger
}

// LinuxMemory implements process.Memory for Linux systems. Handles are PIDs.
type LinuxMemory struct {
	mu       sync.Mutex
	log      *logger.Logger
	attached map[process.RawHandle]*attachment
	list     func(name string) ([]int, error)
}

var _ process.Memory = (*LinuxMemory)(nil)

// New creates a LinuxMemory that finds processes through /proc.
func New() *LinuxMemory {
	return &LinuxMemory{
		log:      logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
		attached: make(map[process.RawHandle]*attachment),
		list:     ListByName,
	}
}

// Attach returns the PID of the only process called name. Zero or several
// matches yield process.InvalidHandle.
func (m *LinuxMemory) Attach(name string) process.RawHandle {
	pids, err := m.list(name)
	if err != nil {
		m.log.Debugln("Process lookup failed:", err)
		return process.InvalidHandle
	}
	if len(pids) != 1 {
		if len(pids) > 1 {
			m.log.Debugln("Ambiguous process name", name, "matches", pids)
		}
		return process.InvalidHandle
	}

	pid := pids[0]
	a := &attachment{
		pid: pid,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	m.mu.Lock()
	m.attached[process.RawHandle(pid)] = a
	m.mu.Unlock()

	a.log.Infoln("Process opened:", name)
	return process.RawHandle(pid)
}

// Detach forgets h. Unknown handles are ignored.
func (m *LinuxMemory) Detach(h process.RawHandle) {
	m.mu.Lock()
	a, ok := m.attached[h]
	delete(m.attached, h)
	m.mu.Unlock()

	if !ok {
		m.log.Warn("Detach of unknown handle ", int64(h))
		return
	}
	a.log.Infoln("Process closed")
}

// ReadBytes reads from the attached process with process_vm_readv. The lock
// is not held during the system call.
func (m *LinuxMemory) ReadBytes(h process.RawHandle, addr process.Address, buf []byte) error {
	m.mu.Lock()
	a, ok := m.attached[h]
	m.mu.Unlock()

	if !ok {
		return process.ErrProcessNotOpen
	}

	if err := process_vm_readv(a.pid, addr, buf); err != nil {
		if !procExists(a.pid) {
			return fmt.Errorf("process %d exited: %w", a.pid, err)
		}
		return err
	}
	return nil
}
