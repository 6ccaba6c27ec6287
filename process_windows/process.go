//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"

	"memsplit/process"
)

const access = windows.PROCESS_VM_READ | windows.PROCESS_QUERY_LIMITED_INFORMATION

type attachment struct {
	pid    uint32
	handle windows.Handle
	log    *logger.Logger
}

// WindowsMemory implements process.Memory with OpenProcess and
// ReadProcessMemory. Raw handles are the OS process handles.
type WindowsMemory struct {
	mu       sync.Mutex
	log      *logger.Logger
	attached map[process.RawHandle]*attachment
}

var _ process.Memory = (*WindowsMemory)(nil)

// New creates a WindowsMemory with no attached processes.
func New() *WindowsMemory {
	return &WindowsMemory{
		log:      logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
		attached: make(map[process.RawHandle]*attachment),
	}
}

// ListByName returns the PIDs of all processes whose image name equals name.
func ListByName(name string) ([]uint32, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var out []uint32
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		if windows.UTF16ToString(entry.ExeFile[:]) == name {
			out = append(out, entry.ProcessID)
		}
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, fmt.Errorf("Process32Next failed: %w", err)
	}
	return out, nil
}

// Attach opens the single running process named name for reading.
func (m *WindowsMemory) Attach(name string) process.RawHandle {
	pids, err := ListByName(name)
	if err != nil {
		m.log.Debugln("Process lookup failed:", err)
		return process.InvalidHandle
	}
	if len(pids) != 1 {
		return process.InvalidHandle
	}

	handle, err := windows.OpenProcess(access, false, pids[0])
	if err != nil {
		m.log.Debugln("OpenProcess failed:", err)
		return process.InvalidHandle
	}

	a := &attachment{
		pid:    pids[0],
		handle: handle,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pids[0]))),
	}
	raw := process.RawHandle(handle)

	m.mu.Lock()
	m.attached[raw] = a
	m.mu.Unlock()

	a.log.Infoln("Process opened:", name)
	return raw
}

// Detach closes the process handle behind h.
func (m *WindowsMemory) Detach(h process.RawHandle) {
	m.mu.Lock()
	a, ok := m.attached[h]
	delete(m.attached, h)
	m.mu.Unlock()

	if !ok {
		m.log.Warn("Detach of unknown handle ", int64(h))
		return
	}
	if err := windows.CloseHandle(a.handle); err != nil {
		a.log.Warn("CloseHandle failed: ", err)
	}
	a.log.Infoln("Process closed")
}

// ReadBytes fills buf from addr with ReadProcessMemory.
func (m *WindowsMemory) ReadBytes(h process.RawHandle, addr process.Address, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	m.mu.Lock()
	a, ok := m.attached[h]
	m.mu.Unlock()

	if !ok {
		return process.ErrProcessNotOpen
	}

	var bytesRead uintptr
	err := windows.ReadProcessMemory(a.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &bytesRead)
	if err != nil {
		return fmt.Errorf("ReadProcessMemory failed: %w", err)
	}

	if bytesRead != uintptr(len(buf)) {
		return fmt.Errorf("read incomplete: expected %d, got %d", len(buf), bytesRead)
	}

	return nil
}
