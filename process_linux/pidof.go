//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// ListByName returns the PIDs of all processes whose comm or exe basename
// equals name. The match is case-sensitive, like pidof.
func ListByName(name string) ([]int, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	selfPID := os.Getpid()
	var out []int

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue // not a PID dir
		}
		if pid == selfPID {
			continue
		}

		if matchesName(pid, name) {
			out = append(out, pid)
		}
	}

	return out, nil
}

func matchesName(pid int, name string) bool {
	dir := filepath.Join("/proc", strconv.Itoa(pid))

	comm, _ := os.ReadFile(filepath.Join(dir, "comm"))
	if string(bytesTrimNL(comm)) == name {
		return true
	}

	// comm is truncated to 15 bytes; Windows games under Wine/Proton show up
	// with the full name only in the exe link or the first cmdline word.
	exe, _ := os.Readlink(filepath.Join(dir, "exe"))
	if exe != "" && filepath.Base(exe) == name {
		return true
	}

	cmdline, _ := os.ReadFile(filepath.Join(dir, "cmdline"))
	if i := bytes.IndexByte(cmdline, 0); i >= 0 {
		cmdline = cmdline[:i]
	}
	return len(cmdline) > 0 && baseName(string(cmdline)) == name
}

// baseName handles both / and \ separators, since Wine paths keep the latter.
func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func procExists(pid int) bool {
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	if err == nil {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	// For transient errors (permission, EIO): fall back to kill 0
	return syscall.Kill(pid, 0) == nil
}

func bytesTrimNL(b []byte) []byte {
	// Trim trailing '\n' if present (comm has a newline).
	for len(b) > 0 {
		switch b[len(b)-1] {
		case '\n', '\r', ' ', '\t':
			b = b[:len(b)-1]
		default:
			return b
		}
	}
	return b
}
