//go:build windows

package cmd

import (
	"memsplit/process"
	"memsplit/process_windows"
)

func newMemory() (process.Memory, error) {
	return process_windows.New(), nil
}
