//go:build linux

package cmd

import (
	"memsplit/process"
	"memsplit/process_linux"
)

func newMemory() (process.Memory, error) {
	return process_linux.New(), nil
}
