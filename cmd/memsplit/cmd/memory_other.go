//go:build !linux && !windows

package cmd

import (
	"fmt"
	"runtime"

	"memsplit/process"
)

func newMemory() (process.Memory, error) {
	return nil, fmt.Errorf("reading process memory is not supported on %s", runtime.GOOS)
}
