//go:build linux

package process_linux

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"memsplit/process"
)

// process_vm_readv fills buf from the memory of pid at remoteAddr. A short
// read is an error; the caller must not use buf then.
func process_vm_readv(pid int, remoteAddr process.Address, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	localIov := unix.Iovec{
		Base: &buf[0],
		Len:  uint64(len(buf)),
	}

	remoteIov := unix.RemoteIovec{
		Base: uintptr(remoteAddr),
		Len:  len(buf),
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_PROCESS_VM_READV,
		uintptr(pid),                        // Remote process PID
		uintptr(unsafe.Pointer(&localIov)),  // Local iovec
		uintptr(1),                          // Number of local iovecs
		uintptr(unsafe.Pointer(&remoteIov)), // Remote iovec
		uintptr(1),                          // Number of remote iovecs
		uintptr(0),                          // Flags
	)

	if errno != 0 {
		return fmt.Errorf("process_vm_readv failed: %w", errno)
	}

	if int(n) != len(buf) {
		return fmt.Errorf("partial read: %d of %d bytes", n, len(buf))
	}

	return nil
}
