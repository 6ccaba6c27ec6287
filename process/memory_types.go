package process

import (
	"fmt"
)

// Address is an offset into the target process's address space.
type Address uint64

// Add returns the address displaced by offset.
func (a Address) Add(offset Size) Address {
	return a + Address(offset)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Size is a byte count or displacement within the target process.
type Size uint64

func (s Size) String() string {
	return fmt.Sprintf("%d bytes", uint64(s))
}
