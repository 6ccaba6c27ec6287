package process

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ByteOrder of every supported target.
var ByteOrder = binary.LittleEndian

// SizeOf returns the in-target byte size of T, or an error when T has no
// fixed layout (slices, strings, maps, pointers, ints without a width) or is
// empty.
func SizeOf[T any]() (Size, error) {
	var t T
	n := binary.Size(t)
	if n <= 0 {
		return 0, fmt.Errorf("%w: %T", ErrNotFixedLayout, t)
	}
	return Size(n), nil
}

// Read reads a value of fixed-layout type T at addr.
//
// T is decoded field by field in declaration order with no padding, so the
// Go struct must list every byte of the target structure, using blank fields
// for gaps. Every bit pattern decodes to a legal T.
func Read[T any](r Reader, addr Address) (T, error) {
	var t T
	size, err := SizeOf[T]()
	if err != nil {
		return t, err
	}

	buf := make([]byte, size)
	if err := r.ReadBytes(addr, buf); err != nil {
		return t, err
	}

	if err := binary.Read(bytes.NewReader(buf), ByteOrder, &t); err != nil {
		return t, fmt.Errorf("decode %T at %s: %w", t, addr, err)
	}
	return t, nil
}

// ReadSlice fills dst with len(dst) contiguous values starting at addr. The
// contents of dst are unspecified when an error is returned.
func ReadSlice[T any](r Reader, addr Address, dst []T) error {
	if len(dst) == 0 {
		return nil
	}

	size, err := SizeOf[T]()
	if err != nil {
		return err
	}

	buf := make([]byte, size*Size(len(dst)))
	if err := r.ReadBytes(addr, buf); err != nil {
		return err
	}

	if err := binary.Read(bytes.NewReader(buf), ByteOrder, dst); err != nil {
		return fmt.Errorf("decode %d x %T at %s: %w", len(dst), dst[0], addr, err)
	}
	return nil
}

// ReadPointer32 reads a 32-bit target pointer at addr.
func ReadPointer32(r Reader, addr Address) (Address, error) {
	ptr, err := Read[uint32](r, addr)
	if err != nil {
		return 0, err
	}
	return Address(ptr), nil
}

// Resolve follows a chain of 32-bit pointers from base. Every offset but the
// last is added to the current address and dereferenced; the last offset is
// a plain displacement into the final structure. With no offsets it returns
// base.
func Resolve(r Reader, base Address, offsets ...Size) (Address, error) {
	current := base

	for i := 0; i < len(offsets)-1; i++ {
		ptrAddr := current.Add(offsets[i])

		ptr, err := ReadPointer32(r, ptrAddr)
		if err != nil {
			return 0, fmt.Errorf("pointer at step %d (%s): %w", i, ptrAddr, err)
		}
		if ptr == 0 {
			return 0, fmt.Errorf("%w: null pointer at step %d (%s)", ErrReadFailed, i, ptrAddr)
		}
		current = ptr
	}

	if len(offsets) > 0 {
		current = current.Add(offsets[len(offsets)-1])
	}
	return current, nil
}

// ReadPath reads a value of type T at the end of a pointer chain, see Resolve.
func ReadPath[T any](r Reader, base Address, offsets ...Size) (T, error) {
	addr, err := Resolve(r, base, offsets...)
	if err != nil {
		var zero T
		return zero, err
	}
	return Read[T](r, addr)
}
