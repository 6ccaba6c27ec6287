package process

import (
	"fmt"
	"sync"
)

// Handle is an owned attachment to one external process. It detaches from
// the host when closed, exactly once.
type Handle struct {
	mem  Memory
	raw  RawHandle
	name string

	mu     sync.Mutex
	closed bool
}

var _ Reader = (*Handle)(nil)

// Attach asks mem for the process called name. ok is false when nothing was
// attached, which is the normal state until the target is launched.
func Attach(mem Memory, name string) (h *Handle, ok bool) {
	raw := mem.Attach(name)
	if raw == InvalidHandle {
		return nil, false
	}
	return &Handle{mem: mem, raw: raw, name: name}, true
}

// Raw returns the host identifier of the attachment.
func (h *Handle) Raw() RawHandle {
	return h.raw
}

// Name returns the process name the handle was attached with.
func (h *Handle) Name() string {
	return h.name
}

// Equal reports whether both handles refer to the same host attachment.
func (h *Handle) Equal(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.mem == other.mem && h.raw == other.raw
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// ReadBytes fills buf from target memory at addr. Any host failure is
// reported as ErrReadFailed.
func (h *Handle) ReadBytes(addr Address, buf []byte) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return fmt.Errorf("%w: %w", ErrReadFailed, ErrHandleClosed)
	}
	if len(buf) == 0 {
		return nil
	}

	if err := h.mem.ReadBytes(h.raw, addr, buf); err != nil {
		return fmt.Errorf("%w: %d bytes at %s: %w", ErrReadFailed, len(buf), addr, err)
	}
	return nil
}

// Close detaches from the host. Calling it again has no effect.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.mem.Detach(h.raw)
	return nil
}
