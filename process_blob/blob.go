// Package process_blob holds a sparse, in-memory image of a process address
// space. Reads are all-or-nothing, like a real host.
package process_blob

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"memsplit/process"
)

type region struct {
	base process.Address
	data []byte
}

func (r *region) end() process.Address {
	return r.base + process.Address(len(r.data))
}

// ProcessBlob is a set of non-overlapping mapped regions.
type ProcessBlob struct {
	mu      sync.RWMutex
	regions []*region // sorted by base
}

var _ process.Reader = (*ProcessBlob)(nil)

// NewProcessBlob creates an empty address space.
func NewProcessBlob() *ProcessBlob {
	return &ProcessBlob{}
}

// Map adds a zero-filled region of size bytes at base. Mapping over an
// existing region is an error.
func (p *ProcessBlob) Map(base process.Address, size process.Size) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &region{base: base, data: make([]byte, size)}
	for _, other := range p.regions {
		if r.base < other.end() && other.base < r.end() {
			return fmt.Errorf("region %s+%d overlaps %s+%d", base, size, other.base, len(other.data))
		}
	}

	p.regions = append(p.regions, r)
	sort.Slice(p.regions, func(i, j int) bool {
		return p.regions[i].base < p.regions[j].base
	})
	return nil
}

// find returns the region covering [addr, addr+size) or nil.
func (p *ProcessBlob) find(addr process.Address, size int) *region {
	i := sort.Search(len(p.regions), func(i int) bool {
		return p.regions[i].end() > addr
	})
	if i == len(p.regions) {
		return nil
	}
	r := p.regions[i]
	if addr < r.base || uint64(addr)+uint64(size) > uint64(r.end()) {
		return nil
	}
	return r
}

// ReadBytes copies len(buf) bytes at addr into buf. Nothing is written to buf
// unless the whole range is mapped.
func (p *ProcessBlob) ReadBytes(addr process.Address, buf []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	r := p.find(addr, len(buf))
	if r == nil {
		return fmt.Errorf("%d bytes at %s: address not mapped", len(buf), addr)
	}
	copy(buf, r.data[addr-r.base:])
	return nil
}

// WriteBytes stores data at addr. The whole range must be mapped.
func (p *ProcessBlob) WriteBytes(addr process.Address, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.find(addr, len(data))
	if r == nil {
		return fmt.Errorf("%d bytes at %s: address not mapped", len(data), addr)
	}
	copy(r.data[addr-r.base:], data)
	return nil
}

// WriteUINT8 writes v at addr.
func (p *ProcessBlob) WriteUINT8(addr process.Address, v uint8) error {
	return p.WriteBytes(addr, []byte{v})
}

// WriteUINT16 writes v little-endian at addr.
func (p *ProcessBlob) WriteUINT16(addr process.Address, v uint16) error {
	return p.WriteBytes(addr, binary.LittleEndian.AppendUint16(nil, v))
}

// WriteUINT32 writes v little-endian at addr.
func (p *ProcessBlob) WriteUINT32(addr process.Address, v uint32) error {
	return p.WriteBytes(addr, binary.LittleEndian.AppendUint32(nil, v))
}

// WriteINT32 writes v little-endian at addr.
func (p *ProcessBlob) WriteINT32(addr process.Address, v int32) error {
	return p.WriteUINT32(addr, uint32(v))
}

// Regions returns the number of mapped regions.
func (p *ProcessBlob) Regions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.regions)
}
