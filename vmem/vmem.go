// Package vmem reserves and protects the virtual-memory mappings that hold
// generated machine code.
//
// A Mapping starts out writable and is flipped to read-execute exactly once.
// Host returns the operating system implementation (mmap/mprotect on unix,
// VirtualAlloc/VirtualProtect on windows); Heap backs mappings with Go memory
// for platforms and tests that never execute them.
package vmem

import (
	"os"
	"unsafe"
)

// Protection is the access mode of a Mapping.
type Protection uint8

const (
	ReadWrite Protection = iota
	ReadExecute
)

func (p Protection) String() string {
	switch p {
	case ReadWrite:
		return "rw-"
	case ReadExecute:
		return "r-x"
	default:
		return "???"
	}
}

// VirtualMemory is the OS virtual-memory interface consumed by the code arena.
type VirtualMemory interface {
	// Reserve maps at least minBytes of writable memory, rounded up to pages.
	Reserve(minBytes int) (*Mapping, error)
	// Protect switches the protection of the whole mapping.
	Protect(m *Mapping, p Protection) error
	// Release unmaps the mapping. The mapping must not be used afterwards.
	Release(m *Mapping) error
}

// Mapping is one contiguous virtual-memory region. The zero value is an empty
// mapping with no backing memory.
type Mapping struct {
	data []byte
	prot Protection
}

// NewMapping wraps memory obtained by a VirtualMemory implementation.
func NewMapping(data []byte, prot Protection) *Mapping {
	return &Mapping{data: data, prot: prot}
}

// Len returns the mapping length in bytes.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.data)
}

// Base returns the address of the first byte, or 0 for an empty mapping.
func (m *Mapping) Base() uintptr {
	if m.Len() == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&m.data[0]))
}

// Bytes returns the mapped memory. Writing to it is only valid while the
// mapping is ReadWrite.
func (m *Mapping) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.data
}

// Protection returns the last protection applied to the mapping.
func (m *Mapping) Protection() Protection {
	if m == nil {
		return ReadWrite
	}
	return m.prot
}

// SetProtection records the protection applied by a VirtualMemory
// implementation. It does not change OS state.
func (m *Mapping) SetProtection(p Protection) {
	m.prot = p
}

// Contains reports whether addr lies inside the mapping.
func (m *Mapping) Contains(addr uintptr) bool {
	base := m.Base()
	return base != 0 && addr >= base && addr < base+uintptr(m.Len())
}

// PageSize returns the OS page size.
func PageSize() int {
	return os.Getpagesize()
}

// RoundUp rounds n up to a whole number of pages.
func RoundUp(n int) int {
	page := PageSize()
	return (n + page - 1) &^ (page - 1)
}
