package vmem

import (
	"github.com/wippyai/wasm-jitmem/errors"
)

// Heap is a VirtualMemory backed by the Go heap. Protection changes are only
// recorded, so its mappings can be filled and inspected but never executed.
type Heap struct {
	// Limit caps the total bytes Heap will reserve. 0 means unlimited.
	Limit int

	reserved int
}

// NewHeap creates an unlimited heap-backed VirtualMemory.
func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) Reserve(minBytes int) (*Mapping, error) {
	if minBytes <= 0 {
		return nil, errors.InvalidInput(errors.PhaseAllocate, "reservation size must be positive")
	}
	size := RoundUp(minBytes)
	if h.Limit > 0 && h.reserved+size > h.Limit {
		return nil, errors.New(errors.PhaseAllocate, errors.KindAllocation).
			Value(size).
			Detail("heap limit %d exceeded (%d reserved)", h.Limit, h.reserved).
			Build()
	}
	h.reserved += size
	return NewMapping(make([]byte, size), ReadWrite), nil
}

func (h *Heap) Protect(m *Mapping, p Protection) error {
	m.SetProtection(p)
	return nil
}

func (h *Heap) Release(m *Mapping) error {
	if m.Len() == 0 {
		return nil
	}
	h.reserved -= m.Len()
	m.data = nil
	return nil
}

// Reserved returns the bytes currently reserved.
func (h *Heap) Reserved() int {
	return h.reserved
}
