//go:build windows

package vmem

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/wippyai/wasm-jitmem/errors"
)

type hostMemory struct{}

// Host returns the VirtualAlloc/VirtualProtect backed VirtualMemory.
func Host() VirtualMemory {
	return hostMemory{}
}

func (hostMemory) Reserve(minBytes int) (*Mapping, error) {
	if minBytes <= 0 {
		return nil, errors.InvalidInput(errors.PhaseAllocate, "reservation size must be positive")
	}
	size := RoundUp(minBytes)
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return NewMapping(data, ReadWrite), nil
}

func (hostMemory) Protect(m *Mapping, p Protection) error {
	if m.Len() == 0 {
		return nil
	}
	prot := uint32(windows.PAGE_READWRITE)
	if p == ReadExecute {
		prot = windows.PAGE_EXECUTE_READ
	}
	var old uint32
	if err := windows.VirtualProtect(m.Base(), uintptr(m.Len()), prot, &old); err != nil {
		return err
	}
	m.SetProtection(p)
	return nil
}

func (hostMemory) Release(m *Mapping) error {
	if m.Len() == 0 {
		return nil
	}
	if err := windows.VirtualFree(m.Base(), 0, windows.MEM_RELEASE); err != nil {
		return err
	}
	m.data = nil
	return nil
}
