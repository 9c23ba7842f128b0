//go:build unix

package vmem

import (
	"golang.org/x/sys/unix"

	"github.com/wippyai/wasm-jitmem/errors"
)

type hostMemory struct{}

// Host returns the mmap/mprotect backed VirtualMemory.
func Host() VirtualMemory {
	return hostMemory{}
}

func (hostMemory) Reserve(minBytes int) (*Mapping, error) {
	if minBytes <= 0 {
		return nil, errors.InvalidInput(errors.PhaseAllocate, "reservation size must be positive")
	}
	// Anonymous as this is not an actual file, private as it is in-process memory.
	data, err := unix.Mmap(-1, 0, RoundUp(minBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return NewMapping(data, ReadWrite), nil
}

func (hostMemory) Protect(m *Mapping, p Protection) error {
	if m.Len() == 0 {
		return nil
	}
	prot := unix.PROT_READ | unix.PROT_WRITE
	if p == ReadExecute {
		prot = unix.PROT_READ | unix.PROT_EXEC
	}
	if err := unix.Mprotect(m.data, prot); err != nil {
		return err
	}
	m.SetProtection(p)
	return nil
}

func (hostMemory) Release(m *Mapping) error {
	if m.Len() == 0 {
		return nil
	}
	if err := unix.Munmap(m.data); err != nil {
		return err
	}
	m.data = nil
	return nil
}
