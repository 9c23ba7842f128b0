//go:build !unix && !windows

package vmem

// Host returns a heap-backed VirtualMemory on platforms without mmap. Code
// placed in it can be staged but not executed natively.
func Host() VirtualMemory {
	return NewHeap()
}
