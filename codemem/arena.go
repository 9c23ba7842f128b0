package codemem

import (
	"go.uber.org/zap"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/faultroute"
	"github.com/wippyai/wasm-jitmem/vmem"
)

// Arena is the memory manager for executable code.
type Arena struct {
	memory   vmem.VirtualMemory
	routing  faultroute.Strategy
	abort    AbortFunc
	current  *vmem.Mapping
	mappings []*vmem.Mapping
	digests  []digest

	position     int
	published    int
	minimumChunk int
	verify       bool
}

// New creates an arena backed by host memory and the platform fault routing.
func New() *Arena {
	return NewWithConfig(nil)
}

// NewWithConfig creates an arena with custom configuration.
func NewWithConfig(cfg *Config) *Arena {
	a := &Arena{
		current:      &vmem.Mapping{},
		minimumChunk: DefaultMinimumChunk,
	}
	if cfg != nil {
		a.memory = cfg.Memory
		a.routing = cfg.Routing
		a.abort = cfg.Abort
		a.verify = cfg.VerifyPublished
		if cfg.MinimumChunk > 0 {
			a.minimumChunk = cfg.MinimumChunk
		}
	}
	if a.memory == nil {
		a.memory = vmem.Host()
	}
	if a.routing == nil {
		a.routing = faultroute.Default()
	}
	if a.abort == nil {
		a.abort = fatal
	}
	return a
}

func fatal(msg string, err error) {
	Logger().Fatal(msg, zap.Error(err))
}

// Allocate returns size writable bytes that can be made executable later by
// Publish. The range is owned by the caller until the arena is closed.
func (a *Arena) Allocate(size int) ([]byte, error) {
	if size < 0 {
		return nil, errors.InvalidInput(errors.PhaseAllocate, "negative allocation size")
	}
	if a.current.Len()-a.position < size {
		if err := a.grow(size); err != nil {
			return nil, err
		}
	}
	old := a.position
	a.position += size
	return a.current.Bytes()[old:a.position:a.position], nil
}

// grow closes the current mapping and opens one that fits size bytes after
// the routing reservation.
func (a *Arena) grow(size int) error {
	reserved := a.routing.Reserved()
	want := max(a.minimumChunk, size+reserved)

	m, err := a.memory.Reserve(want)
	if err != nil {
		return errors.AllocationFailed(want, err)
	}

	if err := a.routing.Register(m); err != nil {
		a.abort("unable to register code mapping for fault routing", err)
		_ = a.memory.Release(m)
		return err
	}

	if a.current.Len() != 0 {
		a.mappings = append(a.mappings, a.current)
	}
	a.current = m
	a.position = reserved

	Logger().Debug("opened code mapping",
		zap.Uintptr("base", m.Base()),
		zap.Int("len", m.Len()),
		zap.Int("request", size),
		zap.String("routing", a.routing.Name()))
	return nil
}

// AllocateCopyOfByteSlice allocates enough memory to hold a copy of code and
// copies it in.
func (a *Arena) AllocateCopyOfByteSlice(code []byte) ([]jitmem.FunctionBody, error) {
	dst, err := a.Allocate(len(code))
	if err != nil {
		return nil, err
	}
	copy(dst, code)
	return viewAsFunctionBodies(dst), nil
}

// AllocateCopyOfByteSlices allocates one contiguous block for all of codes and
// copies each into its sub-range in order. The returned views share the block.
func (a *Arena) AllocateCopyOfByteSlices(codes [][]byte) ([][]jitmem.FunctionBody, error) {
	total := 0
	for _, c := range codes {
		total += len(c)
	}
	block, err := a.Allocate(total)
	if err != nil {
		return nil, err
	}

	result := make([][]jitmem.FunctionBody, 0, len(codes))
	tail := block
	for _, c := range codes {
		n := copy(tail, c)
		result = append(result, viewAsFunctionBodies(tail[:n:n]))
		tail = tail[n:]
	}
	return result, nil
}

// Publish makes all allocated memory read-execute. Mappings already published
// are left alone. A mapping that cannot be made executable aborts the process.
func (a *Arena) Publish() {
	if a.current.Len() != 0 {
		a.mappings = append(a.mappings, a.current)
	}
	a.current = &vmem.Mapping{}
	a.position = 0

	for _, m := range a.mappings[a.published:] {
		if m.Len() == 0 {
			continue
		}
		if err := a.memory.Protect(m, vmem.ReadExecute); err != nil {
			a.abort("unable to make memory readonly and executable",
				errors.ProtectionFailed(m.Base(), m.Len(), err))
			return
		}
		if a.verify {
			a.digests = append(a.digests, digestOf(m))
		}
	}

	if n := len(a.mappings) - a.published; n > 0 {
		Logger().Debug("published code mappings",
			zap.Int("count", n),
			zap.Int("total", len(a.mappings)))
	}
	a.published = len(a.mappings)
}

// Published returns the number of mappings that are read-execute.
func (a *Arena) Published() int {
	return a.published
}

// Mappings returns the closed mappings in allocation order. The current,
// still open mapping is not included.
func (a *Arena) Mappings() []*vmem.Mapping {
	return a.mappings
}

// Owner returns the mapping containing ref, or nil.
func (a *Arena) Owner(ref jitmem.CodeRef) *vmem.Mapping {
	addr := uintptr(ref)
	if a.current.Contains(addr) {
		return a.current
	}
	for _, m := range a.mappings {
		if m.Contains(addr) {
			return m
		}
	}
	return nil
}

// IsPublished reports whether ref points into a read-execute mapping.
func (a *Arena) IsPublished(ref jitmem.CodeRef) bool {
	addr := uintptr(ref)
	for _, m := range a.mappings[:a.published] {
		if m.Contains(addr) {
			return true
		}
	}
	return false
}

// Stats describes arena usage.
type Stats struct {
	Mappings  int // closed mappings plus the open one, if any
	Published int
	Reserved  int // bytes mapped
	Pending   int // bytes issued in the open mapping
}

// Stats returns current arena usage.
func (a *Arena) Stats() Stats {
	s := Stats{
		Mappings:  len(a.mappings),
		Published: a.published,
		Pending:   a.position,
	}
	for _, m := range a.mappings {
		s.Reserved += m.Len()
	}
	if a.current.Len() != 0 {
		s.Mappings++
		s.Reserved += a.current.Len()
	}
	return s
}

// Close unregisters and releases every mapping. Views handed out by the
// arena are invalid afterwards.
func (a *Arena) Close() error {
	all := a.mappings
	if a.current.Len() != 0 {
		all = append(all, a.current)
	}

	var firstErr error
	for _, m := range all {
		base := m.Base()
		if err := a.routing.Unregister(m); err != nil {
			Logger().Warn("failed to unregister code mapping",
				zap.Uintptr("base", base),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := a.memory.Release(m); err != nil {
			Logger().Warn("failed to release code mapping",
				zap.Uintptr("base", base),
				zap.Error(err))
			if firstErr == nil {
				firstErr = errors.Wrap(errors.PhaseRelease, errors.KindAllocation, err, "release code mapping")
			}
		}
	}

	a.mappings = nil
	a.digests = nil
	a.current = &vmem.Mapping{}
	a.position = 0
	a.published = 0
	return firstErr
}
