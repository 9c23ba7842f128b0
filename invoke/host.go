package invoke

import (
	"context"
	"sync"

	"go.uber.org/zap"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/trap"
)

// HostFunc is a guest-callable function implemented in Go. Returning an error
// traps at the callee's code ref. A HostFunc may also trap at an address of
// its choosing through the trap.State in ctx, and may re-enter guest code
// through a Boundary using ctx.
type HostFunc func(ctx context.Context, vmctx jitmem.VMContext, args []uint64) error

// Host dispatches code refs to Go functions.
type Host struct {
	mu    sync.RWMutex
	funcs map[jitmem.CodeRef]HostFunc
}

// NewHost creates an empty host function table.
func NewHost() *Host {
	return &Host{funcs: make(map[jitmem.CodeRef]HostFunc)}
}

// Bind routes calls to ref to fn, replacing any previous binding.
func (h *Host) Bind(ref jitmem.CodeRef, fn HostFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[ref] = fn
}

// Unbind removes the binding for ref.
func (h *Host) Unbind(ref jitmem.CodeRef) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.funcs, ref)
}

func (h *Host) lookup(ref jitmem.CodeRef) HostFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.funcs[ref]
}

func (h *Host) RawCall(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef) int32 {
	return h.RawCallWithArgs(ctx, vmctx, callee, nil)
}

func (h *Host) RawCallWithArgs(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef, args []uint64) int32 {
	fn := h.lookup(callee)
	return protect(ctx, func(ctx context.Context, st *trap.State) {
		if fn == nil {
			Logger().Debug("call to unbound code ref",
				zap.Error(errors.NotFound(errors.PhaseCall, "code binding", uintptr(callee))))
			st.Raise(uintptr(callee))
		}
		if err := fn(ctx, vmctx, args); err != nil {
			Logger().Debug("host function trapped",
				zap.Uintptr("callee", uintptr(callee)),
				zap.Error(err))
			st.Raise(uintptr(callee))
		}
	})
}
