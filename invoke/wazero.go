package invoke

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/trap"
)

// Wazero dispatches code refs to functions of instantiated wazero modules.
// Any error returned by wazero, including a Wasm trap, traps at the callee's
// code ref. vmctx is not forwarded; the wazero module instance is the context.
type Wazero struct {
	mu    sync.RWMutex
	funcs map[jitmem.CodeRef]api.Function
}

// NewWazero creates an empty wazero function table.
func NewWazero() *Wazero {
	return &Wazero{funcs: make(map[jitmem.CodeRef]api.Function)}
}

// Bind routes calls to ref to fn, replacing any previous binding.
func (w *Wazero) Bind(ref jitmem.CodeRef, fn api.Function) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.funcs[ref] = fn
}

// BindExport binds the function mod exports as name to ref.
func (w *Wazero) BindExport(mod api.Module, name string, ref jitmem.CodeRef) error {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return errors.NotFound(errors.PhaseCall, "export "+name, uintptr(ref))
	}
	w.Bind(ref, fn)
	return nil
}

// BindExports binds every name in exports of mod to the code ref returned by
// refFor. Missing exports are skipped. It returns the number of functions
// bound.
func (w *Wazero) BindExports(mod api.Module, refFor func(name string) jitmem.CodeRef, exports ...string) int {
	n := 0
	for _, name := range exports {
		if err := w.BindExport(mod, name, refFor(name)); err != nil {
			Logger().Debug("export skipped", zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Unbind removes the binding for ref.
func (w *Wazero) Unbind(ref jitmem.CodeRef) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.funcs, ref)
}

func (w *Wazero) lookup(ref jitmem.CodeRef) api.Function {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.funcs[ref]
}

func (w *Wazero) RawCall(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef) int32 {
	return w.RawCallWithArgs(ctx, vmctx, callee, nil)
}

func (w *Wazero) RawCallWithArgs(ctx context.Context, _ jitmem.VMContext, callee jitmem.CodeRef, args []uint64) int32 {
	fn := w.lookup(callee)
	return protect(ctx, func(ctx context.Context, st *trap.State) {
		if fn == nil {
			Logger().Debug("call to unbound code ref",
				zap.Error(errors.NotFound(errors.PhaseCall, "code binding", uintptr(callee))))
			st.Raise(uintptr(callee))
		}

		def := fn.Definition()
		need := max(len(def.ParamTypes()), len(def.ResultTypes()))
		stack := args
		if len(stack) < need {
			stack = make([]uint64, need)
			copy(stack, args)
		}

		if err := fn.CallWithStack(ctx, stack); err != nil {
			Logger().Debug("wazero call trapped",
				zap.Uintptr("callee", uintptr(callee)),
				zap.String("func", def.DebugName()),
				zap.Error(err))
			st.Raise(uintptr(callee))
		}

		if len(stack) != len(args) {
			copy(args, stack)
		}
	})
}
