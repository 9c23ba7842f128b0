package invoke

import (
	"context"

	"go.uber.org/zap"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/trap"
)

// Trampolines enter guest code. Both forms return non-zero on success and zero
// when the call trapped; a trap has already been recorded in the trap.State
// carried by ctx when they return.
type Trampolines interface {
	RawCall(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef) int32
	// RawCallWithArgs passes args as the argument buffer. On success the
	// callee's results are left in args.
	RawCallWithArgs(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef, args []uint64) int32
}

// Boundary is the guest call boundary. It turns the raw status of a
// trampoline into an error, running post-unwind repair first.
type Boundary struct {
	tramps Trampolines
}

// New creates a call boundary over tramps.
func New(tramps Trampolines) *Boundary {
	return &Boundary{tramps: tramps}
}

// Call invokes callee with vmctx. A trap returns *errors.TrapError.
func (b *Boundary) Call(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef) error {
	ctx, st := trap.Ensure(ctx)
	if b.tramps.RawCall(ctx, vmctx, callee) != 0 {
		return nil
	}
	return b.trapped(st, callee)
}

// CallWithArgs invokes callee with vmctx and the argument buffer args. On
// success the results are in args.
func (b *Boundary) CallWithArgs(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef, args []uint64) error {
	ctx, st := trap.Ensure(ctx)
	if b.tramps.RawCallWithArgs(ctx, vmctx, callee, args) != 0 {
		return nil
	}
	return b.trapped(st, callee)
}

func (b *Boundary) trapped(st *trap.State, callee jitmem.CodeRef) error {
	st.RunPostUnwindActions()
	err := errors.NewTrap(st.TakeTrapPC())
	Logger().Debug("guest call trapped",
		zap.Uintptr("callee", uintptr(callee)),
		zap.Uintptr("pc", err.PC))
	return err
}

// protect runs body under a recovery point of the State carried by ctx.
func protect(ctx context.Context, body func(ctx context.Context, st *trap.State)) int32 {
	ctx, st := trap.Ensure(ctx)
	return st.Protect(func() {
		body(ctx, st)
	})
}
