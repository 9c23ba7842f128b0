//go:build !(linux && amd64)

package invoke

import (
	"context"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/trap"
)

// Native calls published machine code directly. Not available on this
// platform.
type Native struct{}

// NewNative reports that native trampolines are unsupported here.
func NewNative() (*Native, error) {
	return nil, errors.Unsupported(errors.PhaseCall, "native trampolines require linux/amd64")
}

func (n *Native) RawCall(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef) int32 {
	return n.RawCallWithArgs(ctx, vmctx, callee, nil)
}

func (n *Native) RawCallWithArgs(ctx context.Context, _ jitmem.VMContext, callee jitmem.CodeRef, _ []uint64) int32 {
	return protect(ctx, func(_ context.Context, st *trap.State) {
		st.Raise(uintptr(callee))
	})
}
