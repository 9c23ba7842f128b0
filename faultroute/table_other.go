//go:build !(windows && amd64)

package faultroute

import (
	"github.com/wippyai/wasm-jitmem/errors"
)

// TableAvailable reports whether the Table strategy can register mappings
// with the OS on this target.
const TableAvailable = false

// Default returns the Signal strategy: faults are delivered through signals
// and no per-mapping registration is needed.
func Default() Strategy {
	return Signal{}
}

type unsupportedFunctionTable struct{}

func defaultRegistrar() FunctionTable {
	return unsupportedFunctionTable{}
}

func (unsupportedFunctionTable) Add(uintptr, uint32, uintptr) error {
	return errors.Unsupported(errors.PhaseRegister, "OS function tables are only available on windows/amd64")
}

func (unsupportedFunctionTable) Delete(uintptr) error {
	return errors.Unsupported(errors.PhaseRelease, "OS function tables are only available on windows/amd64")
}

// defaultHandler has no handler to jump to off windows; the record still
// encodes a well-formed thunk.
func defaultHandler() uintptr {
	return 0
}
