package codemem

import (
	"unsafe"

	jitmem "github.com/wippyai/wasm-jitmem"
)

// viewAsFunctionBodies reinterprets freshly copied code bytes as function
// bodies. This is the only place raw bytes become code: FunctionBody has the
// size and alignment of a byte, and the returned view aliases b, so it is
// valid exactly as long as the mapping behind b.
func viewAsFunctionBodies(b []byte) []jitmem.FunctionBody {
	if len(b) == 0 {
		return []jitmem.FunctionBody{}
	}
	return unsafe.Slice((*jitmem.FunctionBody)(unsafe.Pointer(unsafe.SliceData(b))), len(b))
}
