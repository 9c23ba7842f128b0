package jitmem

import "unsafe"

// FunctionBody is one opaque unit of published machine code. Slices of
// FunctionBody are only produced by the code arena.
type FunctionBody byte

// CodeRef is an opaque handle to an entry point inside a code mapping.
type CodeRef uintptr

// VMContext is the opaque execution context handed to guest code.
type VMContext uintptr

// Entry returns the entry point of body, or 0 for an empty body.
func Entry(body []FunctionBody) CodeRef {
	if len(body) == 0 {
		return 0
	}
	return CodeRef(uintptr(unsafe.Pointer(&body[0])))
}
