// Package errors provides structured error types for the wasm-jitmem library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the address it refers to, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAllocate, errors.KindAllocation).
//		Addr(base).
//		Detail("reserve %d bytes", n).
//		Cause(osErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(0x10000, osErr)
//	err := errors.ProtectionFailed(base, length, osErr)
//
// Guest traps surface as *TrapError, whose message has the form
// "wasm trap at <address>". All errors implement the standard error interface
// and support errors.Is/As.
package errors
