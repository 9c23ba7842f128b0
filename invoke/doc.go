// Package invoke is the boundary between the embedder and guest code.
//
// A Boundary calls through a Trampolines implementation and converts its raw
// status into an error:
//
//	status != 0  success, results (if any) are in the argument buffer
//	status == 0  trap: post-unwind repair runs, then the recorded fault
//	             address is read and cleared into an *errors.TrapError
//
// The trap.State used for a call is taken from the context, or created on the
// first call of a goroutine, and the derived context is passed on to the
// trampolines so guest code that calls back into the host shares it.
//
// Three trampoline backends are provided:
//
//	Native   published machine code on a guarded guest stack; faults in
//	         guest code become traps (linux/amd64)
//	Host     Go functions bound to code refs
//	Wazero   wazero functions bound to code refs
package invoke
