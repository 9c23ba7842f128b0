// Package jitmem is the memory and failure-handling substrate beneath a
// WebAssembly execution engine.
//
// It manages the pages that hold machine code produced by a code generator and
// captures, propagates and recovers from traps raised while that code runs.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	jitmem/          Root package with the opaque code handle types
//	├── vmem/        OS virtual-memory mappings (mmap, VirtualAlloc, Go heap)
//	├── faultroute/  Fault-routing strategies (signals, registered unwind tables)
//	├── codemem/     Code arena: allocate, copy and publish machine code
//	├── trap/        Per-thread trap/scope state and post-unwind repair
//	├── invoke/      Call boundary and trampolines into published code
//	├── errors/      Structured error types for debugging
//	└── cmd/         Diagnostic tooling
//
// # Quick Start
//
// Hand finished machine code to an arena, publish it, and call it:
//
//	arena := codemem.New()
//	defer arena.Close()
//
//	bodies, err := arena.AllocateCopyOfByteSlices(funcs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	arena.Publish()
//
//	tramps, err := invoke.NewNative()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	b := invoke.New(tramps)
//	if err := b.Call(ctx, vmctx, jitmem.Entry(bodies[0])); err != nil {
//	    var trapErr *errors.TrapError
//	    if errors.As(err, &trapErr) {
//	        fmt.Printf("trapped at %#x\n", trapErr.PC)
//	    }
//	}
//
// # Thread Safety
//
// An Arena has a single writer; publish before any execution thread calls into
// it. Trap state is per execution thread and is never shared: each goroutine
// running guest code carries its own trap.State through its context.
package jitmem
