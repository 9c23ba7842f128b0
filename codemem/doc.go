// Package codemem is the code arena: it multiplexes function-code allocations
// across a growing sequence of virtual-memory mappings and publishes them as
// read-execute.
//
// # Lifecycle
//
//	arena := codemem.New()
//	defer arena.Close()
//
//	bodies, err := arena.AllocateCopyOfByteSlices(funcs) // writable
//	if err != nil {
//	    return err
//	}
//	arena.Publish() // every pending mapping becomes read-execute
//
// Allocate a batch, publish once, then call only into published ranges. Bytes
// handed out by an arena must never be written after Publish.
//
// # Growth
//
// When the current mapping cannot fit a request it is closed and a new mapping
// of max(MinimumChunk, size+reserved) is opened, so one allocation never spans
// two mappings. reserved is what the fault-routing strategy claims at the start
// of every new mapping (one page for faultroute.Table, nothing for Signal).
//
// # Thread Safety
//
// An Arena has no internal locking. Allocation and Publish must come from a
// single writer; published ranges may be executed from any thread.
package codemem
