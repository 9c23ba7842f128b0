package codemem

import (
	"github.com/wippyai/wasm-jitmem/faultroute"
	"github.com/wippyai/wasm-jitmem/vmem"
)

// DefaultMinimumChunk is the smallest mapping an arena opens.
const DefaultMinimumChunk = 0x10000

// AbortFunc terminates the process after an unrecoverable failure. It must
// not return.
type AbortFunc func(msg string, err error)

// Config holds configuration for arena creation
type Config struct {
	// Memory reserves and protects mappings. Defaults to vmem.Host().
	Memory vmem.VirtualMemory

	// Routing prepares each new mapping for fault delivery.
	// Defaults to faultroute.Default().
	Routing faultroute.Strategy

	// Abort is invoked when a mapping cannot be made executable or cannot be
	// registered for fault routing. Defaults to a zap Fatal.
	Abort AbortFunc

	// MinimumChunk is the smallest mapping size in bytes.
	// 0 means DefaultMinimumChunk.
	MinimumChunk int

	// VerifyPublished records a digest of every mapping at publish time so
	// Verify can detect writes after publish.
	VerifyPublished bool
}
