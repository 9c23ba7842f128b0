// Package faultroute makes fresh code mappings discoverable by the OS fault
// dispatcher.
//
// Targets that deliver faults through signals need nothing per mapping; the
// Signal strategy is a no-op. Targets whose fault model walks statically
// registered unwind tables (windows/amd64) use the Table strategy, which
// writes a fault-routing record into the first page of every mapping and
// registers the mapping's address range with the OS function table.
//
// The code arena consults the strategy when it opens a mapping, so neither the
// arena nor the call boundary contain platform conditionals.
package faultroute

import (
	"strings"

	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/vmem"
)

// Strategy routes faults raised inside a code mapping to a handler.
type Strategy interface {
	// Name identifies the strategy in logs and configuration.
	Name() string
	// Reserved is the number of bytes at the start of every new mapping the
	// strategy claims for itself. Code is never allocated there.
	Reserved() int
	// Register prepares a fresh, still writable mapping. An error leaves the
	// mapping unsafe to execute.
	Register(m *vmem.Mapping) error
	// Unregister undoes Register before the mapping is released.
	Unregister(m *vmem.Mapping) error
}

// Signal is the strategy for pure signal-based fault delivery.
type Signal struct{}

func (Signal) Name() string                   { return "signal" }
func (Signal) Reserved() int                  { return 0 }
func (Signal) Register(*vmem.Mapping) error   { return nil }
func (Signal) Unregister(*vmem.Mapping) error { return nil }

// Parse selects a strategy by name: "signal", "table" or "default" (empty).
// "table" is rejected where TableAvailable is false.
func Parse(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default(), nil
	case "signal":
		return Signal{}, nil
	case "table":
		if !TableAvailable {
			return nil, errors.Unsupported(errors.PhaseConfig, "table fault routing off windows/amd64")
		}
		return NewTable(nil), nil
	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(name).
			Detail("unknown fault routing strategy %q", name).
			Build()
	}
}
