package codemem

import (
	"github.com/zeebo/blake3"

	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/vmem"
)

type digest struct {
	mapping *vmem.Mapping
	sum     [32]byte
}

func digestOf(m *vmem.Mapping) digest {
	return digest{mapping: m, sum: blake3.Sum256(m.Bytes())}
}

// Verify checks that no published mapping changed since Publish. It needs
// Config.VerifyPublished; without it there is nothing to compare and Verify
// returns nil.
func (a *Arena) Verify() error {
	var modified []uintptr
	for _, d := range a.digests {
		if blake3.Sum256(d.mapping.Bytes()) != d.sum {
			modified = append(modified, d.mapping.Base())
		}
	}
	if len(modified) > 0 {
		return &errors.IntegrityError{Bases: modified}
	}
	return nil
}
