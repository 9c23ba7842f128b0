package invoke

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"

	jitmem "github.com/wippyai/wasm-jitmem"
	jerrors "github.com/wippyai/wasm-jitmem/errors"
)

// trapModule exports "run", whose body is unreachable, and
// "add" (i32, i32) -> i32.
var trapModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: () -> (), (i32 i32) -> i32
	0x01, 0x0a, 0x02, 0x60, 0x00, 0x00, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// func
	0x03, 0x03, 0x02, 0x00, 0x01,
	// export
	0x07, 0x0d, 0x02,
	0x03, 'r', 'u', 'n', 0x00, 0x00,
	0x03, 'a', 'd', 'd', 0x00, 0x01,
	// code
	0x0a, 0x0d, 0x02,
	0x03, 0x00, 0x00, 0x0b,
	0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func newWazeroBoundary(t *testing.T) (*Boundary, map[string]jitmem.CodeRef) {
	t.Helper()
	ctx := context.Background()

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { _ = r.Close(ctx) })

	mod, err := r.Instantiate(ctx, trapModule)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}

	refs := map[string]jitmem.CodeRef{"run": 0x1000, "add": 0x2000}
	w := NewWazero()
	if n := w.BindExports(mod, func(name string) jitmem.CodeRef { return refs[name] }, "run", "add", "missing"); n != 2 {
		t.Fatalf("BindExports = %d, want 2", n)
	}
	return New(w), refs
}

func TestWazero_Add(t *testing.T) {
	b, refs := newWazeroBoundary(t)

	args := []uint64{40, 2}
	if err := b.CallWithArgs(context.Background(), 0, refs["add"], args); err != nil {
		t.Fatalf("CallWithArgs = %v", err)
	}
	if uint32(args[0]) != 42 {
		t.Errorf("result = %d, want 42", args[0])
	}
}

func TestWazero_UnreachableTraps(t *testing.T) {
	b, refs := newWazeroBoundary(t)

	err := b.Call(context.Background(), 0, refs["run"])
	if pc := trapPC(t, err); pc != uintptr(refs["run"]) {
		t.Errorf("PC = %#x, want %#x", pc, refs["run"])
	}
	if err.Error() != "wasm trap at 0x1000" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestWazero_ShortBuffer(t *testing.T) {
	b, refs := newWazeroBoundary(t)

	// Missing parameters read as zero; the result still lands in the buffer.
	args := []uint64{5}
	if err := b.CallWithArgs(context.Background(), 0, refs["add"], args); err != nil {
		t.Fatalf("CallWithArgs = %v", err)
	}
	if args[0] != 5 {
		t.Errorf("result = %d, want 5", args[0])
	}
}

func TestWazero_Unbound(t *testing.T) {
	w := NewWazero()
	if pc := trapPC(t, New(w).Call(context.Background(), 0, 0x3000)); pc != 0x3000 {
		t.Errorf("PC = %#x, want 0x3000", pc)
	}
}

func TestWazero_BindExport(t *testing.T) {
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { _ = r.Close(ctx) })

	mod, err := r.Instantiate(ctx, trapModule)
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}

	w := NewWazero()
	if err := w.BindExport(mod, "add", 0x2000); err != nil {
		t.Fatalf("BindExport(add) = %v", err)
	}

	err = w.BindExport(mod, "missing", 0x4000)
	if !errors.Is(err, jerrors.New(jerrors.PhaseCall, jerrors.KindNotFound).Build()) {
		t.Fatalf("BindExport(missing) = %v, want not_found", err)
	}
	if pc := trapPC(t, New(w).Call(ctx, 0, 0x4000)); pc != 0x4000 {
		t.Errorf("PC = %#x, want 0x4000", pc)
	}
}
