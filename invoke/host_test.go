package invoke

import (
	"context"
	"errors"
	"testing"

	jitmem "github.com/wippyai/wasm-jitmem"
	jerrors "github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/trap"
)

func trapPC(t *testing.T, err error) uintptr {
	t.Helper()
	var te *jerrors.TrapError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *TrapError", err)
	}
	return te.PC
}

func TestHost_Calls(t *testing.T) {
	const (
		addRef   jitmem.CodeRef = 0x1000
		failRef  jitmem.CodeRef = 0x2000
		raiseRef jitmem.CodeRef = 0x3000
		vmRef    jitmem.CodeRef = 0x4000
	)

	host := NewHost()
	host.Bind(addRef, func(_ context.Context, _ jitmem.VMContext, args []uint64) error {
		args[0] = args[0] + args[1]
		return nil
	})
	host.Bind(failRef, func(context.Context, jitmem.VMContext, []uint64) error {
		return errors.New("integer divide by zero")
	})
	host.Bind(raiseRef, func(ctx context.Context, _ jitmem.VMContext, _ []uint64) error {
		st, _ := trap.FromContext(ctx)
		st.Raise(0xbeef)
		return nil
	})
	host.Bind(vmRef, func(_ context.Context, vmctx jitmem.VMContext, args []uint64) error {
		args[0] = uint64(vmctx)
		return nil
	})
	b := New(host)

	tests := []struct {
		name    string
		callee  jitmem.CodeRef
		args    []uint64
		want    uint64
		trapped bool
		pc      uintptr
	}{
		{name: "results in buffer", callee: addRef, args: []uint64{40, 2}, want: 42},
		{name: "vmctx forwarded", callee: vmRef, args: []uint64{0}, want: 0x77},
		{name: "error traps at callee", callee: failRef, args: []uint64{1}, trapped: true, pc: uintptr(failRef)},
		{name: "explicit raise", callee: raiseRef, trapped: true, pc: 0xbeef},
		{name: "unbound ref", callee: 0x9000, trapped: true, pc: 0x9000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.CallWithArgs(context.Background(), 0x77, tt.callee, tt.args)
			if tt.trapped {
				if pc := trapPC(t, err); pc != tt.pc {
					t.Errorf("PC = %#x, want %#x", pc, tt.pc)
				}
				return
			}
			if err != nil {
				t.Fatalf("CallWithArgs = %v", err)
			}
			if tt.args[0] != tt.want {
				t.Errorf("result = %d, want %d", tt.args[0], tt.want)
			}
		})
	}
}

func TestHost_Unbind(t *testing.T) {
	host := NewHost()
	host.Bind(1, func(context.Context, jitmem.VMContext, []uint64) error { return nil })
	b := New(host)

	if err := b.Call(context.Background(), 0, 1); err != nil {
		t.Fatalf("Call = %v", err)
	}
	host.Unbind(1)
	if pc := trapPC(t, b.Call(context.Background(), 0, 1)); pc != 1 {
		t.Errorf("PC = %#x, want 0x1", pc)
	}
}

func TestHost_ReentrantCallSharesState(t *testing.T) {
	host := NewHost()
	b := New(host)
	st := trap.NewState()
	ctx := trap.NewContext(context.Background(), st)

	var inner error
	var innerState *trap.State
	host.Bind(0x10, func(context.Context, jitmem.VMContext, []uint64) error {
		return errors.New("inner trap")
	})
	host.Bind(0x20, func(ctx context.Context, vmctx jitmem.VMContext, _ []uint64) error {
		innerState, _ = trap.FromContext(ctx)
		inner = b.Call(ctx, vmctx, 0x10)
		return nil
	})

	if err := b.Call(ctx, 0, 0x20); err != nil {
		t.Fatalf("outer call = %v, want nil", err)
	}
	if innerState != st {
		t.Error("nested call did not share the caller's state")
	}
	if pc := trapPC(t, inner); pc != 0x10 {
		t.Errorf("inner PC = %#x, want 0x10", pc)
	}
	if st.Scope() != nil {
		t.Error("scope left active after the outer call")
	}
}

func TestHost_ForeignPanicPropagates(t *testing.T) {
	host := NewHost()
	host.Bind(1, func(context.Context, jitmem.VMContext, []uint64) error {
		panic("boom")
	})
	st := trap.NewState()
	ctx := trap.NewContext(context.Background(), st)

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("recovered %v, want boom", r)
			}
		}()
		_ = New(host).Call(ctx, 0, 1)
	}()

	if st.Scope() != nil {
		t.Error("scope left active after a foreign panic")
	}
}
