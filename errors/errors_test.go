package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhasePublish,
				Kind:   KindProtection,
				Addr:   0x7f0000,
				Detail: "cannot flip",
			},
			contains: []string{"[publish]", "protection", "at 0x7f0000", "cannot flip"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseCall,
				Kind:  KindScope,
			},
			contains: []string{"[call]", "scope"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseAllocate,
				Kind:   KindAllocation,
				Detail: "mmap failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[allocate]", "allocation", "mmap failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_NoAddr(t *testing.T) {
	err := &Error{Phase: PhaseCall, Kind: KindScope}
	if strings.Contains(err.Error(), " at ") {
		t.Errorf("zero address should not be rendered, got %q", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseAllocate,
		Kind:  KindAllocation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhasePublish,
		Kind:  KindProtection,
		Addr:  0x1000,
	}

	if !err.Is(&Error{Phase: PhasePublish, Kind: KindProtection}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseAllocate, Kind: KindProtection}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhasePublish, Kind: KindAllocation}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhasePublish, Kind: KindProtection}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRegister, KindRegistration).
		Addr(0x4000).
		Value(3).
		Cause(cause).
		Detail("table %d of %d", 1, 2).
		Build()

	if err.Phase != PhaseRegister {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseRegister)
	}
	if err.Kind != KindRegistration {
		t.Errorf("Kind = %v, want %v", err.Kind, KindRegistration)
	}
	if err.Addr != 0x4000 {
		t.Errorf("Addr = %#x, want 0x4000", err.Addr)
	}
	if err.Value != 3 {
		t.Errorf("Value = %v, want 3", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "table 1 of 2" {
		t.Errorf("Detail = %v, want 'table 1 of 2'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(0x20000, errors.New("ENOMEM"))
		if err.Kind != KindAllocation || err.Phase != PhaseAllocate {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
		if !strings.Contains(err.Detail, "131072") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("ProtectionFailed", func(t *testing.T) {
		err := ProtectionFailed(0x1000, 4096, nil)
		if err.Kind != KindProtection {
			t.Errorf("Kind = %v, want %v", err.Kind, KindProtection)
		}
		if err.Addr != 0x1000 {
			t.Errorf("Addr = %#x, want 0x1000", err.Addr)
		}
	})

	t.Run("GuardRestoreFailed", func(t *testing.T) {
		err := GuardRestoreFailed(nil)
		if err.Phase != PhaseRepair || err.Kind != KindGuard {
			t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("ScopeViolation", func(t *testing.T) {
		err := ScopeViolation("outer scope left first")
		if err.Kind != KindScope {
			t.Errorf("Kind = %v, want %v", err.Kind, KindScope)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseCall, "code binding", 0x10)
		if err.Kind != KindNotFound || err.Addr != 0x10 {
			t.Errorf("Kind/Addr = %v/%#x", err.Kind, err.Addr)
		}
	})
}

func TestTrapError(t *testing.T) {
	tests := []struct {
		name string
		pc   uintptr
		want string
	}{
		{"recorded", 0xdead, "wasm trap at 0xdead"},
		{"cleared", 0, "wasm trap at 0x0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTrap(tt.pc)
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
			if err.PC != tt.pc {
				t.Errorf("PC = %#x, want %#x", err.PC, tt.pc)
			}
			if !errors.Is(err, ErrTrap) {
				t.Error("errors.Is should match ErrTrap")
			}
			var te *TrapError
			if !errors.As(error(err), &te) {
				t.Error("errors.As should extract TrapError")
			}
		})
	}
}

func TestIntegrityError(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		err := &IntegrityError{}
		if !strings.Contains(err.Error(), "no mappings specified") {
			t.Errorf("unexpected message: %s", err.Error())
		}
	})

	t.Run("lists bases", func(t *testing.T) {
		err := &IntegrityError{Bases: []uintptr{0x1000, 0x20000}}
		msg := err.Error()
		for _, s := range []string{"2 published", "0x1000", "0x20000"} {
			if !strings.Contains(msg, s) {
				t.Errorf("message %q does not contain %q", msg, s)
			}
		}
		if !errors.Is(err, &Error{Phase: PhasePublish, Kind: KindIntegrity}) {
			t.Error("errors.Is should match publish/integrity")
		}
	})
}
