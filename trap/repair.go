package trap

import (
	"github.com/wippyai/wasm-jitmem/errors"
)

// RunPostUnwindActions runs once after every failed guest call, before the
// error reaches the caller. A scheduled guard-page restoration that fails
// aborts: overflow detection on this thread would stay disabled. The
// fix-stack flag is cleared either way.
func (s *State) RunPostUnwindActions() {
	if !s.fixStack {
		return
	}
	defer func() {
		s.fixStack = false
	}()

	Logger().Debug("fixing stack")
	if err := s.guard.RestoreGuard(); err != nil {
		s.abort("failed to fix the stack after unwinding", errors.GuardRestoreFailed(err))
		return
	}
	Logger().Debug("fixed stack")
}

// GuardRestorer reinstates the stack guard page consumed by an overflow.
type GuardRestorer interface {
	RestoreGuard() error
}

// GuardFunc adapts a function to GuardRestorer.
type GuardFunc func() error

func (f GuardFunc) RestoreGuard() error {
	return f()
}
