package trap

import (
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-jitmem/errors"
)

// unwinding is the panic value used to resume at a recovery point.
type unwinding struct {
	target *RecoveryPoint
}

// addressedFault is the runtime error produced for a memory fault while
// panic-on-fault is enabled.
type addressedFault interface {
	error
	Addr() uintptr
}

// Protect runs body under a fresh recovery point. It returns 1 when body
// returns normally and 0 when a trap unwound to this recovery point. Panics
// that are not traps propagate after the scope is restored.
func (s *State) Protect(body func()) (ok int32) {
	rp := &RecoveryPoint{}
	prev := s.EnterScope(rp)
	old := debug.SetPanicOnFault(true)
	returned := false
	defer func() {
		debug.SetPanicOnFault(old)
		if returned {
			return
		}
		r := recover()
		if r != nil && s.claim(rp, r) {
			s.LeaveScope(prev)
			ok = 0
			return
		}
		s.resetScope(prev)
		if r != nil {
			panic(r)
		}
	}()

	body()
	s.LeaveScope(prev)
	returned = true
	return 1
}

func (s *State) claim(rp *RecoveryPoint, r any) bool {
	switch v := r.(type) {
	case unwinding:
		return v.target == rp
	case addressedFault:
		if s.scope != rp {
			return false
		}
		s.RecordTrap(v.Addr())
		Logger().Debug("fault intercepted in guest scope",
			zap.Uintptr("addr", v.Addr()),
			zap.Error(v))
		return true
	}
	return false
}

// Unwind resumes at the innermost recovery point. It does not return.
func (s *State) Unwind() {
	if s.scope == nil {
		panic(errors.ScopeViolation("unwind without an active recovery point"))
	}
	panic(unwinding{target: s.scope})
}

// Raise records pc as the fault address and unwinds. It does not return.
func (s *State) Raise(pc uintptr) {
	s.RecordTrap(pc)
	s.Unwind()
}
