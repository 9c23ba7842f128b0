package trap

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-jitmem/errors"
)

// AbortFunc terminates the process after an unrecoverable failure. It must
// not return.
type AbortFunc func(msg string, err error)

// Config holds configuration for a State.
type Config struct {
	// Guard restores the stack guard page after an overflow unwind.
	// Defaults to the platform restorer.
	Guard GuardRestorer
	// Abort is invoked when guard restoration fails. Defaults to a zap Fatal.
	Abort AbortFunc
}

// State is the trap/scope state of one execution thread. It is not safe for
// concurrent use.
type State struct {
	scope    *RecoveryPoint
	guard    GuardRestorer
	abort    AbortFunc
	trapPC   uintptr
	fixStack bool
}

// NewState creates a State with platform defaults.
func NewState() *State {
	return NewStateWithConfig(nil)
}

// NewStateWithConfig creates a State with custom configuration.
func NewStateWithConfig(cfg *Config) *State {
	s := &State{}
	if cfg != nil {
		s.guard = cfg.Guard
		s.abort = cfg.Abort
	}
	if s.guard == nil {
		s.guard = DefaultGuard()
	}
	if s.abort == nil {
		s.abort = fatal
	}
	return s
}

func fatal(msg string, err error) {
	Logger().Fatal(msg, zap.Error(err))
}

// RecordTrap records pc as the last fault address.
func (s *State) RecordTrap(pc uintptr) {
	s.trapPC = pc
}

// TakeTrapPC returns the last recorded fault address and clears it.
func (s *State) TakeTrapPC() uintptr {
	pc := s.trapPC
	s.trapPC = 0
	return pc
}

// FixStackAfterUnwinding schedules guard-page restoration for the next
// RunPostUnwindActions.
func (s *State) FixStackAfterUnwinding() {
	Logger().Debug("scheduling stack fix after unwinding")
	s.fixStack = true
}

// FixStackPending reports whether guard-page restoration is scheduled.
func (s *State) FixStackPending() bool {
	return s.fixStack
}

// RecoveryPoint identifies where control resumes after a trap. Its zero value
// is ready to use; a recovery point may be active in one scope at a time.
type RecoveryPoint struct {
	parent *RecoveryPoint
	active bool
}

// EnterScope makes rp the innermost scope and returns the previous one, which
// the caller passes to LeaveScope on every exit path.
func (s *State) EnterScope(rp *RecoveryPoint) *RecoveryPoint {
	if rp == nil {
		panic(errors.ScopeViolation("enter with a nil recovery point"))
	}
	if rp.active {
		panic(errors.ScopeViolation("recovery point is already active"))
	}
	prev := s.scope
	rp.parent = prev
	rp.active = true
	s.scope = rp
	return prev
}

// Scope returns the innermost active recovery point, or nil.
func (s *State) Scope() *RecoveryPoint {
	return s.scope
}

// LeaveScope restores prev. Leaving anything but the innermost scope panics.
func (s *State) LeaveScope(prev *RecoveryPoint) {
	cur := s.scope
	if cur == nil {
		panic(errors.ScopeViolation("leave without an active scope"))
	}
	if cur.parent != prev {
		panic(errors.ScopeViolation("scope left out of order: an inner scope is still active"))
	}
	cur.parent = nil
	cur.active = false
	s.scope = prev
}

// resetScope drops every scope entered after prev. Used when a panic that is
// not ours passes through a recovery point.
func (s *State) resetScope(prev *RecoveryPoint) {
	for cur := s.scope; cur != nil && cur != prev; {
		next := cur.parent
		cur.parent = nil
		cur.active = false
		cur = next
	}
	s.scope = prev
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying st.
func NewContext(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, ctxKey{}, st)
}

// FromContext returns the State carried by ctx.
func FromContext(ctx context.Context) (*State, bool) {
	st, ok := ctx.Value(ctxKey{}).(*State)
	return st, ok && st != nil
}

// Ensure returns ctx and its State, creating and attaching a fresh State on
// first use.
func Ensure(ctx context.Context) (context.Context, *State) {
	if st, ok := FromContext(ctx); ok {
		return ctx, st
	}
	st := NewState()
	return NewContext(ctx, st), st
}
