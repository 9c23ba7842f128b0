package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAllocate Phase = "allocate" // code arena growth
	PhasePublish  Phase = "publish"  // writable -> read-execute flip
	PhaseRegister Phase = "register" // fault-routing registration
	PhaseCall     Phase = "call"     // guest call boundary
	PhaseRepair   Phase = "repair"   // post-unwind actions
	PhaseRelease  Phase = "release"  // mapping teardown
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation   Kind = "allocation"
	KindProtection   Kind = "protection"
	KindRegistration Kind = "registration"
	KindTrap         Kind = "trap"
	KindScope        Kind = "scope"
	KindGuard        Kind = "guard"
	KindIntegrity    Kind = "integrity"
	KindUnsupported  Kind = "unsupported"
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Addr   uintptr
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Addr != 0 {
		fmt.Fprintf(&b, " at %#x", e.Addr)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Addr sets the address the error refers to
func (b *Builder) Addr(addr uintptr) *Builder {
	b.err.Addr = addr
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed creates an allocation failure error
func AllocationFailed(size int, cause error) *Error {
	return &Error{
		Phase:  PhaseAllocate,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to reserve %d bytes of code memory", size),
		Value:  size,
		Cause:  cause,
	}
}

// ProtectionFailed creates a protection change error for the mapping at addr
func ProtectionFailed(addr uintptr, length int, cause error) *Error {
	return &Error{
		Phase:  PhasePublish,
		Kind:   KindProtection,
		Addr:   addr,
		Detail: fmt.Sprintf("unable to make %d bytes readonly and executable", length),
		Cause:  cause,
	}
}

// RegistrationFailed creates a fault-routing registration error
func RegistrationFailed(addr uintptr, detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Addr:   addr,
		Detail: detail,
		Cause:  cause,
	}
}

// GuardRestoreFailed creates a guard-page restoration error
func GuardRestoreFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseRepair,
		Kind:   KindGuard,
		Detail: "failed to fix the stack after unwinding",
		Cause:  cause,
	}
}

// ScopeViolation creates an error for recovery points left out of order
func ScopeViolation(detail string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindScope,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what string, addr uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Addr:   addr,
		Detail: fmt.Sprintf("%s not found", what),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// TrapError is returned by the call boundary when guest code trapped.
// PC is the last fault address recorded on the calling thread, 0 if none was.
type TrapError struct {
	Message string
	PC      uintptr
}

// NewTrap creates a trap error for the given fault address
func NewTrap(pc uintptr) *TrapError {
	return &TrapError{
		PC:      pc,
		Message: fmt.Sprintf("wasm trap at %#x", pc),
	}
}

func (e *TrapError) Error() string {
	return e.Message
}

// Is reports whether target is a TrapError or a call-phase trap Error
func (e *TrapError) Is(target error) bool {
	switch t := target.(type) {
	case *TrapError:
		return true
	case *Error:
		return t.Phase == PhaseCall && t.Kind == KindTrap
	}
	return false
}

// ErrTrap matches any trap error via errors.Is
var ErrTrap = &Error{Phase: PhaseCall, Kind: KindTrap}

// IntegrityError reports published mappings whose contents changed
type IntegrityError struct {
	Bases []uintptr
}

func (e *IntegrityError) Error() string {
	if len(e.Bases) == 0 {
		return "[publish] integrity: no mappings specified"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[publish] integrity: %d published mapping(s) modified:", len(e.Bases))
	for _, base := range e.Bases {
		fmt.Fprintf(&b, " %#x", base)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *IntegrityError) Is(target error) bool {
	switch t := target.(type) {
	case *IntegrityError:
		return true
	case *Error:
		return t.Phase == PhasePublish && t.Kind == KindIntegrity
	}
	return false
}
