//go:build linux && amd64

package invoke

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	jitmem "github.com/wippyai/wasm-jitmem"
	"github.com/wippyai/wasm-jitmem/errors"
	"github.com/wippyai/wasm-jitmem/trap"
	"github.com/wippyai/wasm-jitmem/vmem"
)

const (
	// maxGuestThreads bounds the number of threads inside guest code at once.
	maxGuestThreads = 256

	// guestStackSize is the size of each guest stack, guard page included.
	guestStackSize = 512 << 10

	saSiginfo = 0x4
	saOnstack = 0x08000000
)

// guestSlot is the per-thread record shared with faultInterceptor. Assembly
// reads its layout through go_asm.h.
type guestSlot struct {
	tid       int64
	resumeSP  uintptr // non-zero while the thread runs guest code
	savedBP   uintptr
	stackTop  uintptr
	stackBase uintptr
	faultPC   uintptr
	faultAddr uintptr
	signal    int64
}

var (
	guestSlots  [maxGuestThreads]guestSlot
	slotTokens  = make(chan struct{}, maxGuestThreads)
	interceptMu sync.Mutex
	intercepted bool

	// previousHandlers holds the handler each intercepted signal had before,
	// indexed by signal number. Faults outside guest code are passed on.
	previousHandlers [65]uintptr
)

// interceptedSignals are the synchronous signals guest code can raise.
var interceptedSignals = []unix.Signal{unix.SIGSEGV, unix.SIGBUS, unix.SIGILL, unix.SIGFPE}

// kernelSigaction is struct sigaction as rt_sigaction takes it.
type kernelSigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     uint64
}

// callNative runs callee on the slot's guest stack with vmctx in DI and args
// in SI. It returns 1 when callee returns and 0 when faultInterceptor
// resumed it after a fault.
//
//go:noescape
func callNative(slot *guestSlot, vmctx, callee uintptr, args unsafe.Pointer) int32

// guestFaultReturn is where faultInterceptor resumes a faulted thread. It
// shares callNative's frame and is never called from Go.
//
//go:noescape
func guestFaultReturn(slot *guestSlot, vmctx, callee uintptr, args unsafe.Pointer) int32

func faultInterceptor()

func faultInterceptorAddr() uintptr

// Native calls published machine code directly. Guest code runs on a
// dedicated stack with a guard page; a fault inside it (memory access, stack
// overflow, illegal instruction, division) is intercepted, recorded as a trap
// at the faulting instruction and the call returns 0.
//
// Faults are intercepted by chaining in front of the Go runtime's handlers
// for SIGSEGV, SIGBUS, SIGILL and SIGFPE. A later os/signal Notify for one of
// those signals replaces the interceptor.
type Native struct{}

// NewNative installs the fault interceptor on first use and returns the
// native trampolines.
func NewNative() (*Native, error) {
	if err := installInterceptor(); err != nil {
		return nil, err
	}
	return &Native{}, nil
}

func installInterceptor() error {
	interceptMu.Lock()
	defer interceptMu.Unlock()
	if intercepted {
		return nil
	}
	for _, sig := range interceptedSignals {
		if err := interceptSignal(sig); err != nil {
			return err
		}
	}
	intercepted = true
	Logger().Debug("guest fault interceptor installed")
	return nil
}

func interceptSignal(sig unix.Signal) error {
	var old kernelSigaction
	if err := rtSigaction(sig, nil, &old); err != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindUnsupported, err, "read "+unix.SignalName(sig)+" handler")
	}
	if old.handler == faultInterceptorAddr() {
		return nil
	}
	// 0 and 1 are SIG_DFL and SIG_IGN: there is no runtime handler to chain to.
	if old.handler <= 1 || old.flags&(saSiginfo|saOnstack) != saSiginfo|saOnstack {
		return errors.Unsupported(errors.PhaseCall, unix.SignalName(sig)+" is not handled by the Go runtime")
	}

	previousHandlers[sig] = old.handler
	act := old
	act.handler = faultInterceptorAddr()
	if err := rtSigaction(sig, &act, nil); err != nil {
		return errors.Wrap(errors.PhaseCall, errors.KindUnsupported, err, "install "+unix.SignalName(sig)+" interceptor")
	}
	return nil
}

func rtSigaction(sig unix.Signal, act, old *kernelSigaction) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig),
		uintptr(unsafe.Pointer(act)), uintptr(unsafe.Pointer(old)), 8, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// acquireSlot claims a slot for the calling thread, which must be locked.
func acquireSlot() (*guestSlot, error) {
	slotTokens <- struct{}{}
	tid := int64(unix.Gettid())
	for i := range guestSlots {
		s := &guestSlots[i]
		if !atomic.CompareAndSwapInt64(&s.tid, 0, tid) {
			continue
		}
		if s.stackTop == 0 {
			if err := s.allocStack(); err != nil {
				s.release()
				return nil, err
			}
		}
		return s, nil
	}
	<-slotTokens
	panic("BUG: guest slot token held without a free slot")
}

func (s *guestSlot) release() {
	s.faultPC, s.faultAddr, s.signal = 0, 0, 0
	atomic.StoreInt64(&s.tid, 0)
	<-slotTokens
}

// allocStack maps the guest stack. The lowest page stays inaccessible so an
// overflow faults instead of running into other memory.
func (s *guestSlot) allocStack() error {
	mem, err := unix.Mmap(-1, 0, guestStackSize, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_STACK)
	if err != nil {
		return errors.AllocationFailed(guestStackSize, err)
	}
	if err := unix.Mprotect(mem[:vmem.PageSize()], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mem)
		return errors.Wrap(errors.PhaseAllocate, errors.KindProtection, err, "guest stack guard page")
	}
	s.stackBase = uintptr(unsafe.Pointer(&mem[0]))
	s.stackTop = s.stackBase + guestStackSize
	return nil
}

func (s *guestSlot) overflowed() bool {
	return s.faultAddr >= s.stackBase && s.faultAddr < s.stackBase+uintptr(vmem.PageSize())
}

func (n *Native) RawCall(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef) int32 {
	return n.RawCallWithArgs(ctx, vmctx, callee, nil)
}

func (n *Native) RawCallWithArgs(ctx context.Context, vmctx jitmem.VMContext, callee jitmem.CodeRef, args []uint64) int32 {
	_, st := trap.Ensure(ctx)
	if callee == 0 {
		st.RecordTrap(0)
		return 0
	}

	// The interceptor finds the slot by thread id.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	slot, err := acquireSlot()
	if err != nil {
		Logger().Error("guest stack unavailable", zap.Error(err))
		st.RecordTrap(uintptr(callee))
		return 0
	}
	defer slot.release()

	var p unsafe.Pointer
	if len(args) > 0 {
		p = unsafe.Pointer(&args[0])
	}
	status := callNative(slot, uintptr(vmctx), uintptr(callee), p)
	runtime.KeepAlive(args)
	if status != 0 {
		return status
	}

	st.RecordTrap(slot.faultPC)
	Logger().Debug("guest fault intercepted",
		zap.Uintptr("pc", slot.faultPC),
		zap.Uintptr("addr", slot.faultAddr),
		zap.String("signal", unix.SignalName(unix.Signal(slot.signal))),
		zap.Bool("stack_overflow", slot.overflowed()))
	return 0
}
