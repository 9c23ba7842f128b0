//go:build windows && amd64

package faultroute

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/wippyai/wasm-jitmem/trap"
)

const exceptionContinueSearch = 1

var (
	modkernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procRtlAddFunctionTable    = modkernel32.NewProc("RtlAddFunctionTable")
	procRtlDeleteFunctionTable = modkernel32.NewProc("RtlDeleteFunctionTable")

	handlerOnce sync.Once
	handlerAddr uintptr
)

// TableAvailable reports whether the Table strategy can register mappings
// with the OS on this target.
const TableAvailable = true

// Default returns the Table strategy: windows/amd64 dispatches faults through
// registered unwind tables.
func Default() Strategy {
	return NewTable(nil)
}

type osFunctionTable struct{}

func defaultRegistrar() FunctionTable {
	return osFunctionTable{}
}

func (osFunctionTable) Add(table uintptr, count uint32, base uintptr) error {
	r, _, err := procRtlAddFunctionTable.Call(table, uintptr(count), base)
	if uint8(r) == 0 {
		return fmt.Errorf("RtlAddFunctionTable: %w", err)
	}
	return nil
}

func (osFunctionTable) Delete(table uintptr) error {
	r, _, err := procRtlDeleteFunctionTable.Call(table)
	if uint8(r) == 0 {
		return fmt.Errorf("RtlDeleteFunctionTable: %w", err)
	}
	return nil
}

func defaultHandler() uintptr {
	handlerOnce.Do(func() {
		handlerAddr = windows.NewCallback(exceptionHandler)
	})
	return handlerAddr
}

// exceptionHandler is the language handler named by every record. The
// process-wide vectored interceptor claims guest faults first, so reaching it
// means that interceptor was bypassed. Restore the guard page so a later
// overflow is still detected and let the dispatcher keep searching.
func exceptionHandler(record, establisherFrame, context, dispatcherContext uintptr) uintptr {
	Logger().Error("fault reached table handler; interceptor did not claim it",
		zap.Uintptr("exception_record", record),
		zap.Uintptr("establisher_frame", establisherFrame))
	if err := trap.DefaultGuard().RestoreGuard(); err != nil {
		Logger().Fatal("failed to fix the stack in table handler", zap.Error(err))
	}
	return exceptionContinueSearch
}
