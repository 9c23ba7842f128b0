//go:build windows

package trap

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var (
	modmsvcrt        = windows.NewLazySystemDLL("msvcrt.dll")
	procResetStkOflw = modmsvcrt.NewProc("_resetstkoflw")
)

type resetStkOflw struct{}

// DefaultGuard returns the restorer backed by the C runtime's _resetstkoflw,
// which must run on the thread whose guard page was consumed.
func DefaultGuard() GuardRestorer {
	return resetStkOflw{}
}

func (resetStkOflw) RestoreGuard() error {
	if err := procResetStkOflw.Find(); err != nil {
		return err
	}
	r, _, err := procResetStkOflw.Call()
	if r == 0 {
		return fmt.Errorf("_resetstkoflw: %w", err)
	}
	return nil
}
