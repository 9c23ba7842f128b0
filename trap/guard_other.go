//go:build !windows

package trap

type signalGuard struct{}

// DefaultGuard returns a no-op restorer: signal delivery runs on an alternate
// stack and the kernel keeps the guard page in place.
func DefaultGuard() GuardRestorer {
	return signalGuard{}
}

func (signalGuard) RestoreGuard() error {
	return nil
}
