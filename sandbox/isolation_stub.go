//go:build !linux

package sandbox

import (
	"os"
	"syscall"
)

// Non-Linux builds cannot establish isolation; executors configured with
// Isolation.Enabled fail closed with ErrSandboxUnavailable instead of
// silently running unsandboxed.
func isolationSupported() bool {
	return false
}

func sysProcAttr(Isolation) *syscall.SysProcAttr {
	return nil
}

func applyMemoryLimit(int, int64) error {
	return nil
}

func terminateProcessGroup(pid int) {
	signalProcess(pid, os.Interrupt)
}

func killProcessGroup(pid int) {
	signalProcess(pid, os.Kill)
}

func signalProcess(pid int, sig os.Signal) {
	if pid <= 0 {
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Signal(sig)
}

func peakMemory(*os.ProcessState) int64 {
	return 0
}
