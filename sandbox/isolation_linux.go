//go:build linux

package sandbox

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func isolationSupported() bool {
	return true
}

// sysProcAttr always puts the child in its own process group so the whole
// tree can be signalled at once, and ties its lifetime to ours. When
// isolation is enabled the child additionally gets fresh mount, pid, uts,
// ipc, and user namespaces, plus a network namespace unless the policy
// grants network access.
func sysProcAttr(iso Isolation) *syscall.SysProcAttr {
	attr := &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	if !iso.Enabled {
		return attr
	}

	cloneFlags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWUTS | syscall.CLONE_NEWIPC)
	if !iso.AllowNetwork {
		cloneFlags |= syscall.CLONE_NEWNET
	}
	cloneFlags |= syscall.CLONE_NEWUSER

	attr.Cloneflags = cloneFlags
	attr.GidMappingsEnableSetgroups = false
	attr.UidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getuid(),
		Size:        1,
	}}
	attr.GidMappings = []syscall.SysProcIDMap{{
		ContainerID: 0,
		HostID:      os.Getgid(),
		Size:        1,
	}}
	return attr
}

// applyMemoryLimit caps the address space of the already-started process.
// The kernel kills the process on violation; nothing here polls.
func applyMemoryLimit(pid int, maxBytes int64) error {
	if pid <= 0 || maxBytes <= 0 {
		return nil
	}
	limit := unix.Rlimit{Cur: uint64(maxBytes), Max: uint64(maxBytes)}
	return unix.Prlimit(pid, unix.RLIMIT_AS, &limit, nil)
}

func terminateProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGTERM)
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

// peakMemory reports the child's peak resident set in bytes, best-effort.
func peakMemory(state *os.ProcessState) int64 {
	if state == nil {
		return 0
	}
	rusage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok || rusage == nil {
		return 0
	}
	// Maxrss is reported in kilobytes on Linux.
	return rusage.Maxrss * 1024
}
