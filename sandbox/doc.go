// Package sandbox provides secure execution of untrusted learner code.
//
// The sandbox package implements the execution engine: each request runs
// as an isolated OS process with a fresh working directory, a minimal
// environment, its own process group, an rlimit-enforced memory ceiling,
// bounded stdout/stderr capture, and a wall-clock watchdog that terminates
// the whole process group on timeout or cancellation.
//
// Code misbehavior (crashes, infinite loops, hostile programs) always maps
// to a terminal ExecutionStatus inside the returned ExecutionResult; the
// Go error channel is reserved for environment failures such as spawn
// failure or unavailable isolation.
//
// Isolation on Linux uses process groups plus mount/pid/uts/ipc/user
// namespaces (and a network namespace unless the policy grants network
// access). Syscall filtering via a seccomp helper process would be a
// further hardening step; the current process-level model does not need
// the extra helper binary it requires.
//
// Usage:
//
//	executor := sandbox.NewProcessExecutor(logger, runtimes, sandbox.Isolation{Enabled: true})
//	result, err := executor.Execute(ctx, sandbox.NewExecutionRequest(lang.PY, "print(2+3)", limits))
package sandbox
