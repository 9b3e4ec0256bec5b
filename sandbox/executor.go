package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/jaclearn/runbox/lang"
)

// ErrSandboxUnavailable is returned when isolation is required by policy
// but cannot be established on this platform. Callers must surface this as
// a policy rejection, never fall back to unsandboxed execution.
var ErrSandboxUnavailable = errors.New("sandbox isolation unavailable on this platform")

// ErrNoRuntime is returned when no run command is configured for the
// requested language.
var ErrNoRuntime = errors.New("no runtime configured for language")

// Executor runs one program in isolation and reports a structured result.
//
// Execute never returns an error for code misbehavior (crashes, infinite
// loops, hostile programs): those outcomes map to a terminal Status inside
// the result. The error return is reserved for environment failures such
// as spawn failure or unavailable isolation.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// Isolation describes how the spawned process is confined.
type Isolation struct {
	Enabled      bool
	AllowNetwork bool
}

// ProcessExecutor implements Executor by running each request as an
// isolated OS process: fresh working directory, minimal environment,
// its own process group, rlimit-enforced memory ceiling, and a wall-clock
// watchdog that terminates the whole group.
type ProcessExecutor struct {
	logger         *zap.Logger
	runtimes       map[lang.ID]string
	isolation      Isolation
	gracePeriod    time.Duration
	workdirPattern string
}

// ProcessExecutorOption defines a functional option for ProcessExecutor
type ProcessExecutorOption func(*ProcessExecutor)

// WithGracePeriod sets how long a terminated process group is given after
// SIGTERM before it is force-killed.
func WithGracePeriod(d time.Duration) ProcessExecutorOption {
	return func(e *ProcessExecutor) {
		e.gracePeriod = d
	}
}

// WithWorkdirPattern sets the os.MkdirTemp pattern for per-execution
// working directories.
func WithWorkdirPattern(pattern string) ProcessExecutorOption {
	return func(e *ProcessExecutor) {
		e.workdirPattern = pattern
	}
}

// NewProcessExecutor creates a ProcessExecutor. runtimes maps each language
// to its shell-style run command template ({src} expands to the source file
// path); languages without a template are rejected with ErrNoRuntime.
func NewProcessExecutor(logger *zap.Logger, runtimes map[lang.ID]string, isolation Isolation, opts ...ProcessExecutorOption) *ProcessExecutor {
	executor := &ProcessExecutor{
		logger:         logger,
		runtimes:       runtimes,
		isolation:      isolation,
		gracePeriod:    100 * time.Millisecond,
		workdirPattern: "runbox-exec-*",
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs the request to a terminal state.
//
//nolint:funlen // One execution lifecycle reads better as a single sequence.
func (e *ProcessExecutor) Execute(ctx context.Context, req ExecutionRequest) (ExecutionResult, error) {
	if err := req.Limits.Validate(); err != nil {
		return ExecutionResult{}, fmt.Errorf("invalid resource limits: %w", err)
	}

	if e.isolation.Enabled && !isolationSupported() {
		return ExecutionResult{}, ErrSandboxUnavailable
	}

	template := e.runtimes[req.Language]
	if strings.TrimSpace(template) == "" {
		return ExecutionResult{}, fmt.Errorf("%w: %s", ErrNoRuntime, req.Language)
	}

	tempDir, err := os.MkdirTemp("", e.workdirPattern)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to create workdir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	srcPath := filepath.Join(tempDir, req.Language.SourceFile())
	if writeErr := os.WriteFile(srcPath, []byte(req.Code), 0o600); writeErr != nil {
		return ExecutionResult{}, fmt.Errorf("failed to write source file: %w", writeErr)
	}

	argv, err := buildCommand(template, srcPath)
	if err != nil {
		return ExecutionResult{}, err
	}

	stdout := newLimitedBuffer(req.Limits.MaxOutputSize)
	stderr := newLimitedBuffer(req.Limits.MaxOutputSize)

	//nolint:gosec // Running the configured runtime over user code is the point.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = tempDir
	cmd.Env = minimalEnv(tempDir)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = sysProcAttr(e.isolation)
	if req.Stdin != "" {
		cmd.Stdin = strings.NewReader(req.Stdin)
	}

	e.logger.Debug("spawning sandboxed process",
		zap.String("request_id", req.ID.String()),
		zap.String("language", req.Language.String()),
		zap.Duration("max_execution_time", req.Limits.MaxExecutionTime))

	start := time.Now()
	if startErr := cmd.Start(); startErr != nil {
		return ExecutionResult{}, fmt.Errorf("failed to spawn process: %w", startErr)
	}
	pid := cmd.Process.Pid

	if limErr := applyMemoryLimit(pid, req.Limits.MaxMemory); limErr != nil {
		killProcessGroup(pid)
		_ = cmd.Wait()
		return ExecutionResult{}, fmt.Errorf("failed to apply memory limit: %w", limErr)
	}

	var timedOut, cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(req.Limits.MaxExecutionTime):
			timedOut.Store(true)
			e.terminate(pid)
		case <-ctx.Done():
			cancelled.Store(true)
			e.terminate(pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	elapsed := time.Since(start)

	status := StatusCompleted
	exitCode := exitCodeFromState(waitErr, cmd.ProcessState)
	switch {
	case cancelled.Load():
		status = StatusCancelled
	case timedOut.Load():
		status = StatusTimedOut
	case exitCode != 0:
		status = StatusFailed
	}

	// Reported wall time is capped at the limit once the watchdog fired.
	wallTime := elapsed
	if timedOut.Load() && wallTime > req.Limits.MaxExecutionTime {
		wallTime = req.Limits.MaxExecutionTime
	}

	result := ExecutionResult{
		Status:          status,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitCode:        exitCode,
		WallTime:        wallTime,
		MemoryUsed:      peakMemory(cmd.ProcessState),
		TruncatedOutput: stdout.Truncated() || stderr.Truncated(),
	}

	e.logger.Info("execution finished",
		zap.String("request_id", req.ID.String()),
		zap.String("language", req.Language.String()),
		zap.String("status", string(result.Status)),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("wall_time", result.WallTime),
		zap.Bool("truncated_output", result.TruncatedOutput))

	return result, nil
}

// terminate sends SIGTERM to the process group, then force-kills whatever
// is left after the grace period. Killing the group, not just the parent,
// keeps runaway children from outliving the run.
func (e *ProcessExecutor) terminate(pid int) {
	terminateProcessGroup(pid)
	time.AfterFunc(e.gracePeriod, func() {
		killProcessGroup(pid)
	})
}

func exitCodeFromState(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// buildCommand expands the run command template and splits it shell-style.
func buildCommand(template, srcPath string) ([]string, error) {
	expanded := strings.ReplaceAll(template, "{src}", srcPath)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run command template: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("run command is empty after expansion")
	}
	return fields, nil
}

// minimalEnv is the restricted environment handed to the child: no ambient
// credentials, HOME pinned inside the scratch directory.
func minimalEnv(workdir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + workdir,
		"LANG=C.UTF-8",
	}
}
