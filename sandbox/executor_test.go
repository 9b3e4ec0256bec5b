package sandbox

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jaclearn/runbox/lang"
)

// shellExecutor binds the py language to the system shell so executor
// behavior can be tested without any real language runtime installed.
func shellExecutor(t *testing.T) *ProcessExecutor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process executor tests require a POSIX shell")
	}
	return NewProcessExecutor(
		zaptest.NewLogger(t),
		map[lang.ID]string{lang.PY: "sh {src}"},
		Isolation{},
	)
}

func shellRequest(code string, limits ResourceLimits) ExecutionRequest {
	return NewExecutionRequest(lang.PY, code, limits)
}

func TestProcessExecutorCompleted(t *testing.T) {
	executor := shellExecutor(t)

	result, err := executor.Execute(context.Background(), shellRequest("printf '5\\n'", defaultLimits()))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "5\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.TruncatedOutput)
	assert.Greater(t, result.WallTime, time.Duration(0))
}

func TestProcessExecutorDeterminism(t *testing.T) {
	executor := shellExecutor(t)
	req := shellRequest("printf 'a\\n'; printf 'b\\n' >&2; exit 7", defaultLimits())

	first, err := executor.Execute(context.Background(), req)
	require.NoError(t, err)
	second, err := executor.Execute(context.Background(), req)
	require.NoError(t, err)

	// Only timing fields may differ between identical runs.
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Stdout, second.Stdout)
	assert.Equal(t, first.Stderr, second.Stderr)
	assert.Equal(t, first.ExitCode, second.ExitCode)
}

func TestProcessExecutorFailed(t *testing.T) {
	executor := shellExecutor(t)

	result, err := executor.Execute(context.Background(), shellRequest("exit 3", defaultLimits()))
	require.NoError(t, err, "non-zero exit is a result, not an error")

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 3, result.ExitCode)
}

func TestProcessExecutorTimedOut(t *testing.T) {
	executor := shellExecutor(t)
	limits := defaultLimits()
	limits.MaxExecutionTime = 200 * time.Millisecond

	start := time.Now()
	result, err := executor.Execute(context.Background(), shellRequest("while true; do :; done", limits))
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, StatusTimedOut, result.Status)
	assert.LessOrEqual(t, result.WallTime, 250*time.Millisecond, "reported wall time is capped at the limit")
	assert.Less(t, elapsed, 2*time.Second, "the watchdog must not let the loop run on")
}

func TestProcessExecutorKillsChildren(t *testing.T) {
	executor := shellExecutor(t)
	limits := defaultLimits()
	limits.MaxExecutionTime = 200 * time.Millisecond

	// The parent spawns a child and loops; the whole process group must
	// die, not just the parent.
	start := time.Now()
	result, err := executor.Execute(context.Background(), shellRequest("sleep 30 & while true; do :; done", limits))
	require.NoError(t, err)

	assert.Equal(t, StatusTimedOut, result.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProcessExecutorOutputTruncation(t *testing.T) {
	executor := shellExecutor(t)
	limits := defaultLimits()
	limits.MaxOutputSize = 1024

	code := "i=0; while [ $i -lt 1000 ]; do echo 0123456789; i=$((i+1)); done"
	result, err := executor.Execute(context.Background(), shellRequest(code, limits))
	require.NoError(t, err)

	// Exceeding the output cap never kills the process: a chatty but
	// finishing program still completes cleanly.
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.TruncatedOutput)
	assert.Equal(t, 1024, len(result.Stdout))
}

func TestProcessExecutorMemoryLimit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("the memory ceiling is enforced via prlimit on linux only")
	}
	executor := shellExecutor(t)
	limits := defaultLimits()
	limits.MaxMemory = 64 * 1024 * 1024

	// Growing a shell variable far past the address-space cap makes the
	// kernel refuse the allocation; the program dies on its own, nothing
	// here polls or kills it.
	code := `x=$(head -c 268435456 /dev/zero | tr '\0' 'x'); echo "allocated ${#x}"`
	result, err := executor.Execute(context.Background(), shellRequest(code, limits))
	require.NoError(t, err, "a memory kill is a result, not an error")

	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEqual(t, 0, result.ExitCode)
	assert.NotContains(t, result.Stdout, "allocated")
}

func TestProcessExecutorCancelled(t *testing.T) {
	executor := shellExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := executor.Execute(ctx, shellRequest("sleep 30", defaultLimits()))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, result.Status)
}

func TestProcessExecutorStdin(t *testing.T) {
	executor := shellExecutor(t)

	req := shellRequest("cat", defaultLimits())
	req.Stdin = "hello stdin"
	result, err := executor.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "hello stdin", result.Stdout)
}

func TestProcessExecutorEnvironmentFailures(t *testing.T) {
	t.Run("NoRuntimeConfigured", func(t *testing.T) {
		executor := shellExecutor(t)
		_, err := executor.Execute(context.Background(), NewExecutionRequest(lang.JAC, "x = 1", defaultLimits()))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoRuntime)
	})

	t.Run("SpawnFailure", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("process executor tests require a POSIX shell")
		}
		executor := NewProcessExecutor(
			zaptest.NewLogger(t),
			map[lang.ID]string{lang.PY: "definitely-not-a-real-binary {src}"},
			Isolation{},
		)
		_, err := executor.Execute(context.Background(), shellRequest("x", defaultLimits()))
		require.Error(t, err)
	})

	t.Run("InvalidLimits", func(t *testing.T) {
		executor := shellExecutor(t)
		_, err := executor.Execute(context.Background(), shellRequest("x", ResourceLimits{}))
		require.Error(t, err)
	})
}

func TestBuildCommand(t *testing.T) {
	t.Run("ExpandsSourcePlaceholder", func(t *testing.T) {
		argv, err := buildCommand("python3 {src}", "/tmp/work/main.py")
		require.NoError(t, err)
		assert.Equal(t, []string{"python3", "/tmp/work/main.py"}, argv)
	})

	t.Run("QuotedArguments", func(t *testing.T) {
		argv, err := buildCommand(`runner --flag "a b" {src}`, "/tmp/main.jac")
		require.NoError(t, err)
		assert.Equal(t, []string{"runner", "--flag", "a b", "/tmp/main.jac"}, argv)
	})

	t.Run("EmptyTemplate", func(t *testing.T) {
		_, err := buildCommand("   ", "/tmp/main.py")
		require.Error(t, err)
	})
}
