package detect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one detector run
	DefaultTimeout = 30 * time.Second

	// DefaultMaxOutputBytes caps each captured stream
	DefaultMaxOutputBytes = 1 << 20

	// waitDelay is how long Wait keeps copying output after the process
	// was killed before it force-closes the pipes.
	waitDelay = 2 * time.Second
)

// Execution is the captured result of one detector process
type Execution struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// Truncated and StderrTruncated are set when the stream went past
	// MaxOutputBytes and only its head was kept.
	Truncated       bool
	StderrTruncated bool
}

// Incomplete reports whether the text Parse would read was cut off: stdout,
// or stderr when stdout is blank and the raw fallback would use it.
func (e *Execution) Incomplete() bool {
	if e.Truncated {
		return true
	}
	return e.StderrTruncated && strings.TrimSpace(e.Stdout) == ""
}

// Invoker runs the external detection tool as a child process.
//
// The asset path is appended as the last positional argument, so
// Command "python3" with Args ["AI/run_detection.py"] runs
// `python3 AI/run_detection.py <asset>`.
type Invoker struct {
	Command        string
	Args           []string
	Env            []string // extra KEY=VALUE pairs on top of the worker's environment
	Timeout        time.Duration
	MaxOutputBytes int
	Logger         *slog.Logger
}

// NewInvoker creates an invoker with default limits
func NewInvoker(command string, args ...string) *Invoker {
	return &Invoker{
		Command:        command,
		Args:           args,
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// Invoke runs the detector against assetPath and waits for it to exit.
//
// A process that cannot be started yields *SpawnError. A non-zero exit or a
// timeout yields *DetectionFailedError together with the captured Execution.
// The child is always reaped before Invoke returns.
func (inv *Invoker) Invoke(ctx context.Context, assetPath string) (*Execution, error) {
	timeout := inv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := inv.MaxOutputBytes
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, 0, len(inv.Args)+1)
	args = append(args, inv.Args...)
	args = append(args, assetPath)

	cmd := exec.CommandContext(runCtx, inv.Command, args...)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.WaitDelay = waitDelay

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: inv.Command, Err: err}
	}
	waitErr := cmd.Wait()

	execution := &Execution{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		ExitCode:        -1,
		Duration:        time.Since(started),
		Truncated:       stdout.truncated,
		StderrTruncated: stderr.truncated,
	}
	if cmd.ProcessState != nil {
		execution.ExitCode = cmd.ProcessState.ExitCode()
	}
	logger := inv.logger()
	if stdout.truncated || stderr.truncated {
		logger.Warn("detector output truncated",
			"limit_bytes", limit,
			"stdout", stdout.truncated,
			"stderr", stderr.truncated,
		)
	}
	logStderr(logger, execution.Stderr)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return execution, &DetectionFailedError{
			ExitCode: execution.ExitCode,
			Stderr:   execution.Stderr,
			TimedOut: true,
			Err:      runCtx.Err(),
		}
	}
	if waitErr != nil {
		failed := &DetectionFailedError{
			ExitCode: execution.ExitCode,
			Stderr:   execution.Stderr,
			Err:      waitErr,
		}
		if ctx.Err() != nil {
			failed.Err = ctx.Err()
		}
		return execution, failed
	}
	return execution, nil
}

func (inv *Invoker) logger() *slog.Logger {
	if inv.Logger == nil {
		return slog.Default()
	}
	return inv.Logger
}

// logStderr maps Python log levels on stderr to slog levels
func logStderr(logger *slog.Logger, stderr string) {
	if stderr == "" {
		return
	}

	scanner := bufio.NewScanner(strings.NewReader(stderr))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case containsAny(line, "[ERROR]", "[CRITICAL]", "Traceback"):
			logger.Error("detector error", "log", line)
		case containsAny(line, "[WARNING]", "[WARN]"):
			logger.Warn("detector warning", "log", line)
		default:
			logger.Debug("detector log", "log", line)
		}
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// cappedBuffer keeps the first limit bytes and silently drops the rest so the
// child never sees a write error.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
