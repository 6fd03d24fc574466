package detect

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helperInvoker re-runs the test binary as a fake detector; the behaviour is
// chosen with DETECTOR_MODE.
func helperInvoker(mode string) *Invoker {
	inv := NewInvoker(os.Args[0], "-test.run=TestHelperProcess", "--")
	inv.Env = []string{"GO_WANT_HELPER_PROCESS=1", "DETECTOR_MODE=" + mode}
	return inv
}

// TestHelperProcess is not a real test; it is the fake detector body.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	asset := ""
	if len(args) > 1 {
		asset = args[1]
	}

	switch os.Getenv("DETECTOR_MODE") {
	case "ok":
		fmt.Println("image 1/1 " + asset + ": 640x480 1 cat, 12.3ms")
		fmt.Println(`{"detections":[{"label":"cat","confidence":0.97}]}`)
	case "echo":
		fmt.Print(asset)
	case "fail":
		fmt.Fprint(os.Stderr, `{"error": "detection_failed", "message": "boom"}`)
		os.Exit(3)
	case "noisy":
		fmt.Fprintln(os.Stderr, "2025-01-01 [WARNING] half precision disabled")
		fmt.Print(strings.Repeat("x", 4096))
	case "large":
		items := make([]string, 200)
		for i := range items {
			items[i] = fmt.Sprintf(`{"label":"obj%d","confidence":0.5}`, i)
		}
		fmt.Println(`{"detections":[` + strings.Join(items, ",") + `]}`)
	case "hang":
		time.Sleep(time.Minute)
	}
}

func TestInvoker_Success(t *testing.T) {
	t.Parallel()

	execution, err := helperInvoker("ok").Invoke(context.Background(), "/srv/a.png")
	require.NoError(t, err)
	assert.Equal(t, 0, execution.ExitCode)
	assert.Contains(t, execution.Stdout, "/srv/a.png")

	outcome := Parse(execution.Stdout, execution.Stderr)
	assert.Equal(t, Structured([]Item{{Label: "cat", Confidence: 0.97}}), outcome)
}

func TestInvoker_AssetIsLastArgument(t *testing.T) {
	t.Parallel()

	execution, err := helperInvoker("echo").Invoke(context.Background(), "/srv/public/image/post/p 1.png")
	require.NoError(t, err)
	assert.Equal(t, "/srv/public/image/post/p 1.png", execution.Stdout)
}

func TestInvoker_NonZeroExit(t *testing.T) {
	t.Parallel()

	execution, err := helperInvoker("fail").Invoke(context.Background(), "/srv/a.png")
	require.Error(t, err)

	var failed *DetectionFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, 3, failed.ExitCode)
	assert.False(t, failed.TimedOut)
	assert.Contains(t, failed.Stderr, "detection_failed")
	assert.Contains(t, err.Error(), "exited with code 3")

	require.NotNil(t, execution)
	assert.Equal(t, 3, execution.ExitCode)
}

func TestInvoker_SpawnError(t *testing.T) {
	t.Parallel()

	inv := NewInvoker("/nonexistent/detector-binary")
	execution, err := inv.Invoke(context.Background(), "/srv/a.png")
	assert.Nil(t, execution)

	var spawnErr *SpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Equal(t, "/nonexistent/detector-binary", spawnErr.Command)
}

func TestInvoker_TimeoutKillsProcess(t *testing.T) {
	t.Parallel()

	inv := helperInvoker("hang")
	inv.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, err := inv.Invoke(context.Background(), "/srv/a.png")
	elapsed := time.Since(start)

	var failed *DetectionFailedError
	require.True(t, errors.As(err, &failed))
	assert.True(t, failed.TimedOut)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, elapsed, 10*time.Second)
}

func TestInvoker_OutputIsCapped(t *testing.T) {
	t.Parallel()

	inv := helperInvoker("noisy")
	inv.MaxOutputBytes = 1024

	execution, err := inv.Invoke(context.Background(), "/srv/a.png")
	require.NoError(t, err)
	assert.Len(t, execution.Stdout, 1024)
	assert.True(t, execution.Truncated)
	assert.False(t, execution.StderrTruncated)
	assert.Contains(t, execution.Stderr, "[WARNING]")
}

func TestInvoker_LargePayloadIsMarkedIncomplete(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	inv := helperInvoker("large")
	inv.MaxOutputBytes = 1024
	inv.Logger = slog.New(slog.NewJSONHandler(&logs, nil))

	execution, err := inv.Invoke(context.Background(), "/srv/a.png")
	require.NoError(t, err)
	assert.Equal(t, 0, execution.ExitCode)
	assert.Len(t, execution.Stdout, 1024)
	assert.True(t, execution.Incomplete())
	assert.Contains(t, logs.String(), `"msg":"detector output truncated"`)
	assert.Contains(t, logs.String(), `"level":"WARN"`)
}

func TestInvoker_SmallPayloadIsComplete(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	inv := helperInvoker("ok")
	inv.Logger = slog.New(slog.NewJSONHandler(&logs, nil))

	execution, err := inv.Invoke(context.Background(), "/srv/a.png")
	require.NoError(t, err)
	assert.False(t, execution.Incomplete())
	assert.NotContains(t, logs.String(), "truncated")
}

func TestExecution_Incomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		execution Execution
		want      bool
	}{
		{name: "complete", execution: Execution{Stdout: "{}"}},
		{name: "stdout truncated", execution: Execution{Stdout: "{", Truncated: true}, want: true},
		{name: "stderr truncated with stdout", execution: Execution{Stdout: "{}", StderrTruncated: true}},
		{name: "stderr truncated and stdout blank", execution: Execution{Stdout: " \n", StderrTruncated: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.execution.Incomplete())
		})
	}
}

func TestCappedBuffer(t *testing.T) {
	t.Parallel()

	b := &cappedBuffer{limit: 4}
	n, err := b.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = b.Write([]byte("cdef"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = b.Write([]byte("g"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "abcd", b.String())
	assert.True(t, b.truncated)
}
