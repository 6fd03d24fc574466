package detect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutputTruncated is returned when detector output exceeded the capture
// limit and cannot be trusted
var ErrOutputTruncated = errors.New("detector output truncated")

// SpawnError is returned when the detection tool could not be started at all
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start detector %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// DetectionFailedError is returned when the tool ran but did not exit cleanly
type DetectionFailedError struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *DetectionFailedError) Error() string {
	var b strings.Builder
	if e.TimedOut {
		b.WriteString("detector timed out")
	} else {
		fmt.Fprintf(&b, "detector exited with code %d", e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *DetectionFailedError) Unwrap() error {
	return e.Err
}
