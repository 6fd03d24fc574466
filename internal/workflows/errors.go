package workflows

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not registered
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidRequest is returned when the request is invalid
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrNoBackend is returned by RunAsync when neither DBOS nor a local pool is configured
	ErrNoBackend = errors.New("no async backend configured")

	// ErrRunNotFound is returned when a run id is unknown
	ErrRunNotFound = errors.New("run not found")
)

// PublishError reports a failed annotation write. It is never retried.
type PublishError struct {
	ContentID string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish annotation for content %s: %v", e.ContentID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
