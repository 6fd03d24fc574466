package storage

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned when an asset key cannot be mapped inside the store
var ErrInvalidKey = errors.New("invalid asset key")

// AnnotationWriter appends a system-authored comment to a content record
// and returns the new annotation's id
type AnnotationWriter interface {
	AppendAnnotation(ctx context.Context, contentID, authorID, text string) (string, error)
}

// Metadata contains asset metadata
type Metadata struct {
	Size        int64
	ContentType string
}
