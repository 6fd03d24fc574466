package workflows

import (
	"context"
	"fmt"

	"github.com/tendant/simple-content-annotator/internal/storage"
)

// Publisher appends annotations through the content store and turns every
// failure into a *PublishError
type Publisher struct {
	Writer storage.AnnotationWriter
}

// NewPublisher creates a publisher over writer
func NewPublisher(writer storage.AnnotationWriter) *Publisher {
	return &Publisher{Writer: writer}
}

// Publish writes text as an annotation on contentID, once
func (p *Publisher) Publish(ctx context.Context, contentID, authorID, text string) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			id = ""
			err = &PublishError{ContentID: contentID, Err: fmt.Errorf("annotation writer panicked: %v", r)}
		}
	}()

	if p.Writer == nil {
		return "", &PublishError{ContentID: contentID, Err: fmt.Errorf("no annotation writer configured")}
	}

	id, err = p.Writer.AppendAnnotation(ctx, contentID, authorID, text)
	if err != nil {
		return "", &PublishError{ContentID: contentID, Err: err}
	}
	return id, nil
}
