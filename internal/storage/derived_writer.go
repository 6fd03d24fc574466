package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-content/pkg/simplecontent"
)

// Annotation derivation constants (match simple-content conventions)
const (
	DerivedTypeAnnotation    = "annotation"
	DerivedVersionAnnotation = 1
)

// DerivedWriter stores annotations as derived content of the content record
// in a simple-content service
type DerivedWriter struct {
	service simplecontent.Service
}

// NewDerivedWriter creates a new derived content annotation writer
func NewDerivedWriter(service simplecontent.Service) *DerivedWriter {
	return &DerivedWriter{
		service: service,
	}
}

// AppendAnnotation uploads the annotation text as derived content and returns
// the derived content ID
func (dw *DerivedWriter) AppendAnnotation(ctx context.Context, contentID, authorID, text string) (string, error) {
	// Parse parent content ID
	parentID, err := uuid.Parse(contentID)
	if err != nil {
		return "", fmt.Errorf("invalid content ID: %w", err)
	}

	variant := fmt.Sprintf("%s_v%d", DerivedTypeAnnotation, DerivedVersionAnnotation)

	derivedContent, err := dw.service.UploadDerivedContent(ctx, simplecontent.UploadDerivedContentRequest{
		ParentID:       parentID,
		DerivationType: DerivedTypeAnnotation,
		Variant:        variant,
		Reader:         strings.NewReader(text),
		FileName:       fmt.Sprintf("%s.txt", variant),
		Tags:           []string{DerivedTypeAnnotation, variant, "author:" + authorID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload derived content: %w", err)
	}

	return derivedContent.ID.String(), nil
}
