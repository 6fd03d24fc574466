package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tendant/simple-content-annotator/internal/database"
	"github.com/tendant/simple-content-annotator/pkg/pipeline"
)

// SQLAnnotationStore writes annotations into the annotations table
type SQLAnnotationStore struct {
	db *database.DB
}

// NewSQLAnnotationStore creates a new SQL-backed annotation store
func NewSQLAnnotationStore(db *database.DB) *SQLAnnotationStore {
	return &SQLAnnotationStore{db: db}
}

// AppendAnnotation inserts a new annotation. Every call inserts a row; repeated
// triggers for the same content record produce separate annotations.
func (s *SQLAnnotationStore) AppendAnnotation(ctx context.Context, contentID, authorID, text string) (string, error) {
	query := s.db.Rebind(`
		INSERT INTO annotations (content_id, author_id, content)
		VALUES (?, ?, ?)
		RETURNING id
	`)

	var id int64
	if err := s.db.QueryRowContext(ctx, query, contentID, authorID, text).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert annotation: %w", err)
	}

	return strconv.FormatInt(id, 10), nil
}

// ListAnnotations returns the annotations of a content record, oldest first
func (s *SQLAnnotationStore) ListAnnotations(ctx context.Context, contentID string) ([]pipeline.Annotation, error) {
	query := s.db.Rebind(`
		SELECT id, content_id, author_id, content
		FROM annotations
		WHERE content_id = ?
		ORDER BY id
	`)

	rows, err := s.db.QueryContext(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	var annotations []pipeline.Annotation
	for rows.Next() {
		var a pipeline.Annotation
		var id int64
		if err := rows.Scan(&id, &a.ContentID, &a.AuthorID, &a.Content); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		a.ID = strconv.FormatInt(id, 10)
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	return annotations, nil
}
