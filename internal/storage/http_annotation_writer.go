package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPAnnotationWriter appends annotations through the platform's comment API
// (POST /posts/{post_id}/comments). The annotation is authored by the content
// record's author, passed in the userid header the way the platform expects.
type HTTPAnnotationWriter struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPAnnotationWriter creates a new HTTP-based annotation writer
func NewHTTPAnnotationWriter(baseURL string) *HTTPAnnotationWriter {
	return &HTTPAnnotationWriter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// AppendAnnotation posts a comment and returns its id
func (w *HTTPAnnotationWriter) AppendAnnotation(ctx context.Context, contentID, authorID, text string) (string, error) {
	jsonData, err := json.Marshal(map[string]string{
		"commentContent": text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/posts/%s/comments", w.baseURL, url.PathEscape(contentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("userid", authorID)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("create comment failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		ID   any `json:"id"`
		Data struct {
			CommentID any `json:"comment_id"`
			InsertID  any `json:"insertId"`
		} `json:"data"`
	}
	// The comment exists once the platform answered 2xx; a missing id only
	// leaves the annotation unreferenced.
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Comment created for content %s but response was not JSON: %v", contentID, err)
		return "", nil
	}

	for _, candidate := range []any{result.Data.CommentID, result.Data.InsertID, result.ID} {
		if id := idString(candidate); id != "" {
			return id, nil
		}
	}
	log.Printf("Comment created for content %s but response carried no id", contentID)
	return "", nil
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}
