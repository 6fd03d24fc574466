package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrContentNotFound is returned when the platform has no such content record
var ErrContentNotFound = errors.New("content record not found")

// HTTPAssetReader reads a content record's attached asset path from the
// platform's API
type HTTPAssetReader struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPAssetReader creates a new HTTP-based asset path reader
func NewHTTPAssetReader(baseURL string) *HTTPAssetReader {
	return &HTTPAssetReader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetAssetPath returns the asset path stored on the content record, or "" if
// the record has no asset
func (r *HTTPAssetReader) GetAssetPath(ctx context.Context, contentID, userID string) (string, error) {
	endpoint := fmt.Sprintf("%s/posts/%s", r.baseURL, url.PathEscape(contentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if userID != "" {
		req.Header.Set("userid", userID)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrContentNotFound, contentID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			FilePath *string `json:"filePath"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode content record: %w", err)
	}
	if body.Data.FilePath == nil {
		return "", nil
	}
	return *body.Data.FilePath, nil
}
