package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-content-annotator/pkg/pipeline"
)

func TestClient_Annotate(t *testing.T) {
	t.Parallel()

	var got pipeline.AnnotateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/annotate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(pipeline.AnnotateResponse{RunID: "detect_annotate-9-1", TriggerSeenCount: 2})
	}))
	defer server.Close()

	resp, err := New(server.URL+"/").Annotate(context.Background(), pipeline.AnnotateRequest{
		ContentID: "9",
		AuthorID:  "7",
		AssetPath: "/public/image/post/x.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "detect_annotate-9-1", resp.RunID)
	assert.Equal(t, 2, resp.TriggerSeenCount)
	assert.Equal(t, pipeline.JobDetectAndAnnotate, got.Job)
	assert.Equal(t, "/public/image/post/x.png", got.AssetPath)
}

func TestClient_AnnotateRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Failed to enqueue run: queue is full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL).Annotate(context.Background(), pipeline.AnnotateRequest{ContentID: "9"})
	assert.EqualError(t, err, "unexpected status 503: Failed to enqueue run: queue is full")
}

func TestClient_Status(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/runs/detect_annotate-9-1", r.URL.Path)
		json.NewEncoder(w).Encode(pipeline.RunStatus{RunID: "detect_annotate-9-1", State: pipeline.RunSucceeded, Reason: "completed"})
	}))
	defer server.Close()

	status, err := NewWithHTTPClient(server.URL, server.Client()).Status(context.Background(), "detect_annotate-9-1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.RunSucceeded, status.State)
	assert.Equal(t, "completed", status.Reason)
}
