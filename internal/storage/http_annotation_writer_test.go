package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAnnotationWriter_AppendAnnotation(t *testing.T) {
	t.Parallel()

	var gotPath, gotUser, gotContent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser = r.Header.Get("userid")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotContent = body["commentContent"]

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"write_comment_success","data":{"insertId":42}}`))
	}))
	defer server.Close()

	writer := NewHTTPAnnotationWriter(server.URL)
	id, err := writer.AppendAnnotation(context.Background(), "9", "1", "Automated analysis result: cat (97.0%).")
	require.NoError(t, err)

	assert.Equal(t, "42", id)
	assert.Equal(t, "/posts/9/comments", gotPath)
	assert.Equal(t, "1", gotUser)
	assert.Equal(t, "Automated analysis result: cat (97.0%).", gotContent)
}

func TestHTTPAnnotationWriter_ResponseIDShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "comment_id", body: `{"data":{"comment_id":"c-7"}}`, want: "c-7"},
		{name: "top level id", body: `{"id":"abc"}`, want: "abc"},
		{name: "no id still succeeds", body: `{"data":{}}`, want: ""},
		{name: "non json body still succeeds", body: `created`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			id, err := NewHTTPAnnotationWriter(server.URL).AppendAnnotation(context.Background(), "9", "1", "x")
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestHTTPAnnotationWriter_Errors(t *testing.T) {
	t.Parallel()

	t.Run("content record deleted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"not_a_single_post"}`, http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewHTTPAnnotationWriter(server.URL).AppendAnnotation(context.Background(), "9", "1", "x")
		assert.ErrorContains(t, err, "status 404")
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := NewHTTPAnnotationWriter(url).AppendAnnotation(context.Background(), "9", "1", "x")
		assert.ErrorContains(t, err, "failed to create comment")
	})
}
