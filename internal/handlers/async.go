package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/tendant/simple-content-annotator/internal/workflows"
	"github.com/tendant/simple-content-annotator/pkg/pipeline"
)

// Runner submits runs and reports their status
type Runner interface {
	RunAsync(ctx context.Context, req pipeline.AnnotateRequest) (string, error)
	GetStatus(ctx context.Context, runID string) (*pipeline.RunStatus, error)
}

// TriggerRecorder counts triggers per content record
type TriggerRecorder interface {
	Record(ctx context.Context, contentID string, job string) (int, error)
}

// AsyncHandler handles asynchronous annotate requests
type AsyncHandler struct {
	runner Runner
	ledger TriggerRecorder
}

// NewAsyncHandler creates a new async handler. ledger may be nil.
func NewAsyncHandler(runner Runner, ledger TriggerRecorder) *AsyncHandler {
	return &AsyncHandler{
		runner: runner,
		ledger: ledger,
	}
}

// HandleAnnotateAsync handles POST /v1/annotate - enqueues a run and returns immediately
func (h *AsyncHandler) HandleAnnotateAsync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse request
	var req pipeline.AnnotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	// Validate. A missing asset_path is accepted; the run ends with no_asset.
	if req.ContentID == "" {
		http.Error(w, "content_id is required", http.StatusBadRequest)
		return
	}
	if req.Job == "" {
		req.Job = pipeline.JobDetectAndAnnotate
	}

	log.Printf("Enqueueing annotate run: content_id=%s, asset_path=%s", req.ContentID, req.AssetPath)

	// Enqueue run (non-blocking)
	runID, err := h.runner.RunAsync(r.Context(), req)
	if err != nil {
		log.Printf("Failed to enqueue run: %v", err)
		status := http.StatusServiceUnavailable
		if errors.Is(err, workflows.ErrWorkflowNotFound) || errors.Is(err, workflows.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf("Failed to enqueue run: %v", err), status)
		return
	}

	seenCount := 0
	if h.ledger != nil {
		seenCount, err = h.ledger.Record(r.Context(), req.ContentID, req.Job)
		if err != nil {
			log.Printf("[%s] Failed to record trigger: %v", runID, err)
		} else if seenCount > 1 {
			log.Printf("[%s] content_id=%s triggered %d times", runID, req.ContentID, seenCount)
		}
	}

	log.Printf("Run enqueued successfully: run_id=%s", runID)

	// Return immediately with 202 Accepted
	writeJSON(w, http.StatusAccepted, pipeline.AnnotateResponse{
		RunID:            runID,
		TriggerSeenCount: seenCount,
	})
}

// HandleStatus handles GET /v1/runs/{runID} - returns run status
func (h *AsyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Extract runID from URL path (/v1/runs/{runID})
	runID := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if runID == "" || runID == r.URL.Path {
		http.Error(w, "run_id is required", http.StatusBadRequest)
		return
	}

	status, err := h.runner.GetStatus(r.Context(), runID)
	if err != nil {
		log.Printf("Failed to get run status: %v", err)
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// HandleHealth returns health status
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
