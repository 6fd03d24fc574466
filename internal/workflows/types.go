package workflows

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/tendant/simple-content-annotator/internal/dbosruntime"
	"github.com/tendant/simple-content-annotator/internal/queue"
	"github.com/tendant/simple-content-annotator/pkg/pipeline"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.AnnotateRequest
	RunID   string
}

// WorkflowResult contains the result of workflow execution. Fields are plain
// values so DBOS can checkpoint the result.
type WorkflowResult struct {
	Success      bool
	State        string
	Reason       string
	AnnotationID string
	Error        string
	Outputs      map[string]string
}

// Workflow defines the interface for processing workflows
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// WorkflowRunner executes workflows, either inline or detached on a DBOS
// queue or a local worker pool
type WorkflowRunner struct {
	workflows   map[string]Workflow
	dbosRuntime *dbosruntime.Runtime
	pool        *queue.Pool
	tracker     *statusTracker
}

// NewWorkflowRunner creates a new workflow runner with DBOS support.
// Must be called before the runtime is launched.
func NewWorkflowRunner(dbosRuntime *dbosruntime.Runtime) *WorkflowRunner {
	runner := &WorkflowRunner{
		workflows:   make(map[string]Workflow),
		dbosRuntime: dbosRuntime,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWorkflowDBOS)
	}

	return runner
}

// NewLocalWorkflowRunner creates a runner that executes async runs on pool
func NewLocalWorkflowRunner(pool *queue.Pool) *WorkflowRunner {
	return &WorkflowRunner{
		workflows: make(map[string]Workflow),
		pool:      pool,
		tracker:   newStatusTracker(defaultTrackedRuns),
	}
}

// Register registers a workflow
func (r *WorkflowRunner) Register(job string, workflow Workflow) {
	r.workflows[job] = workflow
}

// Run executes a workflow for the given job type synchronously
func (r *WorkflowRunner) Run(wctx *WorkflowContext) (*WorkflowResult, error) {
	workflow, ok := r.workflows[jobOf(wctx.Request)]
	if !ok {
		return &WorkflowResult{
			Success: false,
			Error:   ErrWorkflowNotFound.Error(),
		}, ErrWorkflowNotFound
	}

	return workflow.Execute(wctx)
}

// RunAsync submits a run and returns its id without waiting for it.
// The run never uses ctx; it only bounds the submission itself.
func (r *WorkflowRunner) RunAsync(ctx context.Context, req pipeline.AnnotateRequest) (string, error) {
	if req.ContentID == "" {
		return "", fmt.Errorf("%w: content_id is required", ErrInvalidRequest)
	}
	req.Job = jobOf(req)
	if _, ok := r.workflows[req.Job]; !ok {
		return "", ErrWorkflowNotFound
	}

	// Generate workflow ID for exactly-once semantics
	workflowID := fmt.Sprintf("%s-%s-%d", req.Job, req.ContentID, time.Now().UnixNano())

	switch {
	case r.dbosRuntime != nil:
		// Enqueue workflow with DBOS (generic function with type parameters)
		handle, err := dbos.RunWorkflow[pipeline.AnnotateRequest, *WorkflowResult](
			r.dbosRuntime.Context(),
			r.executeWorkflowDBOS,
			req,
			dbos.WithWorkflowID(workflowID),
			dbos.WithQueue(r.dbosRuntime.QueueName()),
		)
		if err != nil {
			return "", err
		}
		return handle.GetWorkflowID(), nil

	case r.pool != nil:
		r.tracker.add(workflowID, req.ContentID)
		err := r.pool.Submit(workflowID, func(jobCtx context.Context) {
			r.tracker.setRunning(workflowID)
			result, err := r.Run(&WorkflowContext{
				Ctx:     jobCtx,
				Request: req,
				RunID:   workflowID,
			})
			if err != nil {
				log.Printf("[%s] Run failed: %v", workflowID, err)
			}
			r.tracker.finish(workflowID, result)
		})
		if err != nil {
			r.tracker.remove(workflowID)
			return "", fmt.Errorf("failed to enqueue run: %w", err)
		}
		return workflowID, nil

	default:
		return "", ErrNoBackend
	}
}

// executeWorkflowDBOS is the DBOS workflow function that wraps registered workflows
func (r *WorkflowRunner) executeWorkflowDBOS(dbosCtx dbos.DBOSContext, req pipeline.AnnotateRequest) (*WorkflowResult, error) {
	// Get workflow ID from DBOS context
	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return &WorkflowResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	// DBOSContext implements context.Context
	return r.Run(&WorkflowContext{
		Ctx:     dbosCtx,
		Request: req,
		RunID:   workflowID,
	})
}

// GetStatus retrieves the status of a submitted run
func (r *WorkflowRunner) GetStatus(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	if r.dbosRuntime != nil {
		info, err := r.dbosRuntime.GetWorkflowStatus(ctx, runID)
		if err != nil {
			return nil, err
		}
		return &pipeline.RunStatus{
			RunID: info.WorkflowUUID,
			State: dbosRunState(info.Status),
		}, nil
	}

	if r.tracker != nil {
		if status, ok := r.tracker.get(runID); ok {
			return status, nil
		}
	}
	return nil, ErrRunNotFound
}

func jobOf(req pipeline.AnnotateRequest) string {
	if req.Job == "" {
		return pipeline.JobDetectAndAnnotate
	}
	return req.Job
}

// dbosRunState maps a DBOS workflow_status value to a run state
func dbosRunState(status string) string {
	switch strings.ToUpper(status) {
	case "PENDING", "ENQUEUED":
		return pipeline.RunPending
	case "SUCCESS":
		return pipeline.RunSucceeded
	case "ERROR", "CANCELLED", "MAX_RECOVERY_ATTEMPTS_EXCEEDED", "RETRIES_EXCEEDED":
		return pipeline.RunFailed
	default:
		return pipeline.RunRunning
	}
}

const defaultTrackedRuns = 1024

// statusTracker keeps the most recent local runs in memory
type statusTracker struct {
	mu    sync.Mutex
	runs  map[string]*pipeline.RunStatus
	order []string
	limit int
}

func newStatusTracker(limit int) *statusTracker {
	return &statusTracker{
		runs:  make(map[string]*pipeline.RunStatus),
		limit: limit,
	}
}

func (t *statusTracker) add(runID, contentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runs[runID] = &pipeline.RunStatus{RunID: runID, ContentID: contentID, State: pipeline.RunPending}
	t.order = append(t.order, runID)
	for len(t.order) > t.limit {
		delete(t.runs, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *statusTracker) setRunning(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.runs[runID]; ok {
		s.State = pipeline.RunRunning
	}
}

func (t *statusTracker) finish(runID string, result *WorkflowResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.runs[runID]
	if !ok {
		return
	}
	s.State = pipeline.RunFailed
	if result != nil {
		if result.Success {
			s.State = pipeline.RunSucceeded
		}
		s.Terminal = result.State
		s.Reason = result.Reason
	}
}

func (t *statusTracker) remove(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.runs, runID)
	for i, id := range t.order {
		if id == runID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *statusTracker) get(runID string) (*pipeline.RunStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.runs[runID]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}
