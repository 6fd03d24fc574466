package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/tendant/simple-content-annotator/internal/detect"
	"github.com/tendant/simple-content-annotator/internal/metrics"
	"github.com/tendant/simple-content-annotator/internal/storage"
	"github.com/tendant/simple-content-annotator/internal/timeutil"
)

// AssetLocator maps the platform's asset path to a file the detector can read
type AssetLocator interface {
	Resolve(key string) (string, error)
	GetMetadata(ctx context.Context, key string) (*storage.Metadata, error)
}

// Detector runs the external detection tool against one asset
type Detector interface {
	Invoke(ctx context.Context, assetPath string) (*detect.Execution, error)
}

// AssetPreparer optionally rewrites an asset before detection. The returned
// cleanup func is called once the detector has finished.
type AssetPreparer interface {
	Prepare(path string) (string, func(), error)
}

// AnnotateWorkflow waits for a content record's asset, runs detection on it
// and appends the summary as an annotation. Failures are absorbed: Execute
// always returns a result and a nil error.
type AnnotateWorkflow struct {
	assets    AssetLocator
	waiter    *AssetWaiter
	detector  Detector
	publisher *Publisher
	preparer  AssetPreparer
	clock     timeutil.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// AnnotateOption configures an AnnotateWorkflow
type AnnotateOption func(*AnnotateWorkflow)

// WithPreparer downscales assets before detection
func WithPreparer(p AssetPreparer) AnnotateOption {
	return func(w *AnnotateWorkflow) { w.preparer = p }
}

// WithLogger sets the logger for terminal events
func WithLogger(l *slog.Logger) AnnotateOption {
	return func(w *AnnotateWorkflow) { w.logger = l }
}

// WithMetrics records run outcomes
func WithMetrics(m *metrics.Metrics) AnnotateOption {
	return func(w *AnnotateWorkflow) { w.metrics = m }
}

// WithClock sets the clock used for run durations
func WithClock(c timeutil.Clock) AnnotateOption {
	return func(w *AnnotateWorkflow) { w.clock = c }
}

// NewAnnotateWorkflow creates the detect-and-annotate workflow
func NewAnnotateWorkflow(assets AssetLocator, waiter *AssetWaiter, detector Detector, publisher *Publisher, opts ...AnnotateOption) *AnnotateWorkflow {
	w := &AnnotateWorkflow{
		assets:    assets,
		waiter:    waiter,
		detector:  detector,
		publisher: publisher,
		clock:     timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Name returns the workflow name
func (w *AnnotateWorkflow) Name() string {
	return "AnnotateWorkflow"
}

// annotateRun is the private state of one Execute call
type annotateRun struct {
	state  State
	reason Reason
	err    error

	assetPath    string
	asset        *storage.Metadata
	cleanup      func()
	execution    *detect.Execution
	outcome      detect.Outcome
	parsed       bool
	summary      string
	annotationID string

	started   time.Time
	assetWait time.Duration
}

func (r *annotateRun) abort(reason Reason, err error) {
	r.state = StateAborted
	r.reason = reason
	r.err = err
}

// Execute runs the state machine to a terminal state
func (w *AnnotateWorkflow) Execute(wctx *WorkflowContext) (result *WorkflowResult, err error) {
	ctx := wctx.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	run := &annotateRun{state: StateStart, started: w.clock.Now()}

	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("annotate workflow panicked",
				"run_id", wctx.RunID,
				"state", string(run.state),
				"stack", string(debug.Stack()),
			)
			run.abort(ReasonPanic, fmt.Errorf("panic in %s: %v", run.state, rec))
		}
		if run.cleanup != nil {
			run.cleanup()
		}
		result = w.finish(wctx, run)
		err = nil
	}()

	for !run.state.Terminal() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			run.abort(ReasonCanceled, ctxErr)
			break
		}
		w.step(ctx, wctx, run)
	}
	return nil, nil
}

func (w *AnnotateWorkflow) step(ctx context.Context, wctx *WorkflowContext, run *annotateRun) {
	req := wctx.Request

	switch run.state {
	case StateStart:
		if !req.HasAsset() {
			run.abort(ReasonNoAsset, nil)
			return
		}
		run.state = StateAwaitingAsset

	case StateAwaitingAsset:
		path, err := w.assets.Resolve(req.AssetPath)
		if err != nil {
			run.abort(ReasonAssetNotFound, err)
			return
		}
		waitStart := w.clock.Now()
		found := w.waiter.Wait(ctx, path)
		run.assetWait = w.clock.Since(waitStart)
		if !found {
			if ctx.Err() != nil {
				run.abort(ReasonCanceled, ctx.Err())
				return
			}
			run.abort(ReasonAssetNotFound, fmt.Errorf("asset %s not found after %d rechecks", path, w.waiter.MaxAttempts))
			return
		}
		meta, err := w.assets.GetMetadata(ctx, req.AssetPath)
		if err != nil {
			run.abort(ReasonAssetNotFound, err)
			return
		}
		run.asset = meta
		run.assetPath = path
		run.state = StateDetecting

	case StateDetecting:
		target := run.assetPath
		if w.preparer != nil {
			prepared, cleanup, err := w.preparer.Prepare(run.assetPath)
			run.cleanup = cleanup
			if err != nil {
				w.logger.Warn("asset preparation failed, using original", "run_id", wctx.RunID, "error", err)
			}
			target = prepared
		}

		execution, err := w.detector.Invoke(ctx, target)
		if execution != nil {
			run.execution = execution
			w.metrics.ObserveDetectorExit(execution.ExitCode)
		}
		if err != nil {
			var spawnErr *detect.SpawnError
			switch {
			case errors.As(err, &spawnErr):
				run.abort(ReasonProcessSpawnError, err)
			case ctx.Err() != nil:
				run.abort(ReasonCanceled, err)
			default:
				run.abort(ReasonDetectionFailed, err)
			}
			return
		}
		if execution.Incomplete() {
			run.abort(ReasonDetectionFailed, detect.ErrOutputTruncated)
			return
		}
		run.state = StateParsing

	case StateParsing:
		run.outcome = detect.Parse(run.execution.Stdout, run.execution.Stderr)
		run.parsed = true
		run.state = StateFormatting

	case StateFormatting:
		summary, ok := detect.Format(run.outcome)
		if !ok {
			run.abort(ReasonNoResult, nil)
			return
		}
		run.summary = summary
		run.state = StatePublishing

	case StatePublishing:
		id, err := w.publisher.Publish(ctx, req.ContentID, req.AuthorID, run.summary)
		run.state = StateDone
		if err != nil {
			run.reason = ReasonPublishError
			run.err = err
			return
		}
		run.annotationID = id
		run.reason = ReasonCompleted

	default:
		run.abort(ReasonPanic, fmt.Errorf("unknown state %q", run.state))
	}
}

// finish emits the terminal event and builds the result
func (w *AnnotateWorkflow) finish(wctx *WorkflowContext, run *annotateRun) *WorkflowResult {
	duration := w.clock.Since(run.started)
	req := wctx.Request

	errText := ""
	if run.err != nil {
		errText = run.err.Error()
	}
	degraded := run.parsed && run.outcome.Degraded()

	attrs := []any{
		"content_id", req.ContentID,
		"author_id", req.AuthorID,
		"run_id", wctx.RunID,
		"state", string(run.state),
		"reason", string(run.reason),
		"error", errText,
		"parse_degraded", degraded,
		"duration", duration,
	}
	if run.asset != nil {
		attrs = append(attrs, "asset_bytes", run.asset.Size)
	}
	if run.annotationID != "" {
		attrs = append(attrs, "annotation_id", run.annotationID)
	}
	w.logger.Log(context.Background(), terminalLevel(run.reason), "annotate run finished", attrs...)
	w.metrics.ObserveRun(string(run.state), string(run.reason), duration)

	outputs := map[string]string{
		"asset_wait_ms": strconv.FormatInt(run.assetWait.Milliseconds(), 10),
	}
	if run.asset != nil {
		outputs["asset_bytes"] = strconv.FormatInt(run.asset.Size, 10)
	}
	if run.execution != nil {
		outputs["exit_code"] = strconv.Itoa(run.execution.ExitCode)
	}
	if run.parsed {
		outputs["outcome"] = run.outcome.Kind.String()
	}
	if run.summary != "" {
		outputs["summary"] = run.summary
	}

	return &WorkflowResult{
		Success:      run.state == StateDone && run.reason == ReasonCompleted,
		State:        string(run.state),
		Reason:       string(run.reason),
		AnnotationID: run.annotationID,
		Error:        errText,
		Outputs:      outputs,
	}
}

func terminalLevel(reason Reason) slog.Level {
	switch reason {
	case ReasonCompleted, ReasonNoAsset, ReasonNoResult:
		return slog.LevelInfo
	case ReasonAssetNotFound, ReasonCanceled:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
