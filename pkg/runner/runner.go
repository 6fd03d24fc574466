// Package runner embeds the annotation pipeline in another Go program.
//
// A content-creation handler commits its record, responds to its client and
// then calls Trigger; the run happens on the runner's own workers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"

	"github.com/tendant/simple-content-annotator/internal/config"
	"github.com/tendant/simple-content-annotator/internal/database"
	"github.com/tendant/simple-content-annotator/internal/dbosruntime"
	"github.com/tendant/simple-content-annotator/internal/detect"
	"github.com/tendant/simple-content-annotator/internal/fsutil"
	"github.com/tendant/simple-content-annotator/internal/ledger"
	"github.com/tendant/simple-content-annotator/internal/metrics"
	"github.com/tendant/simple-content-annotator/internal/queue"
	"github.com/tendant/simple-content-annotator/internal/storage"
	"github.com/tendant/simple-content-annotator/internal/timeutil"
	"github.com/tendant/simple-content-annotator/internal/workflows"
	"github.com/tendant/simple-content-annotator/pkg/pipeline"
)

// Config is the worker configuration, see config.Load
type Config = config.Config

// LoadConfig reads the configuration from the environment
func LoadConfig() (Config, error) {
	return config.Load()
}

// ErrNoAnnotationStore is returned by Annotations when the sink is not sql
var ErrNoAnnotationStore = errors.New("annotations are not stored locally")

type options struct {
	registerer prometheus.Registerer
	logger     *slog.Logger
	writer     storage.AnnotationWriter
}

// Option configures a Runner
type Option func(*options)

// WithRegisterer registers the pipeline metrics on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithLogger sets the logger for terminal run events
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithAnnotationWriter overrides the configured sink with the host
// application's own append-annotation operation
func WithAnnotationWriter(w storage.AnnotationWriter) Option {
	return func(o *options) { o.writer = w }
}

// Runner provides a high-level API for triggering annotate runs
type Runner struct {
	cfg      config.Config
	runner   *workflows.WorkflowRunner
	runtime  *dbosruntime.Runtime
	pool     *queue.Pool
	db       *database.DB
	ledger   *ledger.Tracker
	store    *storage.SQLAnnotationStore
	metrics  *metrics.Metrics
	cleanups []func()
}

// New wires storage, the detector and the async backend from cfg and starts
// the workers
func New(ctx context.Context, cfg Config, opts ...Option) (_ *Runner, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{cfg: cfg, metrics: metrics.New(o.registerer)}
	defer func() {
		if err != nil {
			r.close()
		}
	}()

	// Database: ledger and, for the sql sink, annotations
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	r.db = db
	if err := db.MigrateUp(); err != nil {
		return nil, err
	}
	r.ledger = ledger.NewTracker(db)

	writer := o.writer
	if writer == nil {
		writer, err = r.newSink(cfg)
		if err != nil {
			return nil, err
		}
	}

	assets, err := storage.NewFilesystemStorage(cfg.AssetBaseDir)
	if err != nil {
		return nil, err
	}

	invoker := detect.NewInvoker(cfg.DetectorCommand, cfg.DetectorArgs...)
	invoker.Timeout = cfg.DetectorTimeout
	invoker.MaxOutputBytes = cfg.DetectorMaxOutputBytes
	invoker.Logger = o.logger

	waiter := &workflows.AssetWaiter{
		FS:          fsutil.OSFileSystem{},
		Clock:       timeutil.RealClock{},
		MaxAttempts: cfg.AssetRechecks(),
		Delay:       cfg.AssetWaitDelay,
	}

	workflowOpts := []workflows.AnnotateOption{workflows.WithMetrics(r.metrics)}
	if o.logger != nil {
		workflowOpts = append(workflowOpts, workflows.WithLogger(o.logger))
	}
	if preparer := detect.NewPreparer(cfg.AssetMaxDimension, ""); preparer != nil {
		workflowOpts = append(workflowOpts, workflows.WithPreparer(preparer))
	}
	annotate := workflows.NewAnnotateWorkflow(assets, waiter, invoker, workflows.NewPublisher(writer), workflowOpts...)

	// Async backend
	if cfg.UseDBOS() {
		runtime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
			DatabaseURL:        cfg.DBOSDatabaseURL,
			QueueName:          cfg.DBOSQueueName,
			Concurrency:        cfg.WorkerConcurrency,
			ApplicationVersion: cfg.DBOSApplicationVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
		}
		r.runtime = runtime
		r.runner = workflows.NewWorkflowRunner(runtime)
		r.runner.Register(pipeline.JobDetectAndAnnotate, annotate)

		// Launch DBOS (must be after workflow registration)
		if err := runtime.Launch(); err != nil {
			return nil, fmt.Errorf("failed to launch DBOS: %w", err)
		}
	} else {
		r.pool = queue.NewPool(cfg.WorkerConcurrency, cfg.WorkerQueueSize)
		r.pool.OnDepth = r.metrics.SetQueueDepth
		r.runner = workflows.NewLocalWorkflowRunner(r.pool)
		r.runner.Register(pipeline.JobDetectAndAnnotate, annotate)
	}

	return r, nil
}

func (r *Runner) newSink(cfg config.Config) (storage.AnnotationWriter, error) {
	switch cfg.AnnotationSink {
	case config.SinkHTTP:
		return storage.NewHTTPAnnotationWriter(cfg.ContentAPIURL), nil
	case config.SinkSimpleContent:
		// In-memory repository + filesystem storage
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(cfg.ContentDataDir))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize simple-content service: %w", err)
		}
		r.cleanups = append(r.cleanups, cleanup)
		return storage.NewDerivedWriter(svc), nil
	default:
		r.store = storage.NewSQLAnnotationStore(r.db)
		return r.store, nil
	}
}

// Durable reports whether runs are queued on DBOS
func (r *Runner) Durable() bool {
	return r.runtime != nil
}

// Ledger returns the trigger ledger
func (r *Runner) Ledger() *ledger.Tracker {
	return r.ledger
}

// RunAsync submits a run without recording it in the ledger
func (r *Runner) RunAsync(ctx context.Context, req pipeline.AnnotateRequest) (string, error) {
	return r.runner.RunAsync(ctx, req)
}

// GetStatus returns the status of a submitted run
func (r *Runner) GetStatus(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}

// Trigger records the trigger and submits a run. It never waits for the run.
func (r *Runner) Trigger(ctx context.Context, contentID, authorID, assetPath string) (*pipeline.AnnotateResponse, error) {
	req := pipeline.AnnotateRequest{
		ContentID: contentID,
		AuthorID:  authorID,
		AssetPath: assetPath,
		Job:       pipeline.JobDetectAndAnnotate,
	}

	runID, err := r.runner.RunAsync(ctx, req)
	if err != nil {
		return nil, err
	}

	seen, err := r.ledger.Record(ctx, contentID, req.Job)
	if err != nil {
		log.Printf("[%s] Failed to record trigger: %v", runID, err)
	}
	return &pipeline.AnnotateResponse{RunID: runID, TriggerSeenCount: seen}, nil
}

// RunSync runs the pipeline inline and returns its terminal result
func (r *Runner) RunSync(ctx context.Context, req pipeline.AnnotateRequest) *workflows.WorkflowResult {
	if req.Job == "" {
		req.Job = pipeline.JobDetectAndAnnotate
	}
	runID := fmt.Sprintf("%s-%s-%d", req.Job, req.ContentID, time.Now().UnixNano())

	result, err := r.runner.Run(&workflows.WorkflowContext{Ctx: ctx, Request: req, RunID: runID})
	if err != nil && result == nil {
		result = &workflows.WorkflowResult{Error: err.Error()}
	}
	return result
}

// Annotations lists the annotations of a content record when the sql sink is used
func (r *Runner) Annotations(ctx context.Context, contentID string) ([]pipeline.Annotation, error) {
	if r.store == nil {
		return nil, ErrNoAnnotationStore
	}
	return r.store.ListAnnotations(ctx, contentID)
}

// Shutdown stops accepting runs and waits for running ones until ctx expires
func (r *Runner) Shutdown(ctx context.Context) error {
	var err error
	if r.pool != nil {
		err = r.pool.Shutdown(ctx)
	}
	if r.runtime != nil {
		timeout := 10 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		err = errors.Join(err, r.runtime.Shutdown(timeout))
	}
	r.close()
	return err
}

func (r *Runner) close() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
	r.cleanups = nil
	if r.db != nil {
		r.db.Close()
		r.db = nil
	}
}
