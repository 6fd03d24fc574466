package pipeline

// AnnotateRequest represents a request to detect objects in a content record's
// asset and annotate the record with the result
type AnnotateRequest struct {
	ContentID string            `json:"content_id"`
	AuthorID  string            `json:"author_id"`
	AssetPath string            `json:"asset_path,omitempty"` // relative to the asset base dir, e.g. /public/image/post/x.png
	Job       string            `json:"job"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// HasAsset reports whether the request carries an asset path
func (r AnnotateRequest) HasAsset() bool {
	return r.AssetPath != ""
}

// AnnotateResponse represents the response from triggering the pipeline
type AnnotateResponse struct {
	RunID            string `json:"run_id"`
	TriggerSeenCount int    `json:"trigger_seen_count"`
}

// Annotation is a system-authored comment attached to a content record
type Annotation struct {
	ID        string `json:"id"`
	ContentID string `json:"content_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
}

// RunStatus describes a submitted run
type RunStatus struct {
	RunID     string `json:"run_id"`
	ContentID string `json:"content_id,omitempty"`
	State     string `json:"state"` // pending, running, succeeded, failed
	Terminal  string `json:"terminal_state,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Job constants
const (
	JobDetectAndAnnotate = "detect_annotate"
)

// Run state constants
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)
