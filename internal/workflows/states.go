package workflows

// State is a step of one annotate run
type State string

const (
	StateStart         State = "START"
	StateAwaitingAsset State = "AWAITING_ASSET"
	StateDetecting     State = "DETECTING"
	StateParsing       State = "PARSING"
	StateFormatting    State = "FORMATTING"
	StatePublishing    State = "PUBLISHING"
	StateDone          State = "DONE"
	StateAborted       State = "ABORTED"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Reason explains why a run reached its terminal state
type Reason string

const (
	ReasonCompleted         Reason = "completed"
	ReasonNoAsset           Reason = "no_asset"
	ReasonAssetNotFound     Reason = "asset_not_found"
	ReasonProcessSpawnError Reason = "process_spawn_error"
	ReasonDetectionFailed   Reason = "detection_failed"
	ReasonNoResult          Reason = "no_result"
	ReasonPublishError      Reason = "publish_error"
	ReasonCanceled          Reason = "canceled"
	ReasonPanic             Reason = "panic"
)
