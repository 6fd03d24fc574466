package workflows

import (
	"context"
	"time"

	"github.com/tendant/simple-content-annotator/internal/fsutil"
	"github.com/tendant/simple-content-annotator/internal/timeutil"
)

const (
	DefaultWaitAttempts = 5
	DefaultWaitDelay    = 200 * time.Millisecond
)

// AssetWaiter bridges the gap between a content record being committed and
// its asset file becoming visible on shared storage.
type AssetWaiter struct {
	FS          fsutil.FileSystem
	Clock       timeutil.Clock
	MaxAttempts int
	Delay       time.Duration
}

// NewAssetWaiter creates a waiter with the default budget of 5 rechecks 200ms apart
func NewAssetWaiter(fsys fsutil.FileSystem, clock timeutil.Clock) *AssetWaiter {
	return &AssetWaiter{
		FS:          fsys,
		Clock:       clock,
		MaxAttempts: DefaultWaitAttempts,
		Delay:       DefaultWaitDelay,
	}
}

// Wait reports whether path exists, rechecking up to MaxAttempts times with
// Delay between checks. Cancellation of ctx ends the wait with false.
func (w *AssetWaiter) Wait(ctx context.Context, path string) bool {
	fsys := w.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	clock := w.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	if fsys.Exists(path) {
		return true
	}
	for attempt := 1; attempt <= w.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-clock.After(w.Delay):
		}
		if fsys.Exists(path) {
			return true
		}
	}
	return false
}
