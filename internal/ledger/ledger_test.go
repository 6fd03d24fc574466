package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-content-annotator/internal/database"
	"github.com/tendant/simple-content-annotator/pkg/pipeline"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp())
	return NewTracker(db)
}

func TestTracker_RecordCountsEveryTrigger(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(t)
	ctx := context.Background()

	count, err := tracker.GetSeenCount(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for want := 1; want <= 3; want++ {
		got, err := tracker.Record(ctx, "9", pipeline.JobDetectAndAnnotate)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := tracker.Record(ctx, "10", pipeline.JobDetectAndAnnotate)
	require.NoError(t, err)
	assert.Equal(t, 1, other)

	count, err = tracker.GetSeenCount(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
