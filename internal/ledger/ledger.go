// Package ledger counts pipeline triggers per content record.
//
// The ledger is observational only: it never suppresses a trigger. A content
// record triggered twice is annotated twice, and the seen count lets the
// caller notice that it happened.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tendant/simple-content-annotator/internal/database"
)

// Tracker records pipeline triggers
type Tracker struct {
	db *database.DB
}

// NewTracker creates a new trigger tracker. The trigger_ledger table is created
// by the database migrations.
func NewTracker(db *database.DB) *Tracker {
	return &Tracker{db: db}
}

// Record records a trigger and returns how many times the content record has
// been triggered, this one included
func (t *Tracker) Record(ctx context.Context, contentID string, job string) (int, error) {
	// Upsert: increment seen_count if exists, insert if not
	query := t.db.Rebind(`
		INSERT INTO trigger_ledger (content_id, job, first_seen_at, last_seen_at, seen_count)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, 1)
		ON CONFLICT (content_id) DO UPDATE
		SET last_seen_at = CURRENT_TIMESTAMP,
		    seen_count = trigger_ledger.seen_count + 1,
		    job = EXCLUDED.job
		RETURNING seen_count
	`)

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, contentID, job).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record trigger: %w", err)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for a content ID
func (t *Tracker) GetSeenCount(ctx context.Context, contentID string) (int, error) {
	query := t.db.Rebind(`SELECT seen_count FROM trigger_ledger WHERE content_id = ?`)

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, contentID).Scan(&seenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}
