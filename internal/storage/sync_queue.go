package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Sync queue operations.
const (
	SyncAssignment = "assignment"
	SyncCategory   = "category"
)

const (
	syncPending    = "pending"
	syncProcessing = "processing"
	syncCompleted  = "completed"
	syncFailed     = "failed"

	retryBase  = 10 * time.Second
	timeLayout = "2006-01-02 15:04:05"
)

// SyncItem is one queued change waiting to be pushed upstream.
type SyncItem struct {
	ID        int64
	Operation string
	EntityID  int64
	Month     string
	Payload   []byte
	Attempts  int64
	LastError string
}

// AssignmentPayload is the queued form of an assignment change.
type AssignmentPayload struct {
	CategoryID  int64  `json:"category_id"`
	Month       string `json:"month"`
	AmountCents int64  `json:"amount_cents"`
}

// CategoryPayload is the queued form of a category update. Only the fields
// the local user edits travel upstream.
type CategoryPayload struct {
	Name            string `json:"name"`
	IsActive        bool   `json:"is_active"`
	GoalType        string `json:"goal_type"`
	GoalAmountCents int64  `json:"goal_amount_cents"`
	GoalTargetDate  string `json:"goal_target_date,omitempty"`
}

// SyncStats counts queue items per status.
type SyncStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

func (q *Queries) enqueue(ctx context.Context, at string, op string, entityID int64, month string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO sync_queue (operation, entity_id, month, payload, next_attempt_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op, entityID, month, string(body), at, at, at)
	return err
}

// DequeueSyncBatch returns up to limit pending items that are due, oldest first.
func (r *SQLiteRepository) DequeueSyncBatch(ctx context.Context, limit int64) ([]SyncItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, operation, entity_id, month, payload, attempts, last_error FROM sync_queue
		 WHERE status = ? AND next_attempt_at <= ? ORDER BY id LIMIT ?`,
		syncPending, r.timestamp(0), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	return collect(rows, func(s scanner) (SyncItem, error) {
		var it SyncItem
		var payload string
		err := s.Scan(&it.ID, &it.Operation, &it.EntityID, &it.Month, &payload, &it.Attempts, &it.LastError)
		it.Payload = []byte(payload)
		return it, err
	})
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = ? WHERE id = ?`, status, r.timestamp(0), id)
	if err != nil {
		return fmt.Errorf("mark sync %d %s: %w", id, status, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncProcessing(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, syncProcessing)
}

func (r *SQLiteRepository) MarkSyncComplete(ctx context.Context, id int64) error {
	return r.setSyncStatus(ctx, id, syncCompleted)
}

// MarkSyncFailed parks an item after its last attempt.
func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`,
		syncFailed, reason, r.timestamp(0), id)
	if err != nil {
		return fmt.Errorf("mark sync %d failed: %w", id, err)
	}
	return nil
}

// IncrementSyncAttempt puts an item back in the queue with exponential backoff.
func (r *SQLiteRepository) IncrementSyncAttempt(ctx context.Context, item SyncItem, reason string) error {
	delay := retryBase << min(item.Attempts, 6)
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = attempts + 1, last_error = ?, next_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		syncPending, reason, r.timestamp(delay), r.timestamp(0), item.ID)
	if err != nil {
		return fmt.Errorf("increment sync attempt %d: %w", item.ID, err)
	}
	return nil
}

// ResetStaleProcessing returns items left in processing by a crashed worker.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET status = ? WHERE status = ?`, syncPending, syncProcessing)
	return err
}

// RetryFailedSyncs requeues every failed item with a fresh attempt budget.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = 0, next_attempt_at = ? WHERE status = ?`,
		syncPending, r.timestamp(0), syncFailed)
	return err
}

// CleanupCompletedSyncs deletes completed items last touched before cutoff.
func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND updated_at < ?`,
		syncCompleted, cutoff.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) SyncStats(ctx context.Context) (SyncStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return SyncStats{}, err
	}
	defer rows.Close()
	var st SyncStats
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return SyncStats{}, err
		}
		switch status {
		case syncPending:
			st.Pending = n
		case syncProcessing:
			st.Processing = n
		case syncCompleted:
			st.Completed = n
		case syncFailed:
			st.Failed = n
		}
	}
	return st, rows.Err()
}

func (r *SQLiteRepository) timestamp(after time.Duration) string {
	return r.now().UTC().Add(after).Format(timeLayout)
}
