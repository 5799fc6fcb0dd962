package syncqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const upsertSQL = `INSERT INTO sync_status (article_id, status_key, flag, state, revision, updated_at)
VALUES (?, ?, ?, 'pending', 1, ?)
ON CONFLICT(article_id, status_key) DO UPDATE SET
    flag = excluded.flag,
    revision = CASE WHEN sync_status.flag = excluded.flag THEN sync_status.revision ELSE sync_status.revision + 1 END,
    updated_at = excluded.updated_at`

// Upsert inserts or replaces each record keyed by (ArticleID, Key) in one
// transaction. A later value for the same key replaces the earlier one, both
// within the batch and across calls. Claimed records keep their claim; only the
// flag is refreshed. The State field of the input is ignored.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	normalized := make([]Record, 0, len(records))
	for _, record := range records {
		id := strings.TrimSpace(record.ArticleID)
		if id == "" {
			return fmt.Errorf("%w: empty identifier", ErrInvalidArticleID)
		}
		if !record.Key.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatusKey, record.Key)
		}
		record.ArticleID = id
		normalized = append(normalized, record)
	}
	if len(normalized) == 0 {
		return nil
	}

	return s.withTx(ctx, "upsert records", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		now := timestamp()
		for _, record := range normalized {
			if _, err := stmt.ExecContext(ctx, record.ArticleID, string(record.Key), boolToInt(record.Flag), now); err != nil {
				return fmt.Errorf("upsert %s/%s: %w", record.ArticleID, record.Key, err)
			}
		}
		return nil
	})
}

// Discard removes the record for (articleID, key) when a producer decides the
// status no longer needs syncing. It reports whether a record was removed.
func (s *Store) Discard(ctx context.Context, articleID string, key StatusKey) (bool, error) {
	id := strings.TrimSpace(articleID)
	if id == "" {
		return false, fmt.Errorf("%w: empty identifier", ErrInvalidArticleID)
	}
	if !key.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatusKey, key)
	}
	var removed bool
	err := s.withTx(ctx, "discard record", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sync_status WHERE article_id = ? AND status_key = ?`, id, string(key))
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = affected > 0
		return nil
	})
	return removed, err
}

// Get returns the record for (articleID, key), or nil when none exists.
func (s *Store) Get(ctx context.Context, articleID string, key StatusKey) (*Record, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusKey, key)
	}
	ctx = ensureContext(ctx)
	if s.closed.Load() {
		return nil, wrap(ErrStorageUnavailable, "get record", errStoreClosed)
	}
	var (
		record Record
		found  bool
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+recordColumns+` FROM sync_status WHERE article_id = ? AND status_key = ?`,
			strings.TrimSpace(articleID), string(key),
		)
		scanned, err := scanRecord(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				found = false
				return nil
			}
			return err
		}
		record, found = scanned, true
		return nil
	})
	if err != nil {
		return nil, readError("get record", err)
	}
	if !found {
		return nil, nil
	}
	return &record, nil
}

// List returns records ordered by article and key. With no states given every
// record is returned.
func (s *Store) List(ctx context.Context, states ...State) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM sync_status`
	var args []any
	if len(states) > 0 {
		for _, state := range states {
			if state != StatePending && state != StateClaimed {
				return nil, fmt.Errorf("unknown record state %q", state)
			}
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
	}
	query += ` ORDER BY article_id, status_key`

	var records []Record
	err := s.queryRows(ctx, "list records", query, args, func() { records = nil }, func(rows *sql.Rows) error {
		record, err := scanRecord(rows)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PendingCount returns the total number of records regardless of claim state.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.queryRows(ctx, "count records", `SELECT COUNT(1) FROM sync_status`, nil, nil, func(rows *sql.Rows) error {
		return rows.Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PendingArticleIDs returns the ids of articles with an unclaimed record of
// the given key. Claimed records are left undisturbed and not reported.
func (s *Store) PendingArticleIDs(ctx context.Context, key StatusKey) ([]string, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusKey, key)
	}
	ids := []string{}
	err := s.queryRows(ctx, "pending article ids",
		`SELECT article_id FROM sync_status WHERE status_key = ? AND state = 'pending' ORDER BY article_id`,
		[]any{string(key)},
		func() { ids = ids[:0] },
		func(rows *sql.Rows) error {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
