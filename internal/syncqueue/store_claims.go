package syncqueue

import (
	"context"
	"database/sql"
	"fmt"
)

// ClaimAllUnclaimed marks every pending record claimed and returns all claimed
// records, including ones claimed earlier and never committed or released.
// Calling it twice without a commit or release in between returns the same
// set. Only one consumer batch may be in flight at a time.
func (s *Store) ClaimAllUnclaimed(ctx context.Context) ([]Record, error) {
	var claimed []Record
	err := s.withTx(ctx, "claim records", func(tx *sql.Tx) error {
		claimed = claimed[:0]
		if _, err := tx.ExecContext(ctx,
			`UPDATE sync_status SET state = 'claimed', claimed_revision = revision, updated_at = ? WHERE state = 'pending'`,
			timestamp(),
		); err != nil {
			return fmt.Errorf("mark claimed: %w", err)
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT `+recordColumns+` FROM sync_status WHERE state = 'claimed' ORDER BY article_id, status_key`,
		)
		if err != nil {
			return fmt.Errorf("select claimed: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				return err
			}
			claimed = append(claimed, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		claimed = []Record{}
	}
	return claimed, nil
}

// Release returns every claimed record of the listed articles to pending so
// the next claim picks them up again. All ids are released in one transaction.
func (s *Store) Release(ctx context.Context, articleIDs []string) error {
	ids, err := normalizeArticleIDs(articleIDs)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "release records", func(tx *sql.Tx) error {
		now := timestamp()
		for _, chunk := range chunkIDs(ids, idChunkSize) {
			if err := releaseChunk(ctx, tx, now, chunk); err != nil {
				return err
			}
		}
		return nil
	})
}

// Commit deletes every record of the listed articles after a confirmed
// delivery. Records upserted with a different flag while their batch was in
// flight are released instead, so the newer value is delivered next cycle.
// Records that were never claimed are left untouched, so Commit removes only
// the status kinds that were part of the delivered snapshot rather than every
// kind stored for the article.
func (s *Store) Commit(ctx context.Context, articleIDs []string) error {
	ids, err := normalizeArticleIDs(articleIDs)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, "commit records", func(tx *sql.Tx) error {
		now := timestamp()
		for _, chunk := range chunkIDs(ids, idChunkSize) {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM sync_status
				WHERE state = 'claimed' AND revision = claimed_revision AND article_id IN (`+makePlaceholders(len(chunk))+`)`,
				idArgs(nil, chunk)...,
			); err != nil {
				return fmt.Errorf("delete committed: %w", err)
			}
			if err := releaseChunk(ctx, tx, now, chunk); err != nil {
				return err
			}
		}
		return nil
	})
}

func releaseChunk(ctx context.Context, tx *sql.Tx, now string, chunk []string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE sync_status SET state = 'pending', claimed_revision = NULL, updated_at = ?
		WHERE state = 'claimed' AND article_id IN (`+makePlaceholders(len(chunk))+`)`,
		idArgs([]any{now}, chunk)...,
	); err != nil {
		return fmt.Errorf("release claimed: %w", err)
	}
	return nil
}

// ReleaseAllClaimed returns every claimed record to pending. Call it once at
// startup to recover batches abandoned by a crashed consumer. It returns the
// number of records released.
func (s *Store) ReleaseAllClaimed(ctx context.Context) (int64, error) {
	var released int64
	err := s.withTx(ctx, "release all claimed", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sync_status SET state = 'pending', claimed_revision = NULL, updated_at = ? WHERE state = 'claimed'`,
			timestamp(),
		)
		if err != nil {
			return err
		}
		released, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}
