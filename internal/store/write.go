package store

import (
	"context"
	"fmt"
	"time"

	"github.com/casefile/casefile/internal/archive"
)

// SaveFinalState replaces the persisted snapshot with the given one in
// a single transaction. The previous snapshot is fully discarded; a
// crash mid-save leaves the old snapshot intact.
func (s *Store) SaveFinalState(ctx context.Context, fs archive.FinalState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save final state: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM recent_files`); err != nil {
		return fmt.Errorf("save final state: clear recent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM open_files`); err != nil {
		return fmt.Errorf("save final state: clear open: %w", err)
	}

	for i, f := range fs.Recent {
		// Pathless entries (never-saved untitled documents) have no
		// stable key and are not part of the recent list.
		if f.Path == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recent_files (path, id, name, saved, opened_at, position)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO NOTHING
		`, f.Path, f.ID, f.Name, boolToInt(f.Saved), timeToText(f.OpenedAt), i)
		if err != nil {
			return fmt.Errorf("save final state: insert recent %s: %w", f.Path, err)
		}
	}

	for _, f := range fs.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO open_files (position, id, name, path, content, saved, opened_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, f.Index, f.ID, f.Name, f.Path, f.Content, boolToInt(f.Saved), timeToText(f.OpenedAt))
		if err != nil {
			return fmt.Errorf("save final state: insert open %s: %w", f.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save final state: commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timeToText encodes a timestamp as RFC3339 UTC, or NULL for the zero
// value.
func timeToText(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
