package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/casefile/casefile/internal/archive"
)

// LoadFinalState returns the persisted snapshot. Missing rows yield
// empty slices, not nil, so a fresh database loads as an empty state.
func (s *Store) LoadFinalState(ctx context.Context) (archive.FinalState, error) {
	recent, err := s.readRecent(ctx)
	if err != nil {
		return archive.FinalState{}, err
	}

	open, err := s.readOpen(ctx)
	if err != nil {
		return archive.FinalState{}, err
	}

	return archive.FinalState{Recent: recent, Files: open}, nil
}

// RecentPaths returns the recent-file paths in persisted order. A
// non-positive limit returns all of them.
func (s *Store) RecentPaths(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT path FROM recent_files ORDER BY position ASC, path ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent paths: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan recent path: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent paths: %w", err)
	}

	return paths, nil
}

func (s *Store) readRecent(ctx context.Context) ([]archive.OpenedFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, path, saved, opened_at, position
		FROM recent_files
		ORDER BY position ASC, path ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recent files: %w", err)
	}
	defer rows.Close()

	files := []archive.OpenedFile{}
	for rows.Next() {
		var f archive.OpenedFile
		var saved int
		var openedAt sql.NullString
		var position int
		if err := rows.Scan(&f.ID, &f.Name, &f.Path, &saved, &openedAt, &position); err != nil {
			return nil, fmt.Errorf("scan recent file: %w", err)
		}
		f.Saved = saved != 0
		f.Index = position
		if f.OpenedAt, err = textToTime(openedAt); err != nil {
			return nil, fmt.Errorf("recent file %s: %w", f.Path, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent files: %w", err)
	}

	return files, nil
}

func (s *Store) readOpen(ctx context.Context) ([]archive.OpenedFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, id, name, path, content, saved, opened_at
		FROM open_files
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query open files: %w", err)
	}
	defer rows.Close()

	files := []archive.OpenedFile{}
	for rows.Next() {
		var f archive.OpenedFile
		var saved int
		var openedAt sql.NullString
		if err := rows.Scan(&f.Index, &f.ID, &f.Name, &f.Path, &f.Content, &saved, &openedAt); err != nil {
			return nil, fmt.Errorf("scan open file: %w", err)
		}
		f.Saved = saved != 0
		if f.OpenedAt, err = textToTime(openedAt); err != nil {
			return nil, fmt.Errorf("open file %s: %w", f.Name, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open files: %w", err)
	}

	return files, nil
}

// textToTime decodes an RFC3339 column; NULL maps to the zero value.
func textToTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse opened_at: %w", err)
	}
	return t, nil
}
