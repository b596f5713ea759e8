// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mdhender/blogbatch/model"
)

// InsertUpload records an ingested spreadsheet and returns its id.
func (s *SQLiteStore) InsertUpload(ctx context.Context, u *model.Upload) (int64, error) {
	const query = `
		INSERT INTO uploads (run_id, filename, sha256, rows, fs_path, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		u.RunID,
		u.Filename,
		u.SHA256,
		u.Rows,
		nullString(u.FsPath),
		nullString(u.CreatedBy),
		formatTime(u.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert upload: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get upload id: %w", err)
	}
	u.ID = id
	return id, nil
}

// GetUploadBySHA256 returns the earliest upload with the given hash, or nil.
func (s *SQLiteStore) GetUploadBySHA256(ctx context.Context, sha256 string) (*model.Upload, error) {
	const query = `
		SELECT id, run_id, filename, sha256, rows, fs_path, created_by, created_at
		FROM uploads
		WHERE sha256 = ?
		ORDER BY id
		LIMIT 1
	`
	var (
		u                 model.Upload
		fsPath, createdBy sql.NullString
		createdAt         string
	)
	err := s.db.QueryRowContext(ctx, query, sha256).Scan(
		&u.ID, &u.RunID, &u.Filename, &u.SHA256, &u.Rows, &fsPath, &createdBy, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	u.FsPath = fsPath.String
	u.CreatedBy = createdBy.String
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// SaveRun inserts or updates the summary of a batch run.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *model.RunRecord) error {
	const query = `
		INSERT INTO runs (id, status, rows, completed, failed, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			rows = excluded.rows,
			completed = excluded.completed,
			failed = excluded.failed,
			finished_at = excluded.finished_at
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		string(r.Status),
		r.Rows,
		r.Completed,
		r.Failed,
		formatTime(r.StartedAt),
		formatTimePtr(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun returns a run summary or ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	runs, err := s.queryRuns(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return runs[0], nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	return s.queryRuns(ctx, `ORDER BY started_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryRuns(ctx context.Context, tail string, args ...any) ([]*model.RunRecord, error) {
	query := `SELECT id, status, rows, completed, failed, started_at, finished_at FROM runs ` + tail
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RunRecord
	for rows.Next() {
		var (
			r                 model.RunRecord
			status, startedAt string
			finishedAt        sql.NullString
		)
		if err := rows.Scan(&r.ID, &status, &r.Rows, &r.Completed, &r.Failed, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = model.RunStatus(status)
		r.StartedAt = parseTime(startedAt)
		r.FinishedAt = parseTimePtr(finishedAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// RunRecordFrom summarizes a pipeline snapshot.
func RunRecordFrom(run model.BatchRun) *model.RunRecord {
	counts := run.Counts()
	r := &model.RunRecord{
		ID:        run.ID,
		Status:    run.Status,
		Rows:      len(run.Results),
		Completed: counts[model.RowCompleted],
		Failed:    counts[model.RowFailed],
		StartedAt: run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		t := run.FinishedAt
		r.FinishedAt = &t
	}
	return r
}
