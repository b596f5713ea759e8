// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/rows"
	"github.com/spf13/afero"
)

// IngestService turns uploaded spreadsheets into rows for a batch run.
type IngestService struct {
	store      IngestStore
	dataDir    string
	fs         afero.Fs
	normalizer *rows.Normalizer
	now        func() time.Time
}

// IngestStore defines the store operations needed by IngestService.
type IngestStore interface {
	InsertUpload(ctx context.Context, u *model.Upload) (int64, error)
	GetUploadBySHA256(ctx context.Context, sha256 string) (*model.Upload, error)
}

// NewIngestService creates a new IngestService. When dataDir is not empty
// a copy of every upload is kept under dataDir/uploads.
func NewIngestService(store IngestStore, dataDir string) *IngestService {
	return &IngestService{
		store:      store,
		dataDir:    dataDir,
		fs:         afero.NewOsFs(),
		normalizer: rows.NewNormalizer(nil),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetFS sets the filesystem for testing.
func (s *IngestService) SetFS(fs afero.Fs) {
	s.fs = fs
}

// SetAliases adds spreadsheet header aliases on top of the defaults.
func (s *IngestService) SetAliases(extra map[string]string) {
	s.normalizer = rows.NewNormalizer(extra)
}

// IngestRequest contains the parameters for ingesting a spreadsheet.
type IngestRequest struct {
	Filename  string // original filename, used to pick the reader
	Data      []byte // file content
	CreatedBy string
}

// IngestResult contains the result of an ingest operation.
type IngestResult struct {
	RunID     string
	UploadID  int64
	Rows      []model.Row
	Duplicate bool // the same bytes were uploaded before
}

// Ingest parses the spreadsheet and records the upload.
// A duplicate upload still returns its rows; every run starts clean.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	hash := sha256.Sum256(req.Data)
	hashStr := hex.EncodeToString(hash[:])

	existing, err := s.store.GetUploadBySHA256(ctx, hashStr)
	if err != nil {
		return nil, &ErrDatabase{Op: "check duplicate", Err: err}
	}

	raw, err := rows.Read(req.Filename, req.Data)
	if err != nil {
		return nil, &ErrSpreadsheet{Filename: req.Filename, Err: err}
	}
	rs := rows.ToRows(s.normalizer.Normalize(raw))
	if len(rs) == 0 {
		return nil, &ErrSpreadsheet{Filename: req.Filename, Err: ErrNoRows}
	}

	runID := uuid.NewString()

	var fsPath string
	if s.dataDir != "" {
		ext := strings.ToLower(filepath.Ext(req.Filename))
		fsPath = filepath.Join("uploads", runID+ext)
		fullPath := filepath.Join(s.dataDir, fsPath)
		if err := s.fs.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return nil, &ErrWriteFile{Op: "mkdir", Path: filepath.Dir(fullPath), Err: err}
		}
		if err := afero.WriteFile(s.fs, fullPath, req.Data, 0644); err != nil {
			return nil, &ErrWriteFile{Op: "write", Path: fullPath, Err: err}
		}
	}

	upload := &model.Upload{
		RunID:     runID,
		Filename:  filepath.Base(req.Filename),
		SHA256:    hashStr,
		Rows:      len(rs),
		FsPath:    fsPath,
		CreatedBy: req.CreatedBy,
		CreatedAt: s.now(),
	}
	uploadID, err := s.store.InsertUpload(ctx, upload)
	if err != nil {
		return nil, &ErrDatabase{Op: "insert upload", Err: err}
	}

	return &IngestResult{
		RunID:     runID,
		UploadID:  uploadID,
		Rows:      rs,
		Duplicate: existing != nil,
	}, nil
}

// IngestFile reads path from the service filesystem and ingests it.
func (s *IngestService) IngestFile(ctx context.Context, path, createdBy string) (*IngestResult, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, &ErrWriteFile{Op: "read", Path: path, Err: err}
	}
	return s.Ingest(ctx, IngestRequest{
		Filename:  path,
		Data:      data,
		CreatedBy: createdBy,
	})
}

// String implements fmt.Stringer for log lines.
func (r *IngestResult) String() string {
	return fmt.Sprintf("run %s: %d rows (duplicate=%v)", r.RunID, len(r.Rows), r.Duplicate)
}
