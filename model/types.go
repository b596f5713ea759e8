// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package model

import (
	"fmt"
	"time"
)

// Row is one normalized unit of work derived from a spreadsheet record.
// It is never mutated after it is built.
type Row struct {
	StoreName   string   `json:"storeName"`
	StoreURL    string   `json:"storeURL,omitempty"`
	MainKeyword string   `json:"mainKeyword"`
	SubKeywords []string `json:"subKeywords,omitempty"` // at most 3
}

// MaxSubKeywords is the number of sub-keyword columns a spreadsheet carries.
const MaxSubKeywords = 3

// Keywords returns the non-empty sub-keywords, in order.
func (r Row) Keywords() []string {
	var list []string
	for _, kw := range r.SubKeywords {
		if kw != "" {
			list = append(list, kw)
		}
	}
	return list
}

// SubKeyword returns the n'th sub-keyword (0-based) or an empty string.
func (r Row) SubKeyword(n int) string {
	if n < 0 || n >= len(r.SubKeywords) {
		return ""
	}
	return r.SubKeywords[n]
}

// RowStatus is the state of a single row within a batch run.
//
//	waiting -> processing -> completed | failed
type RowStatus string

const (
	RowWaiting    RowStatus = "waiting"
	RowProcessing RowStatus = "processing"
	RowCompleted  RowStatus = "completed"
	RowFailed     RowStatus = "failed"
)

// RunStatus is the state of a batch run.
//
//	idle -> processing -> completed | stopped
type RunStatus string

const (
	RunIdle       RunStatus = "idle"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunStopped    RunStatus = "stopped"
)

// ProcessResult is the per-row outcome tracked by the batch pipeline.
// Result is set only when Status is completed; Error only when Status is failed.
type ProcessResult struct {
	RowIndex   int       `json:"rowIndex"`
	StoreName  string    `json:"storeName"`
	Status     RowStatus `json:"status"`
	Result     *string   `json:"result,omitempty"`
	Error      *string   `json:"error,omitempty"`
	IsSelected bool      `json:"isSelected"`
}

// DisplayName returns the label for a row: the store name, or "data #N" when empty.
func DisplayName(storeName string, rowIndex int) string {
	if storeName != "" {
		return storeName
	}
	return fmt.Sprintf("data #%d", rowIndex+1)
}

// BatchRun is a point-in-time copy of the pipeline state.
type BatchRun struct {
	ID            string          `json:"id"`
	Rows          []Row           `json:"rows"`
	Results       []ProcessResult `json:"results"`
	CurrentIndex  int             `json:"currentIndex"`
	Status        RunStatus       `json:"status"`
	StartedAt     time.Time       `json:"startedAt,omitzero"`
	FinishedAt    time.Time       `json:"finishedAt,omitzero"`
	AllSelected   bool            `json:"allSelected"`
	SelectedCount int             `json:"selectedCount"`
	HasCompleted  bool            `json:"hasCompleted"`
}

// Counts returns the number of rows in each status.
func (b BatchRun) Counts() map[RowStatus]int {
	counts := map[RowStatus]int{}
	for _, r := range b.Results {
		counts[r.Status]++
	}
	return counts
}

// Upload records the ingest of one spreadsheet file.
type Upload struct {
	ID        int64     `json:"id"        db:"id"`
	RunID     string    `json:"runId"     db:"run_id"`
	Filename  string    `json:"filename"  db:"filename"`
	SHA256    string    `json:"sha256"    db:"sha256"`
	Rows      int       `json:"rows"      db:"rows"`
	FsPath    string    `json:"fsPath"    db:"fs_path"`
	CreatedBy string    `json:"createdBy" db:"created_by"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// RunRecord is the persisted summary of a batch run.
type RunRecord struct {
	ID         string     `json:"id"         db:"id"`
	Status     RunStatus  `json:"status"     db:"status"`
	Rows       int        `json:"rows"       db:"rows"`
	Completed  int        `json:"completed"  db:"completed"`
	Failed     int        `json:"failed"     db:"failed"`
	StartedAt  time.Time  `json:"startedAt"  db:"started_at"`
	FinishedAt *time.Time `json:"finishedAt" db:"finished_at"`
}
