// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"context"
	"errors"
	"fmt"
)

// ErrWriteFile is returned when file I/O operations fail.
type ErrWriteFile struct {
	Op   string // mkdir, write, read
	Path string
	Err  error
}

func (e *ErrWriteFile) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ErrWriteFile) Unwrap() error {
	return e.Err
}

// ErrDatabase is returned when database operations fail.
type ErrDatabase struct {
	Op  string
	Err error
}

func (e *ErrDatabase) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *ErrDatabase) Unwrap() error {
	return e.Err
}

// ErrSpreadsheet is returned when an uploaded spreadsheet cannot be used.
type ErrSpreadsheet struct {
	Filename string
	Err      error
}

func (e *ErrSpreadsheet) Error() string {
	return fmt.Sprintf("spreadsheet %s: %v", e.Filename, e.Err)
}

func (e *ErrSpreadsheet) Unwrap() error {
	return e.Err
}

// ErrGenerate is returned when the generation service gives up on a row.
type ErrGenerate struct {
	Row int
	Err error
}

func (e *ErrGenerate) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row+1, e.Err)
}

func (e *ErrGenerate) Unwrap() error {
	return e.Err
}

// ErrNoRows is wrapped by ErrSpreadsheet when no data rows were found.
var ErrNoRows = errors.New("no data rows")

// Error code constants for logs and run records.
const (
	ErrCodeWriteFile   = "WRITE_FILE"
	ErrCodeDatabase    = "DATABASE"
	ErrCodeSpreadsheet = "SPREADSHEET"
	ErrCodeGenerate    = "GENERATE"
	ErrCodeCanceled    = "CANCELED"
	ErrCodeUnknown     = "UNKNOWN"
)

// ErrorCode returns the error code string for a given error.
func ErrorCode(err error) string {
	var (
		writeErr *ErrWriteFile
		dbErr    *ErrDatabase
		sheetErr *ErrSpreadsheet
		genErr   *ErrGenerate
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeCanceled
	case errors.As(err, &writeErr):
		return ErrCodeWriteFile
	case errors.As(err, &dbErr):
		return ErrCodeDatabase
	case errors.As(err, &sheetErr):
		return ErrCodeSpreadsheet
	case errors.As(err, &genErr):
		return ErrCodeGenerate
	default:
		return ErrCodeUnknown
	}
}
