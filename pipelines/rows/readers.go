// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package rows

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when a spreadsheet extension is not recognized.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Read parses spreadsheet data, choosing the reader from the file extension.
// Supported: .xlsx, .xlsm, .csv, .json.
func Read(filename string, data []byte) ([]map[string]any, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(bytes.NewReader(data))
	case ".csv":
		return ReadCSV(bytes.NewReader(data))
	case ".json":
		return ReadJSON(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
}

// ReadXLSX reads the first sheet of a workbook.
// The first row is the header; blank rows and blank cells are skipped.
func ReadXLSX(r io.Reader) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromGrid(grid), nil
}

// ReadCSV reads comma-separated values with a header line.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(grid) > 0 && len(grid[0]) > 0 {
		// Excel likes to save CSV with a byte-order mark
		grid[0][0] = strings.TrimPrefix(grid[0][0], "\ufeff")
	}
	return fromGrid(grid), nil
}

// ReadJSON reads an array of objects.
func ReadJSON(r io.Reader) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	return records, nil
}

func fromGrid(grid [][]string) []map[string]any {
	if len(grid) == 0 {
		return nil
	}
	header := grid[0]
	var records []map[string]any
	for _, line := range grid[1:] {
		rec := map[string]any{}
		for col, cell := range line {
			if col >= len(header) || header[col] == "" || strings.TrimSpace(cell) == "" {
				continue
			}
			rec[header[col]] = cell
		}
		if len(rec) == 0 {
			continue
		}
		records = append(records, rec)
	}
	return records
}
