// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package export bundles selected blog posts into a ZIP archive.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/mdhender/blogbatch/model"
)

// DefaultPrefix is the archive name prefix used when none is given.
const DefaultPrefix = "blog-contents"

// ErrNothingSelected is returned when no completed row is selected.
// Nothing is written in that case.
var ErrNothingSelected = errors.New("no completed posts selected")

var unsafeChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// Sanitize makes a store name safe to use as a file name.
// It never truncates. An empty result becomes "untitled".
func Sanitize(name string) string {
	name = strings.TrimSpace(unsafeChars.Replace(name))
	if name == "" {
		return "untitled"
	}
	return name
}

// ArchiveName returns "<prefix>-<YYYY-MM-DD>.zip".
func ArchiveName(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s-%s.zip", prefix, now.Format(time.DateOnly))
}

// Exportable returns the completed, selected results in row order.
func Exportable(results []model.ProcessResult) []model.ProcessResult {
	var list []model.ProcessResult
	for _, r := range results {
		if r.Status == model.RowCompleted && r.IsSelected && r.Result != nil {
			list = append(list, r)
		}
	}
	return list
}

// Package writes one "<sanitized store name>.txt" entry per exportable
// result to w and returns the number of entries. Names that collide get a
// " (2)", " (3)", ... suffix.
func Package(w io.Writer, results []model.ProcessResult) (int, error) {
	list := Exportable(results)
	if len(list) == 0 {
		return 0, ErrNothingSelected
	}

	zw := zip.NewWriter(w)
	used := map[string]bool{}
	for _, r := range list {
		name := entryName(Sanitize(r.StoreName), used)
		fw, err := zw.Create(name)
		if err != nil {
			return 0, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := io.WriteString(fw, *r.Result); err != nil {
			return 0, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return len(list), nil
}

// Bytes returns the archive as a byte slice.
func Bytes(results []model.ProcessResult) ([]byte, int, error) {
	var buf bytes.Buffer
	n, err := Package(&buf, results)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}

// entryName returns the first of "base.txt", "base (2).txt", ... not in used, and marks it used.
func entryName(base string, used map[string]bool) string {
	name := base + ".txt"
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s (%d).txt", base, n)
	}
	used[name] = true
	return name
}
