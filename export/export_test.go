// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package export_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zip"
	"github.com/mdhender/blogbatch/export"
	"github.com/mdhender/blogbatch/model"
	"github.com/spf13/afero"
)

func completed(i int, name, text string, selected bool) model.ProcessResult {
	return model.ProcessResult{RowIndex: i, StoreName: name, Status: model.RowCompleted, Result: &text, IsSelected: selected}
}

func failed(i int, name string) model.ProcessResult {
	msg := "boom"
	return model.ProcessResult{RowIndex: i, StoreName: name, Status: model.RowFailed, Error: &msg}
}

func readEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	entries := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		entries[f.Name] = string(b)
	}
	return entries
}

func TestPackage_SelectedCompletedOnly(t *testing.T) {
	results := []model.ProcessResult{
		completed(0, "Cafe: Blue/Door", "post zero", true),
		completed(1, "Noodle Bar", "post one", false),
		completed(2, "Bakery?", "post two", true),
		failed(3, "Broken"),
	}

	var buf bytes.Buffer
	n, err := export.Package(&buf, results)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
	entries := readEntries(t, buf.Bytes())
	want := map[string]string{
		"Cafe_ Blue_Door.txt": "post zero",
		"Bakery_.txt":         "post two",
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v", entries)
	}
	for name, text := range want {
		if entries[name] != text {
			t.Errorf("%s = %q, want %q", name, entries[name], text)
		}
	}
}

func TestPackage_NothingSelectedWritesNothing(t *testing.T) {
	results := []model.ProcessResult{
		completed(0, "a", "x", false),
		failed(1, "b"),
	}
	var buf bytes.Buffer
	n, err := export.Package(&buf, results)
	if !errors.Is(err, export.ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}
	if n != 0 || buf.Len() != 0 {
		t.Errorf("expected no output, got n=%d len=%d", n, buf.Len())
	}
}

func TestPackage_DuplicateNames(t *testing.T) {
	results := []model.ProcessResult{
		completed(0, "Same", "one", true),
		completed(1, "Same", "two", true),
		completed(2, "", "three", true),
	}
	data, n, err := export.Bytes(results)
	if err != nil || n != 3 {
		t.Fatalf("Bytes: n=%d err=%v", n, err)
	}
	entries := readEntries(t, data)
	if entries["Same.txt"] != "one" || entries["Same (2).txt"] != "two" || entries["untitled.txt"] != "three" {
		t.Errorf("unexpected entries %v", entries)
	}
}

func TestPackage_SuffixedNameCollidesWithStoreName(t *testing.T) {
	results := []model.ProcessResult{
		completed(0, "a", "one", true),
		completed(1, "a", "two", true),
		completed(2, "a (2)", "three", true),
	}
	data, _, err := export.Bytes(results)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"a.txt", "a (2).txt", "a (2) (2).txt"}
	if !slices.Equal(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		`a\b/c:d*e?f"g<h>i|j`: "a_b_c_d_e_f_g_h_i_j",
		"  padded  ":          "padded",
		"":                    "untitled",
		"   ":                 "untitled",
		"블루도어 카페":             "블루도어 카페",
	}
	for in, want := range tests {
		if got := export.Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestArchiveName(t *testing.T) {
	now := time.Date(2025, 3, 7, 23, 59, 0, 0, time.UTC)
	if got := export.ArchiveName("", now); got != "blog-contents-2025-03-07.zip" {
		t.Errorf("got %q", got)
	}
	if got := export.ArchiveName("posts", now); got != "posts-2025-03-07.zip" {
		t.Errorf("got %q", got)
	}
}

func TestSaveTo(t *testing.T) {
	fs := afero.NewMemMapFs()
	results := []model.ProcessResult{completed(0, "a", "x", true)}

	path, n, err := export.SaveTo(fs, "/out", "blog.zip", results)
	if err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if path != "/out/blog.zip" || n != 1 {
		t.Errorf("path=%q n=%d", path, n)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if entries := readEntries(t, data); entries["a.txt"] != "x" {
		t.Errorf("unexpected entries %v", entries)
	}

	if _, _, err := export.SaveTo(fs, "/empty", "blog.zip", nil); !errors.Is(err, export.ErrNothingSelected) {
		t.Errorf("expected ErrNothingSelected, got %v", err)
	}
	if ok, _ := afero.Exists(fs, "/empty/blog.zip"); ok {
		t.Error("archive written with nothing selected")
	}
}

type fakeUploader struct {
	bucket, key, contentType string
	body                     []byte
}

func (f *fakeUploader) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket, f.key, f.contentType = *in.Bucket, *in.Key, *in.ContentType
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Upload(t *testing.T) {
	up := &fakeUploader{}
	sink := export.NewS3Sink(up, "posts-bucket", "exports/2025")

	key, n, err := sink.Upload(context.Background(), "blog.zip", []model.ProcessResult{completed(0, "a", "x", true)})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if key != "exports/2025/blog.zip" || n != 1 {
		t.Errorf("key=%q n=%d", key, n)
	}
	if up.bucket != "posts-bucket" || up.key != key || up.contentType != "application/zip" {
		t.Errorf("unexpected put %+v", up)
	}
	if entries := readEntries(t, up.body); entries["a.txt"] != "x" {
		t.Errorf("unexpected entries %v", entries)
	}
}
